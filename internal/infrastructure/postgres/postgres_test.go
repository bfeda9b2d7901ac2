package postgres_test

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stockledger/internal/application/ledger"
	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stockledger/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test: requieren LEDGER_TEST_DATABASE_URL (base desechable)
// ──────────────────────────────────────────────────────────────────────────────

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := postgres.NewPoolFromDSN(ctx, dsn, 8, 1)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool, logger.Nop()))
	return pool
}

// uniqueCategory evita choques entre ejecuciones sobre la misma base.
func uniqueCategory(t *testing.T, svc *sequence.Service) string {
	t.Helper()
	cat := "T" + time.Now().UTC().Format("20060102150405.000000000")
	_, err := svc.CreateCategory(context.Background(), sequence.CreateCategoryInput{
		Category: cat, Prefix: "PGT", PaddingWidth: 9, StartingValue: 1,
	})
	require.NoError(t, err)
	return cat
}

func services(t *testing.T, pool *pgxpool.Pool) (*sequence.Service, *ledger.Service, string) {
	t.Helper()
	runner := postgres.NewTxRunner(pool)
	policy := retry.Policy{MaxAttempts: 8, InitialInterval: 5 * time.Millisecond, MaxInterval: 50 * time.Millisecond}
	seq := sequence.NewService(runner, postgres.NewSequenceRepository(pool), nil, logger.Nop(), policy)
	cat := uniqueCategory(t, seq)
	led := ledger.NewService(runner, postgres.NewMovementRepository(pool), nil, logger.Nop(), ledger.Options{
		MovementCategory: cat,
		Policy:           policy,
	})
	return seq, led, cat
}

func pgActor() entity.ActorContext {
	return entity.ActorContext{ActorID: "pg-test", ActorType: entity.ActorTypeSystem, Source: "test", OccurredAtUTC: time.Now().UTC()}
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestMigrate_Idempotente(t *testing.T) {
	pool := testPool(t)
	require.NoError(t, postgres.Migrate(context.Background(), pool, logger.Nop()))
}

func TestSequence_ConcurrenteSinHuecos(t *testing.T) {
	pool := testPool(t)
	seq, _, cat := services(t, pool)
	const n = 50

	var mu sync.Mutex
	var got []int64
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := seq.GetNext(ctx, cat, "worker")
			if err != nil {
				return err
			}
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestSequence_TriggerRechazaDisminuir(t *testing.T) {
	pool := testPool(t)
	seq, _, cat := services(t, pool)
	_, err := seq.GetNext(context.Background(), cat, "u")
	require.NoError(t, err)

	repo := postgres.NewSequenceRepository(pool)
	c, err := repo.Get(context.Background(), cat)
	require.NoError(t, err)
	c.CurrentValue = 0
	assert.ErrorIs(t, repo.Save(context.Background(), c), domain.ErrIntegrity)
}

func TestSequence_CategoriaDuplicadaEsConflicto(t *testing.T) {
	pool := testPool(t)
	seq, _, cat := services(t, pool)
	_, err := seq.CreateCategory(context.Background(), sequence.CreateCategoryInput{Category: cat, Prefix: "X", PaddingWidth: 3, StartingValue: 1})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLedger_AppendReconstruccionEInmutabilidad(t *testing.T) {
	pool := testPool(t)
	_, led, _ := services(t, pool)
	ctx := context.Background()
	item := "PG-" + entity.NewCorrelationID()
	base := time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)

	n1, err := led.Append(ctx, ledger.MovementInput{
		ItemKey: item, Quantity: 100, Kind: entity.MovementKindReceipt, OccurredAt: base.AddDate(0, 0, 1),
		ToLocation: "BOD-A", UnitCost: decimal.RequireFromString("3.10"),
	}, pgActor(), entity.NewCorrelationID())
	require.NoError(t, err)
	_, err = led.Append(ctx, ledger.MovementInput{
		ItemKey: item, Quantity: -30, Kind: entity.MovementKindSale, OccurredAt: base.AddDate(0, 0, 3), FromLocation: "BOD-A",
	}, pgActor(), entity.NewCorrelationID())
	require.NoError(t, err)

	q, err := led.ComputeOnHand(ctx, item, base.AddDate(0, 0, 3), ledger.LocationFilter("BOD-A"))
	require.NoError(t, err)
	assert.Equal(t, int64(70), q)

	m, err := led.GetByNumber(ctx, n1)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("3.10").Equal(m.UnitCost))

	_, err = pool.Exec(ctx, `UPDATE movements SET quantity = 1 WHERE movement_number = $1`, n1)
	assert.Error(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM movements WHERE movement_number = $1`, n1)
	assert.Error(t, err)
}

func TestLedger_AppendConcurrenteNumerosUnicos(t *testing.T) {
	pool := testPool(t)
	_, led, _ := services(t, pool)
	item := "PG-" + entity.NewCorrelationID()
	const n = 30

	var mu sync.Mutex
	seen := map[string]bool{}
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			num, err := led.Append(ctx, ledger.MovementInput{
				ItemKey: item, Quantity: 1, Kind: entity.MovementKindReceipt,
			}, pgActor(), entity.NewCorrelationID())
			if err != nil {
				return err
			}
			mu.Lock()
			seen[num] = true
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, seen, n)

	q, err := led.ComputeOnHand(context.Background(), item, time.Now().UTC().Add(time.Minute), ledger.AllLocations)
	require.NoError(t, err)
	assert.Equal(t, int64(n), q)
}
