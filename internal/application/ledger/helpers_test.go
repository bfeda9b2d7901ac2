package ledger_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger/internal/application/ledger"
	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/infrastructure/sqlite"
	"github.com/jhoicas/stockledger/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var day0 = time.Date(2025, 12, 6, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return day0.AddDate(0, 0, n) }

type fixture struct {
	db     *sql.DB
	runner *sqlite.TxRunner
	svc    *ledger.Service
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

// newFixture abre una base SQLite temporal con la categoría MOVEMENT (MOV-000001…).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	runner := sqlite.NewTxRunner(db)
	seq := sequence.NewService(runner, sqlite.NewSequenceRepository(db), nil, logger.Nop(), fastPolicy())
	_, err = seq.CreateCategory(ctx, sequence.CreateCategoryInput{
		Category: "MOVEMENT", Prefix: "MOV", PaddingWidth: 6, StartingValue: 1,
	})
	require.NoError(t, err)

	return &fixture{db: db, runner: runner, svc: newLedger(runner, sqlite.NewMovementRepository(db), 1000)}
}

func newLedger(runner ledger.TxRunner, repo *sqlite.MovementRepo, checkpoint int) *ledger.Service {
	return ledger.NewService(runner, repo, nil, logger.Nop(), ledger.Options{
		MovementCategory: "MOVEMENT",
		ScanCheckpoint:   checkpoint,
		Policy:           fastPolicy(),
	})
}

func actor(at time.Time) entity.ActorContext {
	return entity.ActorContext{
		ActorID:       "user-1",
		ActorType:     entity.ActorTypeUser,
		Source:        "test",
		OccurredAtUTC: at,
	}
}

func receipt(item string, qty int64, at time.Time, loc string) ledger.MovementInput {
	return ledger.MovementInput{
		ItemKey:    item,
		Quantity:   qty,
		Kind:       entity.MovementKindReceipt,
		OccurredAt: at,
		ToLocation: loc,
	}
}

func sale(item string, qty int64, at time.Time, loc string) ledger.MovementInput {
	return ledger.MovementInput{
		ItemKey:      item,
		Quantity:     -qty,
		Kind:         entity.MovementKindSale,
		OccurredAt:   at,
		FromLocation: loc,
	}
}

func (f *fixture) append(t *testing.T, in ledger.MovementInput) string {
	t.Helper()
	n, err := f.svc.Append(context.Background(), in, actor(in.OccurredAt), entity.NewCorrelationID())
	require.NoError(t, err)
	return n
}
