package sequence_test

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/infrastructure/sqlite"
	"github.com/jhoicas/stockledger/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

func newService(t *testing.T) *sequence.Service {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "seq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sequence.NewService(sqlite.NewTxRunner(db), sqlite.NewSequenceRepository(db), nil, logger.Nop(), retry.DefaultPolicy())
}

func createMovementCategory(t *testing.T, svc *sequence.Service, start int64) {
	t.Helper()
	_, err := svc.CreateCategory(context.Background(), sequence.CreateCategoryInput{
		Category:      "MOVEMENT",
		Prefix:        "MOV",
		PaddingWidth:  6,
		StartingValue: start,
		CreatedBy:     "test",
	})
	require.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────────────────────────────────

func TestGetNext_PrimerValorEsStartingValue(t *testing.T) {
	svc := newService(t)
	createMovementCategory(t, svc, 1000)
	ctx := context.Background()

	v, err := svc.GetNext(ctx, "MOVEMENT", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)

	v, err = svc.GetNext(ctx, "MOVEMENT", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), v)

	c, err := svc.Get(ctx, "MOVEMENT")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), c.CurrentValue)
	assert.Equal(t, "u1", c.LastIssuedBy)
	require.NotNil(t, c.LastIssuedAt)
}

func TestGetNextFormatted_RellenaConCeros(t *testing.T) {
	svc := newService(t)
	createMovementCategory(t, svc, 42)

	s, err := svc.GetNextFormatted(context.Background(), "MOVEMENT", "u1")
	require.NoError(t, err)
	assert.Equal(t, "MOV-000042", s)
}

func TestGetNext_ConcurrenteSinHuecosNiDuplicados(t *testing.T) {
	svc := newService(t)
	createMovementCategory(t, svc, 1)
	const n = 40

	var mu sync.Mutex
	values := make([]int64, 0, n)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := svc.GetNext(ctx, "MOVEMENT", "worker")
			if err != nil {
				return err
			}
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.Equal(t, int64(i+1), v, "valor %d", i)
	}
}

func TestCreateCategory_Validaciones(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   sequence.CreateCategoryInput
	}{
		{"prefijo mixto", sequence.CreateCategoryInput{Category: "A", Prefix: "MO1", PaddingWidth: 4, StartingValue: 1}},
		{"prefijo vacío", sequence.CreateCategoryInput{Category: "A", Prefix: "", PaddingWidth: 4, StartingValue: 1}},
		{"starting cero", sequence.CreateCategoryInput{Category: "A", Prefix: "MOV", PaddingWidth: 4, StartingValue: 0}},
		{"padding excesivo", sequence.CreateCategoryInput{Category: "A", Prefix: "MOV", PaddingWidth: 19, StartingValue: 1}},
		{"categoría vacía", sequence.CreateCategoryInput{Category: " ", Prefix: "MOV", PaddingWidth: 4, StartingValue: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateCategory(ctx, tc.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	_, err := svc.CreateCategory(ctx, sequence.CreateCategoryInput{Category: "NUM", Prefix: "2025", PaddingWidth: 4, StartingValue: 1})
	assert.NoError(t, err, "un prefijo solo numérico es válido")
}

func TestCreateCategory_DuplicadaEsConflicto(t *testing.T) {
	svc := newService(t)
	createMovementCategory(t, svc, 1)

	_, err := svc.CreateCategory(context.Background(), sequence.CreateCategoryInput{
		Category: "MOVEMENT", Prefix: "X", PaddingWidth: 4, StartingValue: 1,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestEnsureCategory_Idempotente(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	in := sequence.CreateCategoryInput{Category: "BATCH", Prefix: "LOT", PaddingWidth: 5, StartingValue: 1}

	_, err := svc.EnsureCategory(ctx, in)
	require.NoError(t, err)
	_, err = svc.GetNext(ctx, "BATCH", "u1")
	require.NoError(t, err)

	c, err := svc.EnsureCategory(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.CurrentValue, "no debe reiniciar una categoría existente")
}

func TestGetNext_CategoriaInexistente(t *testing.T) {
	svc := newService(t)
	_, err := svc.GetNext(context.Background(), "NOPE", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeactivateReactivate(t *testing.T) {
	svc := newService(t)
	createMovementCategory(t, svc, 1)
	ctx := context.Background()

	_, err := svc.GetNext(ctx, "MOVEMENT", "u1")
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, "MOVEMENT"))
	_, err = svc.GetNext(ctx, "MOVEMENT", "u1")
	assert.ErrorIs(t, err, domain.ErrInactive)

	require.NoError(t, svc.Reactivate(ctx, "MOVEMENT"))
	v, err := svc.GetNext(ctx, "MOVEMENT", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v, "la reactivación continúa donde quedó")

	assert.ErrorIs(t, svc.Deactivate(ctx, "NOPE"), domain.ErrNotFound)
}

func TestUpdateConfig_NoPermiteRetroceder(t *testing.T) {
	svc := newService(t)
	createMovementCategory(t, svc, 100)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.GetNext(ctx, "MOVEMENT", "u1")
		require.NoError(t, err)
	}

	lower := int64(50)
	_, err := svc.UpdateConfig(ctx, "MOVEMENT", sequence.UpdateConfigInput{CurrentValue: &lower})
	assert.ErrorIs(t, err, domain.ErrIntegrity)

	higher := int64(500)
	prefix := "MV"
	c, err := svc.UpdateConfig(ctx, "MOVEMENT", sequence.UpdateConfigInput{CurrentValue: &higher, Prefix: &prefix})
	require.NoError(t, err)
	assert.Equal(t, int64(500), c.CurrentValue)

	s, err := svc.GetNextFormatted(ctx, "MOVEMENT", "u1")
	require.NoError(t, err)
	assert.Equal(t, "MV-000501", s)

	mixed := "M1"
	_, err = svc.UpdateConfig(ctx, "MOVEMENT", sequence.UpdateConfigInput{Prefix: &mixed})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNext_RequiereSolicitante(t *testing.T) {
	svc := newService(t)
	createMovementCategory(t, svc, 1)
	_, err := svc.GetNext(context.Background(), "MOVEMENT", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestList(t *testing.T) {
	svc := newService(t)
	createMovementCategory(t, svc, 1)
	_, err := svc.CreateCategory(context.Background(), sequence.CreateCategoryInput{Category: "BATCH", Prefix: "LOT", PaddingWidth: 5, StartingValue: 1})
	require.NoError(t, err)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BATCH", list[0].Category)
	assert.Equal(t, "MOVEMENT", list[1].Category)
}
