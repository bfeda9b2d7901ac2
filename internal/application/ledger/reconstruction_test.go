package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger/internal/application/ledger"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/pkg/logger"
)

func TestComputeOnHand_ConsultaTemporal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.append(t, receipt("SKU-1", 100, day(1), "BOD-A"))
	f.append(t, sale("SKU-1", 30, day(3), "BOD-A"))
	f.append(t, receipt("SKU-1", 50, day(7), "BOD-A"))

	cases := []struct {
		asOf time.Time
		want int64
	}{
		{day(0), 0},
		{day(1).Add(-time.Nanosecond), 0},
		{day(1), 100}, // empate exacto incluido
		{day(2), 100},
		{day(3), 70},
		{day(5), 70},
		{day(7), 120},
		{day(30), 120},
	}
	for _, tc := range cases {
		got, err := f.svc.ComputeOnHand(ctx, "SKU-1", tc.asOf, ledger.AllLocations)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "asOf %s", tc.asOf)
	}
}

func TestComputeOnHand_OrdenDeRegistroIrrelevante(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// registrados fuera de orden respecto de occurred_at
	f.append(t, receipt("SKU-1", 50, day(7), ""))
	f.append(t, sale("SKU-1", 30, day(3), ""))
	f.append(t, receipt("SKU-1", 100, day(1), ""))

	got, err := f.svc.ComputeOnHand(ctx, "SKU-1", day(3), ledger.AllLocations)
	require.NoError(t, err)
	assert.Equal(t, int64(70), got)
}

func TestComputeOnHand_ItemSinMovimientos(t *testing.T) {
	f := newFixture(t)
	got, err := f.svc.ComputeOnHand(context.Background(), "SKU-NONE", day(10), ledger.AllLocations)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = f.svc.ComputeOnHand(context.Background(), "", day(10), ledger.AllLocations)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestComputeOnHand_ContextoYaCancelado(t *testing.T) {
	f := newFixture(t)
	f.append(t, receipt("SKU-1", 100, day(1), ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.ComputeOnHand(ctx, "SKU-1", day(2), ledger.AllLocations)
	require.ErrorIs(t, err, domain.ErrScanCancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeOnHand_CancelacionDuranteRecorridoNoDevuelveParcial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := &scriptedRepo{rows: 10, cancelAt: 3, cancel: cancel}
	svc := ledger.NewService(nil, repo, nil, logger.Nop(), ledger.Options{ScanCheckpoint: 2})

	got, err := svc.ComputeOnHand(ctx, "SKU-1", day(30), ledger.AllLocations)
	require.ErrorIs(t, err, domain.ErrScanCancelled)
	assert.Zero(t, got)
	assert.Less(t, repo.delivered, repo.rows, "el recorrido debe detenerse en el checkpoint")
}

// scriptedRepo entrega rows movimientos de +1 y cancela el contexto tras cancelAt filas.
type scriptedRepo struct {
	rows      int
	cancelAt  int
	cancel    context.CancelFunc
	delivered int
}

func (r *scriptedRepo) ScanItem(_ context.Context, itemKey, _ string, _ time.Time, fn func(*entity.Movement) error) error {
	for i := 0; i < r.rows; i++ {
		r.delivered++
		if r.delivered == r.cancelAt {
			r.cancel()
		}
		if err := fn(&entity.Movement{ItemKey: itemKey, Quantity: 1, OccurredAt: day(1)}); err != nil {
			return err
		}
	}
	return nil
}

func (r *scriptedRepo) Insert(context.Context, *entity.Movement) error { return errors.New("no usado") }
func (r *scriptedRepo) GetByNumber(context.Context, string) (*entity.Movement, error) {
	return nil, nil
}
func (r *scriptedRepo) ListByItem(context.Context, string, int, int) ([]*entity.Movement, error) {
	return nil, nil
}
func (r *scriptedRepo) ListByCorrelation(context.Context, string) ([]*entity.Movement, error) {
	return nil, nil
}
func (r *scriptedRepo) ListInRange(context.Context, time.Time, time.Time, int, int) ([]*entity.Movement, error) {
	return nil, nil
}
func (r *scriptedRepo) ListByReference(context.Context, string) ([]*entity.Movement, error) {
	return nil, nil
}
