package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockledger/internal/domain/entity"
)

// MovementRepository puerto de persistencia del ledger. Solo expone Insert y lecturas:
// no existe camino de actualización ni de borrado.
type MovementRepository interface {
	Insert(ctx context.Context, m *entity.Movement) error
	GetByNumber(ctx context.Context, number string) (*entity.Movement, error)
	ListByItem(ctx context.Context, itemKey string, limit, offset int) ([]*entity.Movement, error)
	ListByCorrelation(ctx context.Context, correlationID string) ([]*entity.Movement, error)
	ListInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*entity.Movement, error)
	// ListByReference devuelve los movimientos que referencian number, en orden de registro.
	ListByReference(ctx context.Context, number string) ([]*entity.Movement, error)
	// ScanItem recorre en orden de occurred_at los movimientos del ítem con occurred_at <= asOf
	// (y ubicación afectada = location si no es vacía). Si fn devuelve error el recorrido se detiene.
	ScanItem(ctx context.Context, itemKey, location string, asOf time.Time, fn func(*entity.Movement) error) error
}
