package repository

import (
	"context"

	"github.com/jhoicas/stockledger/internal/domain/entity"
)

// SequenceRepository puerto de persistencia de contadores de secuencia.
type SequenceRepository interface {
	// Create falla con domain.ErrConflict si la categoría ya existe.
	Create(ctx context.Context, c *entity.SequenceCounter) error
	// Get devuelve nil, nil si la categoría no existe.
	Get(ctx context.Context, category string) (*entity.SequenceCounter, error)
	// GetForUpdate igual que Get pero bloquea la fila hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, category string) (*entity.SequenceCounter, error)
	List(ctx context.Context) ([]*entity.SequenceCounter, error)
	// Save persiste prefix, padding, current_value, is_active y last_issued_*.
	// El almacenamiento rechaza current_value menor al existente (domain.ErrIntegrity).
	Save(ctx context.Context, c *entity.SequenceCounter) error
}
