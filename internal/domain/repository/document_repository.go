package repository

import (
	"context"

	"github.com/jhoicas/stockledger/internal/domain/entity"
)

// DocumentRepository puerto de persistencia de documentos aprobables.
type DocumentRepository interface {
	Create(ctx context.Context, d *entity.Document) error
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Document, error)
	Update(ctx context.Context, d *entity.Document) error
}
