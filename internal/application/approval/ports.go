package approval

import (
	"context"

	"github.com/jhoicas/stockledger/internal/domain/repository"
)

// TxRunner ejecuta una función en una transacción con los repositorios de documentos, movimientos y
// secuencias atados a ella: completar un documento y registrar sus movimientos es una sola unidad.
type TxRunner interface {
	RunDocument(ctx context.Context, fn func(
		movRepo repository.MovementRepository,
		seqRepo repository.SequenceRepository,
		docRepo repository.DocumentRepository,
	) error) error
}
