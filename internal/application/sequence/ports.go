package sequence

import (
	"context"

	"github.com/jhoicas/stockledger/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD con el repositorio de secuencias
// atado a esa tx. El incremento (bloqueo de fila + escritura) ocurre completo o no ocurre.
type TxRunner interface {
	RunSequence(ctx context.Context, fn func(seqRepo repository.SequenceRepository) error) error
}
