package entity

import (
	"fmt"

	"github.com/google/uuid"
	"go.jetify.com/typeid/v2"
)

// PrefixMovement prefijo TypeID de los movimientos.
const PrefixMovement = "mov"

// NewMovementID genera un id K-ordenable con prefijo "mov_" que nunca se reutiliza.
func NewMovementID() string {
	tid, err := typeid.Generate(PrefixMovement)
	if err != nil {
		panic(fmt.Sprintf("entity: prefijo typeid inválido %q: %v", PrefixMovement, err))
	}
	return tid.String()
}

// NewCorrelationID genera un id de correlación para agrupar los movimientos de una acción lógica.
func NewCorrelationID() string {
	return uuid.New().String()
}
