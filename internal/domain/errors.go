package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrConflict            = errors.New("conflicto con el estado actual")
	ErrInactive            = errors.New("categoría de secuencia inactiva")
	ErrIntegrity           = errors.New("violación de integridad")
	ErrConcurrencyConflict = errors.New("contención concurrente transitoria")
	ErrTransient           = errors.New("falla transitoria: reintentos agotados")
	ErrScanCancelled       = errors.New("reconstrucción cancelada")

	// ErrInvalidTransition envuelve ErrConflict: el documento no admite esa transición en su estado actual.
	ErrInvalidTransition = fmt.Errorf("%w: transición de estado inválida", ErrConflict)
)

// IsRetryable indica si el error es transitorio y la operación completa puede repetirse.
// ErrIntegrity nunca es reintentable: indica un defecto que debe ver un operador.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrIntegrity) {
		return false
	}
	return errors.Is(err, ErrConcurrencyConflict)
}
