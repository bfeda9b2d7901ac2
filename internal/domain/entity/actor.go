package entity

import (
	"fmt"
	"time"

	"github.com/jhoicas/stockledger/internal/domain"
)

// ActorType clasifica quién origina un cambio.
type ActorType string

// Tipos de actor.
const (
	ActorTypeUser        ActorType = "USER"
	ActorTypeSystem      ActorType = "SYSTEM"
	ActorTypeIntegration ActorType = "INTEGRATION"
	ActorTypeScheduler   ActorType = "SCHEDULER"
)

// IsValid indica si el tipo de actor es conocido.
func (t ActorType) IsValid() bool {
	switch t {
	case ActorTypeUser, ActorTypeSystem, ActorTypeIntegration, ActorTypeScheduler:
		return true
	}
	return false
}

// ActorContext metadatos causales obligatorios en cada append. Se pasa explícitamente en cada
// llamada; no existe un "actor actual" global.
type ActorContext struct {
	ActorID       string
	ActorType     ActorType
	Source        string // sistema o pantalla de origen (ej. "approval", "pos", "cli")
	OccurredAtUTC time.Time
}

// Validate exige todos los campos del actor.
func (a ActorContext) Validate() error {
	switch {
	case a.ActorID == "":
		return fmt.Errorf("%w: actor_id es obligatorio", domain.ErrInvalidInput)
	case !a.ActorType.IsValid():
		return fmt.Errorf("%w: actor_type %q desconocido", domain.ErrInvalidInput, a.ActorType)
	case a.Source == "":
		return fmt.Errorf("%w: source es obligatorio", domain.ErrInvalidInput)
	case a.OccurredAtUTC.IsZero():
		return fmt.Errorf("%w: occurred_at del actor es obligatorio", domain.ErrInvalidInput)
	}
	return nil
}
