package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger/internal/domain/entity"
)

// OnHand acumula la cantidad en mano derivada de movimientos (servicio de dominio).
// Cantidad(asOf) = Σ quantity de los movimientos con occurred_at <= asOf y, si se pide, ubicación
// afectada = location. No hay casos especiales: las correcciones son movimientos más.
type OnHand struct {
	itemKey    string
	location   string
	asOf       time.Time
	quantity   int64
	value      decimal.Decimal
	byLocation map[string]int64
	count      int
}

// NewOnHand crea el acumulador. location vacío = todas las ubicaciones.
func NewOnHand(itemKey, location string, asOf time.Time) *OnHand {
	return &OnHand{
		itemKey:    itemKey,
		location:   location,
		asOf:       asOf,
		value:      decimal.Zero,
		byLocation: make(map[string]int64),
	}
}

// Add suma m si cumple el filtro; devuelve si fue incluido.
// El empate exacto en asOf se incluye (<=).
func (o *OnHand) Add(m *entity.Movement) bool {
	if m.ItemKey != o.itemKey || m.OccurredAt.After(o.asOf) {
		return false
	}
	loc := m.Location()
	if o.location != "" && loc != o.location {
		return false
	}
	o.quantity += m.Quantity
	o.value = o.value.Add(decimal.NewFromInt(m.Quantity).Mul(m.UnitCost))
	o.byLocation[loc] += m.Quantity
	o.count++
	return true
}

// Quantity cantidad acumulada.
func (o *OnHand) Quantity() int64 { return o.quantity }

// Value Σ quantity × unit_cost.
func (o *OnHand) Value() decimal.Decimal { return o.value }

// Count número de movimientos incluidos.
func (o *OnHand) Count() int { return o.count }

// ByLocation copia del desglose por ubicación afectada ("" = sin ubicación).
func (o *OnHand) ByLocation() map[string]int64 {
	out := make(map[string]int64, len(o.byLocation))
	for k, v := range o.byLocation {
		out[k] = v
	}
	return out
}
