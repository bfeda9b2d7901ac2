package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind variante enumerada de un movimiento del ledger.
type MovementKind string

// Tipos de movimiento del ledger.
const (
	MovementKindReceipt     MovementKind = "RECEIPT"     // entrada (compra, recepción)
	MovementKindSale        MovementKind = "SALE"        // salida por venta
	MovementKindTransfer    MovementKind = "TRANSFER"    // traslado entre ubicaciones
	MovementKindAdjustment  MovementKind = "ADJUSTMENT"  // ajuste de conteo
	MovementKindReturn      MovementKind = "RETURN"      // devolución
	MovementKindCorrection  MovementKind = "CORRECTION"  // asiento compensatorio
	MovementKindProduction  MovementKind = "PRODUCTION"  // alta por producción de lote
	MovementKindDestruction MovementKind = "DESTRUCTION" // baja regulada (destrucción)
)

var movementKinds = map[MovementKind]struct{}{
	MovementKindReceipt:     {},
	MovementKindSale:        {},
	MovementKindTransfer:    {},
	MovementKindAdjustment:  {},
	MovementKindReturn:      {},
	MovementKindCorrection:  {},
	MovementKindProduction:  {},
	MovementKindDestruction: {},
}

// IsValid indica si el tipo es una variante conocida.
func (k MovementKind) IsValid() bool {
	_, ok := movementKinds[k]
	return ok
}

// ReferenceKindCorrection marca un movimiento que compensa a otro.
const ReferenceKindCorrection = "Correction"

// Movement es la única unidad del ledger: se crea con un append atómico, se lee muchas veces y nunca
// se actualiza ni se borra. Las cantidades en mano se derivan sumando movimientos.
type Movement struct {
	ID              string // typeid mov_…, asignado por el sistema
	MovementNumber  string // número legible, único, asignado al hacer append
	ItemKey         string // clave opaca del producto (referencia débil, no FK)
	BatchKey        string // lote de producción (opcional)
	Quantity        int64  // positivo = aumento, negativo = disminución
	UnitCost        decimal.Decimal
	Kind            MovementKind
	OccurredAt      time.Time // tiempo lógico del evento
	FromLocation    string
	ToLocation      string
	ReferenceNumber string // movimiento o documento externo referenciado
	ReferenceKind   string
	Reason          string
	Actor           ActorContext
	CorrelationID   string
	RecordedAt      time.Time // asignado por el almacenamiento
}

// Location devuelve la ubicación afectada: destino para aumentos, origen para disminuciones.
func (m Movement) Location() string {
	if m.Quantity < 0 {
		return m.FromLocation
	}
	return m.ToLocation
}

// IsCorrection indica si el movimiento compensa a otro.
func (m Movement) IsCorrection() bool {
	return m.Kind == MovementKindCorrection || m.ReferenceKind == ReferenceKindCorrection
}
