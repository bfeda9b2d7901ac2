package entity

import "time"

// Estados del documento aprobable (flujo externo al ledger).
const (
	DocumentStatusDraft     = "draft"
	DocumentStatusPending   = "pending"
	DocumentStatusApproved  = "approved"
	DocumentStatusCompleted = "completed"
	DocumentStatusRejected  = "rejected"
	DocumentStatusCancelled = "cancelled"
)

// documentTransitions transiciones permitidas: origen -> destinos.
var documentTransitions = map[string][]string{
	DocumentStatusDraft:    {DocumentStatusPending, DocumentStatusCancelled},
	DocumentStatusPending:  {DocumentStatusApproved, DocumentStatusRejected, DocumentStatusCancelled},
	DocumentStatusApproved: {DocumentStatusCompleted, DocumentStatusCancelled},
}

// CanTransition indica si el documento puede pasar del estado from al estado to.
func CanTransition(from, to string) bool {
	for _, s := range documentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus estados sin salida.
func IsTerminalStatus(status string) bool {
	switch status {
	case DocumentStatusCompleted, DocumentStatusRejected, DocumentStatusCancelled:
		return true
	}
	return false
}

// DocumentLine una línea que se convierte en un movimiento al completar el documento.
type DocumentLine struct {
	ItemKey      string       `json:"item_key"`
	BatchKey     string       `json:"batch_key,omitempty"`
	Kind         MovementKind `json:"kind"`
	Quantity     int64        `json:"quantity"`
	UnitCost     string       `json:"unit_cost,omitempty"`
	FromLocation string       `json:"from_location,omitempty"`
	ToLocation   string       `json:"to_location,omitempty"`
}

// Document documento de negocio (recepción, despacho, ajuste) que solo afecta el ledger al completarse.
type Document struct {
	ID            string
	Number        string // emitido por el contador de la categoría del tipo de documento
	Kind          string
	Status        string
	Lines         []DocumentLine
	CorrelationID string
	Reason        string   // motivo de rechazo o cancelación
	PostedNumbers []string // números de movimiento generados al completar
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
