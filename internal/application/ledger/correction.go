package ledger

import (
	"context"
	"time"

	"github.com/jhoicas/stockledger/internal/domain/entity"
)

// CorrectionInput compensación por delta de un movimiento existente.
type CorrectionInput struct {
	OriginalNumber string
	Delta          int64 // cantidad a sumar: -5 corrige un exceso de 5
	Reason         string
	OccurredAt     time.Time // cero = OccurredAtUTC del actor
}

// CorrectionChain un movimiento original y sus correcciones en orden de registro.
type CorrectionChain struct {
	Original          *entity.Movement
	Corrections       []*entity.Movement
	EffectiveQuantity int64
}

// Correct registra un movimiento CORRECTION que referencia al original y copia su ítem, lote y
// ubicación afectada. El original no se toca. ErrNotFound si no existe; ErrInvalidInput con delta cero o
// motivo vacío.
func (s *Service) Correct(ctx context.Context, in CorrectionInput, actor entity.ActorContext, correlationID string) (string, error) {
	orig, err := s.GetByNumber(ctx, in.OriginalNumber)
	if err != nil {
		return "", err
	}
	mi := MovementInput{
		ItemKey:         orig.ItemKey,
		BatchKey:        orig.BatchKey,
		Quantity:        in.Delta,
		UnitCost:        orig.UnitCost,
		Kind:            entity.MovementKindCorrection,
		OccurredAt:      in.OccurredAt,
		ReferenceNumber: orig.MovementNumber,
		ReferenceKind:   entity.ReferenceKindCorrection,
		Reason:          in.Reason,
	}
	// la corrección afecta la misma ubicación que el original sea cual sea el signo del delta
	loc := orig.Location()
	mi.FromLocation, mi.ToLocation = loc, loc
	return s.Append(ctx, mi, actor, correlationID)
}

// GetCorrectionChain devuelve el original y sus correcciones. Si number es una corrección, la
// cadena se resuelve desde su original.
func (s *Service) GetCorrectionChain(ctx context.Context, number string) (*CorrectionChain, error) {
	m, err := s.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if m.IsCorrection() {
		if m, err = s.GetByNumber(ctx, m.ReferenceNumber); err != nil {
			return nil, err
		}
	}
	refs, err := s.movRepo.ListByReference(ctx, m.MovementNumber)
	if err != nil {
		return nil, err
	}
	chain := &CorrectionChain{Original: m, EffectiveQuantity: m.Quantity}
	for _, r := range refs {
		if !r.IsCorrection() {
			continue
		}
		chain.Corrections = append(chain.Corrections, r)
		chain.EffectiveQuantity += r.Quantity
	}
	return chain, nil
}
