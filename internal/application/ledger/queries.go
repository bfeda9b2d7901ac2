package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/inventory"
)

// Límites de paginación.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Page paginación por offset.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// LocationFilter restringe la reconstrucción a una ubicación afectada. AllLocations no filtra.
type LocationFilter string

// AllLocations suma todas las ubicaciones.
const AllLocations LocationFilter = ""

// GetByNumber devuelve el movimiento o ErrNotFound.
func (s *Service) GetByNumber(ctx context.Context, number string) (*entity.Movement, error) {
	m, err := s.movRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: movimiento %q", domain.ErrNotFound, number)
	}
	return m, nil
}

// GetByItem lista los movimientos del ítem en orden de occurred_at.
func (s *Service) GetByItem(ctx context.Context, itemKey string, page Page) ([]*entity.Movement, error) {
	if strings.TrimSpace(itemKey) == "" {
		return nil, fmt.Errorf("%w: item_key es obligatorio", domain.ErrInvalidInput)
	}
	p := page.normalize()
	return s.movRepo.ListByItem(ctx, itemKey, p.Limit, p.Offset)
}

// GetByCorrelation devuelve todos los movimientos de una acción lógica en orden de registro.
func (s *Service) GetByCorrelation(ctx context.Context, correlationID string) ([]*entity.Movement, error) {
	if strings.TrimSpace(correlationID) == "" {
		return nil, fmt.Errorf("%w: correlation_id es obligatorio", domain.ErrInvalidInput)
	}
	return s.movRepo.ListByCorrelation(ctx, correlationID)
}

// GetInRange lista los movimientos con occurred_at en [from, to].
func (s *Service) GetInRange(ctx context.Context, from, to time.Time, page Page) ([]*entity.Movement, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: el rango termina antes de empezar", domain.ErrInvalidInput)
	}
	p := page.normalize()
	return s.movRepo.ListInRange(ctx, from.UTC(), to.UTC(), p.Limit, p.Offset)
}

// ComputeOnHand cantidad en mano del ítem al instante asOf (inclusive). Antes del primer movimiento
// es 0. Si ctx se cancela durante el recorrido devuelve ErrScanCancelled, nunca una suma parcial.
func (s *Service) ComputeOnHand(ctx context.Context, itemKey string, asOf time.Time, filter LocationFilter) (int64, error) {
	acc, err := s.reconstruct(ctx, itemKey, string(filter), asOf)
	if err != nil {
		return 0, err
	}
	return acc.Quantity(), nil
}

// ComputeValuation Σ quantity × unit_cost al instante asOf.
func (s *Service) ComputeValuation(ctx context.Context, itemKey string, asOf time.Time, filter LocationFilter) (decimal.Decimal, error) {
	acc, err := s.reconstruct(ctx, itemKey, string(filter), asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Value(), nil
}

// ComputeOnHandByLocation desglose por ubicación afectada al instante asOf.
func (s *Service) ComputeOnHandByLocation(ctx context.Context, itemKey string, asOf time.Time) (map[string]int64, error) {
	acc, err := s.reconstruct(ctx, itemKey, "", asOf)
	if err != nil {
		return nil, err
	}
	return acc.ByLocation(), nil
}

func (s *Service) reconstruct(ctx context.Context, itemKey, location string, asOf time.Time) (acc *inventory.OnHand, err error) {
	if strings.TrimSpace(itemKey) == "" {
		return nil, fmt.Errorf("%w: item_key es obligatorio", domain.ErrInvalidInput)
	}
	asOf = asOf.UTC()
	start := time.Now()
	defer func() {
		cancelled := errors.Is(err, domain.ErrScanCancelled)
		s.metrics.ReconstructionObserved(time.Since(start), cancelled)
		if cancelled {
			s.log.Warn().Str("item_key", itemKey).Msg("reconstrucción cancelada")
		}
	}()

	if cerr := ctx.Err(); cerr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrScanCancelled, cerr)
	}

	acc = inventory.NewOnHand(itemKey, location, asOf)
	rows := 0
	err = s.movRepo.ScanItem(ctx, itemKey, location, asOf, func(m *entity.Movement) error {
		rows++
		if rows%s.opts.ScanCheckpoint == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return fmt.Errorf("%w: %w", domain.ErrScanCancelled, cerr)
			}
		}
		acc.Add(m)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrScanCancelled) {
			return nil, err
		}
		// el driver puede abortar la consulta al cancelarse ctx antes del siguiente checkpoint
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", domain.ErrScanCancelled, err)
		}
		return nil, err
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrScanCancelled, cerr)
	}
	return acc, nil
}
