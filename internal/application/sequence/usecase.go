package sequence

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jhoicas/stockledger/internal/application/ports"
	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
	"github.com/jhoicas/stockledger/pkg/logger"
)

// Service administra contadores de secuencia por categoría. La numeración es continua en el
// tiempo (sin reinicio diario): con varias fuentes de emisión, reiniciar por día duplicaba números.
type Service struct {
	txRunner TxRunner
	repo     repository.SequenceRepository
	metrics  ports.MetricsRecorder
	log      *logger.Logger
	policy   retry.Policy
	now      func() time.Time
}

// NewService construye el caso de uso. repo se usa para lecturas y altas fuera de transacción.
func NewService(
	txRunner TxRunner,
	repo repository.SequenceRepository,
	metrics ports.MetricsRecorder,
	log *logger.Logger,
	policy retry.Policy,
) *Service {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		txRunner: txRunner,
		repo:     repo,
		metrics:  metrics,
		log:      log.Named("sequence"),
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateCategoryInput datos para dar de alta una categoría.
type CreateCategoryInput struct {
	Category      string
	Prefix        string
	PaddingWidth  int
	StartingValue int64
	CreatedBy     string
}

// UpdateConfigInput cambios de configuración; nil = sin cambio.
type UpdateConfigInput struct {
	Prefix       *string
	PaddingWidth *int
	CurrentValue *int64
}

// CreateCategory crea la categoría. ErrConflict si ya existe; ErrInvalidInput si el prefijo mezcla
// letras y dígitos o StartingValue < 1.
func (s *Service) CreateCategory(ctx context.Context, in CreateCategoryInput) (*entity.SequenceCounter, error) {
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		return nil, fmt.Errorf("%w: category es obligatoria", domain.ErrInvalidInput)
	}
	if err := entity.ValidatePrefix(in.Prefix); err != nil {
		return nil, err
	}
	if err := entity.ValidatePaddingWidth(in.PaddingWidth); err != nil {
		return nil, err
	}
	if in.StartingValue < 1 {
		return nil, fmt.Errorf("%w: starting_value debe ser >= 1", domain.ErrInvalidInput)
	}
	now := s.now()
	c := &entity.SequenceCounter{
		Category:      in.Category,
		Prefix:        in.Prefix,
		PaddingWidth:  in.PaddingWidth,
		StartingValue: in.StartingValue,
		CurrentValue:  in.StartingValue - 1,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info().Str("category", c.Category).Str("prefix", c.Prefix).Int64("starting_value", c.StartingValue).Str("created_by", in.CreatedBy).Msg("categoría de secuencia creada")
	return c, nil
}

// EnsureCategory crea la categoría si no existe; si existe devuelve la actual sin modificarla.
func (s *Service) EnsureCategory(ctx context.Context, in CreateCategoryInput) (*entity.SequenceCounter, error) {
	c, err := s.CreateCategory(ctx, in)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, err
	}
	return s.Get(ctx, strings.TrimSpace(in.Category))
}

// Get devuelve la categoría o ErrNotFound.
func (s *Service) Get(ctx context.Context, category string) (*entity.SequenceCounter, error) {
	c, err := s.repo.Get(ctx, category)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: categoría de secuencia %q", domain.ErrNotFound, category)
	}
	return c, nil
}

// List devuelve todas las categorías.
func (s *Service) List(ctx context.Context) ([]*entity.SequenceCounter, error) {
	return s.repo.List(ctx)
}

// GetNext emite el siguiente valor de la categoría en su propia transacción.
// N llamadas concurrentes obtienen exactamente {actual+1 … actual+N}.
func (s *Service) GetNext(ctx context.Context, category, requestedBy string) (int64, error) {
	v, _, err := s.issue(ctx, category, requestedBy)
	return v, err
}

// GetNextFormatted emite el siguiente valor y lo devuelve renderizado (prefix-000123).
func (s *Service) GetNextFormatted(ctx context.Context, category, requestedBy string) (string, error) {
	v, c, err := s.issue(ctx, category, requestedBy)
	if err != nil {
		return "", err
	}
	return c.Render(v), nil
}

func (s *Service) issue(ctx context.Context, category, requestedBy string) (int64, *entity.SequenceCounter, error) {
	type issued struct {
		value   int64
		counter *entity.SequenceCounter
	}
	res, err := retry.Do(ctx, s.policy, s.log, "sequence.next", func(ctx context.Context) (issued, error) {
		var out issued
		err := s.txRunner.RunSequence(ctx, func(seqRepo repository.SequenceRepository) error {
			v, c, err := Next(ctx, seqRepo, category, requestedBy, s.now())
			out = issued{value: v, counter: c}
			return err
		})
		return out, err
	}, func() { s.metrics.AppendRetried("sequence.next") })
	if err != nil {
		return 0, nil, err
	}
	s.metrics.SequenceIssued(category)
	s.log.Debug().Str("category", category).Int64("value", res.value).Str("requested_by", requestedBy).Msg("secuencia emitida")
	return res.value, res.counter, nil
}

// Next incrementa atómicamente la categoría usando seqRepo, que debe estar atado a la transacción
// del llamador: si la transacción hace rollback el valor no se consume.
func Next(ctx context.Context, seqRepo repository.SequenceRepository, category, requestedBy string, now time.Time) (int64, *entity.SequenceCounter, error) {
	if requestedBy == "" {
		return 0, nil, fmt.Errorf("%w: requested_by es obligatorio", domain.ErrInvalidInput)
	}
	c, err := seqRepo.GetForUpdate(ctx, category)
	if err != nil {
		return 0, nil, err
	}
	if c == nil {
		return 0, nil, fmt.Errorf("%w: categoría de secuencia %q", domain.ErrNotFound, category)
	}
	if !c.IsActive {
		return 0, nil, fmt.Errorf("%w: %q", domain.ErrInactive, category)
	}
	if c.CurrentValue == math.MaxInt64 {
		return 0, nil, fmt.Errorf("%w: categoría %q agotada", domain.ErrIntegrity, category)
	}
	c.CurrentValue++
	c.LastIssuedAt = &now
	c.LastIssuedBy = requestedBy
	c.UpdatedAt = now
	if err := seqRepo.Save(ctx, c); err != nil {
		return 0, nil, err
	}
	return c.CurrentValue, c, nil
}

// NextOrCreate igual que Next pero da de alta la categoría con la plantilla tmpl si aún no existe
// (contadores derivados). Si otra transacción la crea en paralelo el alta choca y se devuelve
// ErrConcurrencyConflict para que el llamador repita la operación completa.
func NextOrCreate(ctx context.Context, seqRepo repository.SequenceRepository, tmpl entity.SequenceCounter, requestedBy string, now time.Time) (int64, *entity.SequenceCounter, error) {
	existing, err := seqRepo.Get(ctx, tmpl.Category)
	if err != nil {
		return 0, nil, err
	}
	if existing == nil {
		if tmpl.StartingValue < 1 {
			tmpl.StartingValue = 1
		}
		tmpl.CurrentValue = tmpl.StartingValue - 1
		tmpl.IsActive = true
		tmpl.CreatedAt, tmpl.UpdatedAt = now, now
		err := seqRepo.Create(ctx, &tmpl)
		if errors.Is(err, domain.ErrConflict) {
			return 0, nil, fmt.Errorf("%w: alta concurrente de %q", domain.ErrConcurrencyConflict, tmpl.Category)
		}
		if err != nil {
			return 0, nil, err
		}
	}
	return Next(ctx, seqRepo, tmpl.Category, requestedBy, now)
}

// Deactivate suspende la emisión sin tocar current_value.
func (s *Service) Deactivate(ctx context.Context, category string) error {
	return s.setActive(ctx, category, false)
}

// Reactivate reanuda la emisión desde el valor donde quedó.
func (s *Service) Reactivate(ctx context.Context, category string) error {
	return s.setActive(ctx, category, true)
}

func (s *Service) setActive(ctx context.Context, category string, active bool) error {
	err := s.txRunner.RunSequence(ctx, func(seqRepo repository.SequenceRepository) error {
		c, err := lockExisting(ctx, seqRepo, category)
		if err != nil {
			return err
		}
		c.IsActive = active
		c.UpdatedAt = s.now()
		return seqRepo.Save(ctx, c)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("category", category).Bool("active", active).Msg("estado de categoría actualizado")
	return nil
}

// UpdateConfig cambia prefijo, relleno o avanza current_value. Nunca permite bajar current_value
// (ErrIntegrity).
func (s *Service) UpdateConfig(ctx context.Context, category string, in UpdateConfigInput) (*entity.SequenceCounter, error) {
	var updated *entity.SequenceCounter
	err := s.txRunner.RunSequence(ctx, func(seqRepo repository.SequenceRepository) error {
		c, err := lockExisting(ctx, seqRepo, category)
		if err != nil {
			return err
		}
		if in.Prefix != nil {
			if err := entity.ValidatePrefix(*in.Prefix); err != nil {
				return err
			}
			c.Prefix = *in.Prefix
		}
		if in.PaddingWidth != nil {
			if err := entity.ValidatePaddingWidth(*in.PaddingWidth); err != nil {
				return err
			}
			c.PaddingWidth = *in.PaddingWidth
		}
		if in.CurrentValue != nil {
			if *in.CurrentValue < c.CurrentValue {
				return fmt.Errorf("%w: current_value %d menor al actual %d en %q",
					domain.ErrIntegrity, *in.CurrentValue, c.CurrentValue, category)
			}
			c.CurrentValue = *in.CurrentValue
		}
		c.UpdatedAt = s.now()
		updated = c
		return seqRepo.Save(ctx, c)
	})
	if err != nil {
		if errors.Is(err, domain.ErrIntegrity) {
			s.log.Warn().Err(err).Str("category", category).Msg("intento de disminuir un contador rechazado")
		}
		return nil, err
	}
	return updated, nil
}

func lockExisting(ctx context.Context, seqRepo repository.SequenceRepository, category string) (*entity.SequenceCounter, error) {
	c, err := seqRepo.GetForUpdate(ctx, category)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: categoría de secuencia %q", domain.ErrNotFound, category)
	}
	return c, nil
}
