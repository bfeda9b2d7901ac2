package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger/internal/application/ports"
	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
	"github.com/jhoicas/stockledger/pkg/logger"
)

// MinCorrectionReasonLength largo mínimo (en runas) del motivo de una corrección.
const MinCorrectionReasonLength = 10

// Options parámetros del servicio.
type Options struct {
	MovementCategory string // categoría del contador que numera movimientos
	ScanCheckpoint   int    // cada cuántas filas la reconstrucción revisa la cancelación
	Policy           retry.Policy
}

// Service es el único punto de escritura del ledger: append atómico de movimientos, compensación
// por delta y lecturas (trazabilidad y reconstrucción). No existe actualización ni borrado.
type Service struct {
	txRunner TxRunner
	movRepo  repository.MovementRepository
	metrics  ports.MetricsRecorder
	log      *logger.Logger
	opts     Options
	now      func() time.Time
}

// NewService construye el servicio. movRepo se usa para lecturas fuera de transacción.
func NewService(
	txRunner TxRunner,
	movRepo repository.MovementRepository,
	metrics ports.MetricsRecorder,
	log *logger.Logger,
	opts Options,
) *Service {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.MovementCategory == "" {
		opts.MovementCategory = "MOVEMENT"
	}
	if opts.ScanCheckpoint < 1 {
		opts.ScanCheckpoint = 1000
	}
	return &Service{
		txRunner: txRunner,
		movRepo:  movRepo,
		metrics:  metrics,
		log:      log.Named("ledger"),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MovementInput datos de un movimiento a registrar. Número, id y recorded_at los asigna el sistema.
type MovementInput struct {
	ItemKey         string
	BatchKey        string
	Quantity        int64
	UnitCost        decimal.Decimal
	Kind            entity.MovementKind
	OccurredAt      time.Time // cero = OccurredAtUTC del actor
	FromLocation    string
	ToLocation      string
	ReferenceNumber string
	ReferenceKind   string
	Reason          string
}

// TransferInput traslado entre dos ubicaciones: genera dos movimientos con la misma correlación.
type TransferInput struct {
	ItemKey         string
	BatchKey        string
	Quantity        int64 // > 0
	UnitCost        decimal.Decimal
	From            string
	To              string
	OccurredAt      time.Time
	ReferenceNumber string
	ReferenceKind   string
	Reason          string
}

// Append registra un movimiento y devuelve su número.
func (s *Service) Append(ctx context.Context, in MovementInput, actor entity.ActorContext, correlationID string) (string, error) {
	numbers, err := s.AppendMany(ctx, []MovementInput{in}, actor, correlationID)
	if err != nil {
		return "", err
	}
	return numbers[0], nil
}

// AppendTransfer registra la salida en From y la entrada en To bajo la misma correlación.
func (s *Service) AppendTransfer(ctx context.Context, in TransferInput, actor entity.ActorContext, correlationID string) ([]string, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("%w: la cantidad de un traslado debe ser positiva", domain.ErrInvalidInput)
	}
	if in.From == "" || in.To == "" || in.From == in.To {
		return nil, fmt.Errorf("%w: un traslado requiere origen y destino distintos", domain.ErrInvalidInput)
	}
	base := MovementInput{
		ItemKey:         in.ItemKey,
		BatchKey:        in.BatchKey,
		UnitCost:        in.UnitCost,
		Kind:            entity.MovementKindTransfer,
		OccurredAt:      in.OccurredAt,
		FromLocation:    in.From,
		ToLocation:      in.To,
		ReferenceNumber: in.ReferenceNumber,
		ReferenceKind:   in.ReferenceKind,
		Reason:          in.Reason,
	}
	out, in2 := base, base
	out.Quantity = -in.Quantity
	in2.Quantity = in.Quantity
	return s.AppendMany(ctx, []MovementInput{out, in2}, actor, correlationID)
}

// AppendMany registra varios movimientos de forma atómica bajo una misma correlación.
// Ante contención transitoria repite la operación completa; agotados los intentos devuelve
// domain.ErrTransient. Un número duplicado es domain.ErrIntegrity y no se reintenta.
func (s *Service) AppendMany(ctx context.Context, inputs []MovementInput, actor entity.ActorContext, correlationID string) ([]string, error) {
	if err := s.validateBatch(inputs, actor, correlationID); err != nil {
		s.metrics.AppendFailed(failureReason(err))
		return nil, err
	}

	movements, err := retry.Do(ctx, s.opts.Policy, s.log, "ledger.append", func(ctx context.Context) ([]*entity.Movement, error) {
		var posted []*entity.Movement
		err := s.txRunner.Run(ctx, func(movRepo repository.MovementRepository, seqRepo repository.SequenceRepository) error {
			var err error
			posted, err = s.AppendInTx(ctx, movRepo, seqRepo, inputs, actor, correlationID, s.now())
			return err
		})
		return posted, err
	}, func() { s.metrics.AppendRetried("ledger.append") })
	if err != nil {
		s.logFailure(err, correlationID)
		return nil, err
	}

	numbers := make([]string, len(movements))
	for i, m := range movements {
		numbers[i] = m.MovementNumber
		s.metrics.MovementAppended(string(m.Kind))
		s.metrics.SequenceIssued(s.opts.MovementCategory)
		s.log.Info().
			Str("movement_number", m.MovementNumber).
			Str("correlation_id", correlationID).
			Str("item_key", m.ItemKey).
			Int64("quantity", m.Quantity).
			Str("kind", string(m.Kind)).
			Msg("movimiento registrado")
	}
	return numbers, nil
}

// AppendInTx registra los movimientos usando repositorios atados a la transacción del llamador.
// No reintenta ni emite métricas: eso es responsabilidad de quien controla la transacción.
func (s *Service) AppendInTx(
	ctx context.Context,
	movRepo repository.MovementRepository,
	seqRepo repository.SequenceRepository,
	inputs []MovementInput,
	actor entity.ActorContext,
	correlationID string,
	now time.Time,
) ([]*entity.Movement, error) {
	if err := s.validateBatch(inputs, actor, correlationID); err != nil {
		return nil, err
	}
	posted := make([]*entity.Movement, 0, len(inputs))
	for _, in := range inputs {
		if in.Kind == entity.MovementKindCorrection {
			if err := checkCorrectionTarget(ctx, movRepo, in); err != nil {
				return nil, err
			}
		}
		value, counter, err := sequence.Next(ctx, seqRepo, s.opts.MovementCategory, actor.ActorID, now)
		if err != nil {
			return nil, fmt.Errorf("emitir número de movimiento: %w", err)
		}
		m := buildMovement(in, actor, correlationID)
		m.MovementNumber = counter.Render(value)
		if err := movRepo.Insert(ctx, m); err != nil {
			return nil, err
		}
		posted = append(posted, m)
	}
	return posted, nil
}

func buildMovement(in MovementInput, actor entity.ActorContext, correlationID string) *entity.Movement {
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = actor.OccurredAtUTC
	}
	refKind := in.ReferenceKind
	if in.Kind == entity.MovementKindCorrection {
		refKind = entity.ReferenceKindCorrection
	}
	actor.OccurredAtUTC = actor.OccurredAtUTC.UTC()
	return &entity.Movement{
		ID:              entity.NewMovementID(),
		ItemKey:         in.ItemKey,
		BatchKey:        in.BatchKey,
		Quantity:        in.Quantity,
		UnitCost:        in.UnitCost,
		Kind:            in.Kind,
		OccurredAt:      occurred.UTC(),
		FromLocation:    in.FromLocation,
		ToLocation:      in.ToLocation,
		ReferenceNumber: in.ReferenceNumber,
		ReferenceKind:   refKind,
		Reason:          strings.TrimSpace(in.Reason),
		Actor:           actor,
		CorrelationID:   correlationID,
	}
}

// ── validación ──

func (s *Service) validateBatch(inputs []MovementInput, actor entity.ActorContext, correlationID string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no hay movimientos para registrar", domain.ErrInvalidInput)
	}
	if err := actor.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(correlationID) == "" {
		return fmt.Errorf("%w: correlation_id es obligatorio", domain.ErrInvalidInput)
	}
	for i, in := range inputs {
		if err := ValidateMovement(in); err != nil {
			return fmt.Errorf("movimiento %d: %w", i, err)
		}
	}
	return nil
}

// ValidateMovement reglas de un movimiento que no requieren leer el almacenamiento.
func ValidateMovement(in MovementInput) error {
	switch {
	case strings.TrimSpace(in.ItemKey) == "":
		return fmt.Errorf("%w: item_key es obligatorio", domain.ErrInvalidInput)
	case in.Quantity == 0:
		return fmt.Errorf("%w: la cantidad no puede ser cero", domain.ErrInvalidInput)
	case !in.Kind.IsValid():
		return fmt.Errorf("%w: tipo de movimiento %q desconocido", domain.ErrInvalidInput, in.Kind)
	case in.UnitCost.IsNegative():
		return fmt.Errorf("%w: unit_cost no puede ser negativo", domain.ErrInvalidInput)
	}
	if in.Kind == entity.MovementKindCorrection {
		return validateCorrection(in)
	}
	if in.ReferenceKind == entity.ReferenceKindCorrection {
		return fmt.Errorf("%w: reference_kind %q exige tipo CORRECTION", domain.ErrInvalidInput, entity.ReferenceKindCorrection)
	}
	return nil
}

func validateCorrection(in MovementInput) error {
	if in.ReferenceNumber == "" {
		return fmt.Errorf("%w: una corrección debe referenciar el movimiento original", domain.ErrInvalidInput)
	}
	if in.ReferenceKind != "" && in.ReferenceKind != entity.ReferenceKindCorrection {
		return fmt.Errorf("%w: reference_kind de una corrección debe ser %q", domain.ErrInvalidInput, entity.ReferenceKindCorrection)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Reason)) < MinCorrectionReasonLength {
		return fmt.Errorf("%w: el motivo de la corrección debe describir la discrepancia (mínimo %d caracteres)",
			domain.ErrInvalidInput, MinCorrectionReasonLength)
	}
	return nil
}

// checkCorrectionTarget verifica dentro de la tx que el original exista, sea del mismo ítem y no sea
// a su vez una corrección (las correcciones se encadenan siempre al original).
func checkCorrectionTarget(ctx context.Context, movRepo repository.MovementRepository, in MovementInput) error {
	orig, err := movRepo.GetByNumber(ctx, in.ReferenceNumber)
	if err != nil {
		return err
	}
	if orig == nil {
		return fmt.Errorf("%w: movimiento original %q", domain.ErrNotFound, in.ReferenceNumber)
	}
	if orig.ItemKey != in.ItemKey {
		return fmt.Errorf("%w: la corrección debe ser del mismo ítem que %q", domain.ErrInvalidInput, in.ReferenceNumber)
	}
	if orig.IsCorrection() {
		return fmt.Errorf("%w: %q es una corrección; corrija el movimiento original %q",
			domain.ErrInvalidInput, in.ReferenceNumber, orig.ReferenceNumber)
	}
	return nil
}

// ── helpers ──

func (s *Service) logFailure(err error, correlationID string) {
	reason := failureReason(err)
	s.metrics.AppendFailed(reason)
	ev := s.log.Warn()
	if errors.Is(err, domain.ErrIntegrity) || errors.Is(err, domain.ErrTransient) {
		ev = s.log.Error()
	}
	ev.Err(err).Str("correlation_id", correlationID).Str("reason", reason).Msg("append rechazado")
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrIntegrity):
		return "integrity"
	case errors.Is(err, domain.ErrTransient):
		return "transient"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInactive):
		return "inactive"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "other"
}
