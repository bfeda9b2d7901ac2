package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger/internal/application/ledger"
	"github.com/jhoicas/stockledger/internal/application/ports"
	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
	"github.com/jhoicas/stockledger/pkg/logger"
)

// ReferenceKindDocument marca los movimientos generados al completar un documento.
const ReferenceKindDocument = "Document"

// Tipos de documento y el prefijo de su numeración.
var documentPrefixes = map[string]string{
	"RECEIPT":    "REC",
	"DISPATCH":   "DSP",
	"ADJUSTMENT": "ADJ",
	"TRANSFER":   "TRF",
}

// Service flujo de aprobación de documentos: draft → pending → approved → completed, con rejected y
// cancelled como estados terminales. Solo Complete escribe en el ledger, una única vez.
type Service struct {
	txRunner TxRunner
	docRepo  repository.DocumentRepository
	ledger   *ledger.Service
	metrics  ports.MetricsRecorder
	log      *logger.Logger
	policy   retry.Policy
	now      func() time.Time
}

// NewService construye el flujo.
func NewService(
	txRunner TxRunner,
	docRepo repository.DocumentRepository,
	ledgerSvc *ledger.Service,
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
		docRepo:  docRepo,
		ledger:   ledgerSvc,
		metrics:  metrics,
		log:      log.Named("approval"),
		policy:   policy,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateDraftInput datos de un documento nuevo.
type CreateDraftInput struct {
	Kind      string
	Lines     []entity.DocumentLine
	CreatedBy string
}

// CreateDraft valida las líneas, numera el documento con el contador de su tipo y lo deja en draft.
func (s *Service) CreateDraft(ctx context.Context, in CreateDraftInput) (*entity.Document, error) {
	kind := strings.ToUpper(strings.TrimSpace(in.Kind))
	prefix, ok := documentPrefixes[kind]
	if !ok {
		return nil, fmt.Errorf("%w: tipo de documento %q desconocido", domain.ErrInvalidInput, in.Kind)
	}
	if in.CreatedBy == "" {
		return nil, fmt.Errorf("%w: created_by es obligatorio", domain.ErrInvalidInput)
	}
	if len(in.Lines) == 0 {
		return nil, fmt.Errorf("%w: el documento no tiene líneas", domain.ErrInvalidInput)
	}
	for i, l := range in.Lines {
		mi, err := lineToInput(l, "")
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", i, err)
		}
		if err := ledger.ValidateMovement(mi); err != nil {
			return nil, fmt.Errorf("línea %d: %w", i, err)
		}
	}

	doc, err := retry.Do(ctx, s.policy, s.log, "approval.create", func(ctx context.Context) (*entity.Document, error) {
		var d *entity.Document
		err := s.txRunner.RunDocument(ctx, func(_ repository.MovementRepository, seqRepo repository.SequenceRepository, docRepo repository.DocumentRepository) error {
			now := s.now()
			value, counter, err := sequence.NextOrCreate(ctx, seqRepo, entity.SequenceCounter{
				Category:      "DOCUMENT-" + kind,
				Prefix:        prefix,
				PaddingWidth:  6,
				StartingValue: 1,
			}, in.CreatedBy, now)
			if err != nil {
				return err
			}
			d = &entity.Document{
				ID:            uuid.New().String(),
				Number:        counter.Render(value),
				Kind:          kind,
				Status:        entity.DocumentStatusDraft,
				Lines:         in.Lines,
				CorrelationID: entity.NewCorrelationID(),
				CreatedBy:     in.CreatedBy,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			return docRepo.Create(ctx, d)
		})
		return d, err
	}, func() { s.metrics.AppendRetried("approval.create") })
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("number", doc.Number).Str("kind", kind).Msg("documento creado")
	return doc, nil
}

// Get devuelve el documento o ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*entity.Document, error) {
	d, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: documento %q", domain.ErrNotFound, id)
	}
	return d, nil
}

// Submit draft → pending.
func (s *Service) Submit(ctx context.Context, id, by string) (*entity.Document, error) {
	return s.transition(ctx, id, entity.DocumentStatusPending, by, "")
}

// Approve pending → approved.
func (s *Service) Approve(ctx context.Context, id, by string) (*entity.Document, error) {
	return s.transition(ctx, id, entity.DocumentStatusApproved, by, "")
}

// Reject pending → rejected. El motivo es obligatorio.
func (s *Service) Reject(ctx context.Context, id, by, reason string) (*entity.Document, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: el rechazo requiere motivo", domain.ErrInvalidInput)
	}
	return s.transition(ctx, id, entity.DocumentStatusRejected, by, reason)
}

// Cancel draft|pending|approved → cancelled. El motivo es obligatorio.
func (s *Service) Cancel(ctx context.Context, id, by, reason string) (*entity.Document, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: la cancelación requiere motivo", domain.ErrInvalidInput)
	}
	return s.transition(ctx, id, entity.DocumentStatusCancelled, by, reason)
}

// Complete approved → completed. En la misma transacción registra todas las líneas en el ledger
// (un solo AppendInTx, con la correlación del documento) y guarda los números de movimiento.
// Un documento completado no puede volver a registrar.
func (s *Service) Complete(ctx context.Context, id string, actor entity.ActorContext) (*entity.Document, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	var posted []*entity.Movement
	doc, err := retry.Do(ctx, s.policy, s.log, "approval.complete", func(ctx context.Context) (*entity.Document, error) {
		var d *entity.Document
		err := s.txRunner.RunDocument(ctx, func(movRepo repository.MovementRepository, seqRepo repository.SequenceRepository, docRepo repository.DocumentRepository) error {
			var err error
			if d, err = lockForTransition(ctx, docRepo, id, entity.DocumentStatusCompleted); err != nil {
				return err
			}
			inputs := make([]ledger.MovementInput, len(d.Lines))
			for i, l := range d.Lines {
				if inputs[i], err = lineToInput(l, d.Number); err != nil {
					return fmt.Errorf("línea %d: %w", i, err)
				}
			}
			now := s.now()
			posted, err = s.ledger.AppendInTx(ctx, movRepo, seqRepo, inputs, actor, d.CorrelationID, now)
			if err != nil {
				return err
			}
			d.PostedNumbers = make([]string, len(posted))
			for i, m := range posted {
				d.PostedNumbers[i] = m.MovementNumber
			}
			d.Status = entity.DocumentStatusCompleted
			d.UpdatedAt = now
			return docRepo.Update(ctx, d)
		})
		return d, err
	}, func() { s.metrics.AppendRetried("approval.complete") })
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", id).Msg("no se pudo completar el documento")
		return nil, err
	}
	log := s.log.WithCorrelation(doc.CorrelationID)
	for _, m := range posted {
		s.metrics.MovementAppended(string(m.Kind))
		log.Debug().Str("movement_number", m.MovementNumber).Str("item_key", m.ItemKey).Int64("quantity", m.Quantity).Msg("línea registrada")
	}
	log.Info().
		Str("document_id", doc.ID).
		Str("number", doc.Number).
		Int("movements", len(posted)).
		Msg("documento completado y registrado en el ledger")
	return doc, nil
}

func (s *Service) transition(ctx context.Context, id, to, by, reason string) (*entity.Document, error) {
	if by == "" {
		return nil, fmt.Errorf("%w: se requiere quién ejecuta la transición", domain.ErrInvalidInput)
	}
	var doc *entity.Document
	err := s.txRunner.RunDocument(ctx, func(_ repository.MovementRepository, _ repository.SequenceRepository, docRepo repository.DocumentRepository) error {
		d, err := lockForTransition(ctx, docRepo, id, to)
		if err != nil {
			return err
		}
		d.Status = to
		if reason != "" {
			d.Reason = strings.TrimSpace(reason)
		}
		d.UpdatedAt = s.now()
		doc = d
		return docRepo.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", id).Str("status", to).Str("by", by).Msg("transición de documento")
	return doc, nil
}

// ── helpers ──

func lockForTransition(ctx context.Context, docRepo repository.DocumentRepository, id, to string) (*entity.Document, error) {
	d, err := docRepo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: documento %q", domain.ErrNotFound, id)
	}
	if !entity.CanTransition(d.Status, to) {
		return nil, fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, d.Status, to)
	}
	return d, nil
}

// lineToInput convierte una línea en movimiento que referencia al documento. Las correcciones no
// viajan en documentos: se registran con ledger.Correct contra el movimiento original.
func lineToInput(l entity.DocumentLine, docNumber string) (ledger.MovementInput, error) {
	if l.Kind == entity.MovementKindCorrection {
		return ledger.MovementInput{}, fmt.Errorf("%w: un documento no admite líneas CORRECTION", domain.ErrInvalidInput)
	}
	cost := decimal.Zero
	if l.UnitCost != "" {
		c, err := decimal.NewFromString(l.UnitCost)
		if err != nil {
			return ledger.MovementInput{}, fmt.Errorf("%w: unit_cost %q", domain.ErrInvalidInput, l.UnitCost)
		}
		cost = c
	}
	return ledger.MovementInput{
		ItemKey:         l.ItemKey,
		BatchKey:        l.BatchKey,
		Quantity:        l.Quantity,
		UnitCost:        cost,
		Kind:            l.Kind,
		FromLocation:    l.FromLocation,
		ToLocation:      l.ToLocation,
		ReferenceNumber: docNumber,
		ReferenceKind:   ReferenceKindDocument,
	}, nil
}
