package identifier

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stockledger/internal/application/ports"
	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	codec "github.com/jhoicas/stockledger/internal/domain/identifier"
	"github.com/jhoicas/stockledger/internal/domain/repository"
	"github.com/jhoicas/stockledger/pkg/logger"
)

// MaxSerialsPerCall límite de GenerateSerialNumbers.
const MaxSerialsPerCall = 10000

// SerialBatch sub-lote abierto: fecha + código de categoría + secuencia de sub-lote.
type SerialBatch struct {
	Date         time.Time
	CategoryCode int
	SubBatch     int
}

// Service emite números de lote y de serie a partir de contadores de secuencia.
// El lote usa un contador global continuo; el sub-lote un contador derivado por (categoría, fecha)
// y la unidad un contador derivado por sub-lote. Los derivados se crean en el primer uso.
type Service struct {
	txRunner      sequence.TxRunner
	batchCategory string
	metrics       ports.MetricsRecorder
	log           *logger.Logger
	policy        retry.Policy
	now           func() time.Time
}

// NewService construye el servicio. batchCategory es la categoría del contador global de lotes.
func NewService(txRunner sequence.TxRunner, batchCategory string, metrics ports.MetricsRecorder, log *logger.Logger, policy retry.Policy) *Service {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if batchCategory == "" {
		batchCategory = "BATCH"
	}
	return &Service{
		txRunner:      txRunner,
		batchCategory: batchCategory,
		metrics:       metrics,
		log:           log.Named("identifier"),
		policy:        policy,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// GenerateBatchNumber emite AAAAMMDD + secuencia global. Si la secuencia excede su campo la
// transacción hace rollback y el contador no avanza.
func (s *Service) GenerateBatchNumber(ctx context.Context, date time.Time, requestedBy string, withCheck bool) (string, error) {
	out, err := s.issue(ctx, "identifier.batch", func(seqRepo repository.SequenceRepository) ([]string, error) {
		v, err := s.nextDerived(ctx, seqRepo, s.batchCategory, "LOT", requestedBy)
		if err != nil {
			return nil, err
		}
		n, err := codec.FormatBatch(date, v, withCheck)
		if err != nil {
			return nil, err
		}
		return []string{n}, nil
	})
	if err != nil {
		return "", err
	}
	s.metrics.SequenceIssued(s.batchCategory)
	return out[0], nil
}

// OpenSerialBatch abre el siguiente sub-lote de la categoría en la fecha dada.
func (s *Service) OpenSerialBatch(ctx context.Context, date time.Time, categoryCode int, requestedBy string) (SerialBatch, error) {
	if err := codec.ValidateCategoryCode(categoryCode); err != nil {
		return SerialBatch{}, err
	}
	date = codec.DateOnly(date)
	category := subBatchCategory(categoryCode, date)
	var sub int64
	_, err := s.issue(ctx, "identifier.sub_batch", func(seqRepo repository.SequenceRepository) ([]string, error) {
		v, err := s.nextDerived(ctx, seqRepo, category, "SB", requestedBy)
		if err != nil {
			return nil, err
		}
		if v > codec.MaxSubBatch {
			return nil, fmt.Errorf("%w: sub-lotes agotados para %d en %s", domain.ErrInvalidInput, categoryCode, date.Format(time.DateOnly))
		}
		sub = v
		return nil, nil
	})
	if err != nil {
		return SerialBatch{}, err
	}
	s.metrics.SequenceIssued(category)
	s.log.Info().Int("category_code", categoryCode).Int64("sub_batch", sub).Time("date", date).Msg("sub-lote abierto")
	return SerialBatch{Date: date, CategoryCode: categoryCode, SubBatch: int(sub)}, nil
}

// GenerateSerialNumber emite la siguiente unidad del sub-lote.
func (s *Service) GenerateSerialNumber(ctx context.Context, batch SerialBatch, requestedBy string, withCheck bool) (string, error) {
	out, err := s.GenerateSerialNumbers(ctx, batch, 1, requestedBy, withCheck)
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// GenerateSerialNumbers emite count unidades consecutivas del sub-lote en una sola transacción.
func (s *Service) GenerateSerialNumbers(ctx context.Context, batch SerialBatch, count int, requestedBy string, withCheck bool) ([]string, error) {
	if count < 1 || count > MaxSerialsPerCall {
		return nil, fmt.Errorf("%w: count debe estar entre 1 y %d", domain.ErrInvalidInput, MaxSerialsPerCall)
	}
	batch.Date = codec.DateOnly(batch.Date)
	// validar el sub-lote antes de tocar contadores
	if _, err := codec.FormatSerial(codec.SerialFields{Date: batch.Date, CategoryCode: batch.CategoryCode, SubBatch: batch.SubBatch}, false); err != nil {
		return nil, err
	}
	category := unitCategory(batch)
	out, err := s.issue(ctx, "identifier.serial", func(seqRepo repository.SequenceRepository) ([]string, error) {
		serials := make([]string, 0, count)
		for i := 0; i < count; i++ {
			v, err := s.nextDerived(ctx, seqRepo, category, "U", requestedBy)
			if err != nil {
				return nil, err
			}
			if v > codec.MaxUnit {
				return nil, fmt.Errorf("%w: unidades agotadas en el sub-lote %s", domain.ErrInvalidInput, category)
			}
			n, err := codec.FormatSerial(codec.SerialFields{
				Date:         batch.Date,
				CategoryCode: batch.CategoryCode,
				SubBatch:     batch.SubBatch,
				Unit:         int(v),
			}, withCheck)
			if err != nil {
				return nil, err
			}
			serials = append(serials, n)
		}
		return serials, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SequenceIssued(category)
	return out, nil
}

// ParseSerialNumber analiza un número de serie.
func (s *Service) ParseSerialNumber(serial string, withCheck bool) (codec.SerialFields, error) {
	return codec.ParseSerial(serial, withCheck)
}

// ParseBatchNumber analiza un número de lote.
func (s *Service) ParseBatchNumber(batch string, withCheck bool) (codec.BatchFields, error) {
	return codec.ParseBatch(batch, withCheck)
}

// ── helpers ──

func (s *Service) issue(ctx context.Context, op string, fn func(seqRepo repository.SequenceRepository) ([]string, error)) ([]string, error) {
	return retry.Do(ctx, s.policy, s.log, op, func(ctx context.Context) ([]string, error) {
		var out []string
		err := s.txRunner.RunSequence(ctx, func(seqRepo repository.SequenceRepository) error {
			var err error
			out, err = fn(seqRepo)
			return err
		})
		return out, err
	}, func() { s.metrics.AppendRetried(op) })
}

func (s *Service) nextDerived(ctx context.Context, seqRepo repository.SequenceRepository, category, prefix, requestedBy string) (int64, error) {
	v, _, err := sequence.NextOrCreate(ctx, seqRepo, entity.SequenceCounter{
		Category:      category,
		Prefix:        prefix,
		PaddingWidth:  5,
		StartingValue: 1,
	}, requestedBy, s.now())
	return v, err
}

func subBatchCategory(code int, date time.Time) string {
	return fmt.Sprintf("SUBBATCH-%03d-%s", code, date.Format("20060102"))
}

func unitCategory(b SerialBatch) string {
	return fmt.Sprintf("UNIT-%s-%03d-%03d", b.Date.Format("20060102"), b.CategoryCode, b.SubBatch)
}
