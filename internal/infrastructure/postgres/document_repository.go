package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

const documentColumns = `
	id, number, kind, status, lines, correlation_id, reason, posted_numbers, created_by, created_at, updated_at`

// DocumentRepo documentos aprobables sobre PostgreSQL (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

// Create persiste un documento nuevo.
func (r *DocumentRepo) Create(ctx context.Context, d *entity.Document) error {
	lines, posted, err := marshalDocument(d)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO documents (id, number, kind, status, lines, correlation_id, reason, posted_numbers, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.q.Exec(ctx, query,
		d.ID, d.Number, d.Kind, d.Status, lines, d.CorrelationID, nullIfEmpty(d.Reason), posted,
		d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	)
	return mapError(err, "create document")
}

// GetByID devuelve nil, nil si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
}

// GetForUpdate igual que GetByID bloqueando la fila (SELECT FOR UPDATE).
func (r *DocumentRepo) GetForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	return r.get(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id)
}

// Update persiste estado, motivo y números registrados.
func (r *DocumentRepo) Update(ctx context.Context, d *entity.Document) error {
	_, posted, err := marshalDocument(d)
	if err != nil {
		return err
	}
	query := `
		UPDATE documents SET status = $2, reason = $3, posted_numbers = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, d.ID, d.Status, nullIfEmpty(d.Reason), posted, d.UpdatedAt)
	if err != nil {
		return mapError(err, "update document")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update document: %w: %q", domain.ErrNotFound, d.ID)
	}
	return nil
}

// ── helpers ──

func (r *DocumentRepo) get(ctx context.Context, query, id string) (*entity.Document, error) {
	var d entity.Document
	var lines, posted []byte
	var reason *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Number, &d.Kind, &d.Status, &lines, &d.CorrelationID, &reason, &posted,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, "get document")
	}
	if err := json.Unmarshal(lines, &d.Lines); err != nil {
		return nil, fmt.Errorf("decode document lines: %w", err)
	}
	if err := json.Unmarshal(posted, &d.PostedNumbers); err != nil {
		return nil, fmt.Errorf("decode posted numbers: %w", err)
	}
	d.Reason = deref(reason)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

func marshalDocument(d *entity.Document) (lines, posted []byte, err error) {
	if lines, err = json.Marshal(d.Lines); err != nil {
		return nil, nil, fmt.Errorf("encode document lines: %w", err)
	}
	numbers := d.PostedNumbers
	if numbers == nil {
		numbers = []string{}
	}
	if posted, err = json.Marshal(numbers); err != nil {
		return nil, nil, fmt.Errorf("encode posted numbers: %w", err)
	}
	return lines, posted, nil
}
