package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

const documentColumns = `
	id, number, kind, status, lines, correlation_id, reason, posted_numbers, created_by, created_at, updated_at`

// DocumentRepo documentos aprobables sobre SQLite; líneas y números registrados se guardan como JSON.
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar db o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

// Create persiste un documento nuevo.
func (r *DocumentRepo) Create(ctx context.Context, d *entity.Document) error {
	lines, err := json.Marshal(d.Lines)
	if err != nil {
		return fmt.Errorf("encode document lines: %w", err)
	}
	posted, err := encodeNumbers(d.PostedNumbers)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO documents (id, number, kind, status, lines, correlation_id, reason, posted_numbers, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.q.ExecContext(ctx, query,
		d.ID, d.Number, d.Kind, d.Status, string(lines), d.CorrelationID, nullIfEmpty(d.Reason), posted,
		d.CreatedBy, formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	return mapError(err, "create document")
}

// GetByID devuelve nil, nil si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	var d entity.Document
	var lines, posted, created, updated string
	var reason sql.NullString
	err := r.q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id).Scan(
		&d.ID, &d.Number, &d.Kind, &d.Status, &lines, &d.CorrelationID, &reason, &posted,
		&d.CreatedBy, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, "get document")
	}
	if err := json.Unmarshal([]byte(lines), &d.Lines); err != nil {
		return nil, fmt.Errorf("decode document lines: %w", err)
	}
	if err := json.Unmarshal([]byte(posted), &d.PostedNumbers); err != nil {
		return nil, fmt.Errorf("decode posted numbers: %w", err)
	}
	d.Reason = reason.String
	if d.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetForUpdate en SQLite la transacción BEGIN IMMEDIATE ya tiene el lock de escritura.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, id string) (*entity.Document, error) {
	return r.GetByID(ctx, id)
}

// Update persiste estado, motivo y números registrados.
func (r *DocumentRepo) Update(ctx context.Context, d *entity.Document) error {
	posted, err := encodeNumbers(d.PostedNumbers)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE documents SET status = ?, reason = ?, posted_numbers = ?, updated_at = ? WHERE id = ?`,
		d.Status, nullIfEmpty(d.Reason), posted, formatTime(d.UpdatedAt), d.ID,
	)
	if err != nil {
		return mapError(err, "update document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update document: %w: %q", domain.ErrNotFound, d.ID)
	}
	return nil
}

func encodeNumbers(numbers []string) (string, error) {
	if numbers == nil {
		numbers = []string{}
	}
	b, err := json.Marshal(numbers)
	if err != nil {
		return "", fmt.Errorf("encode posted numbers: %w", err)
	}
	return string(b), nil
}
