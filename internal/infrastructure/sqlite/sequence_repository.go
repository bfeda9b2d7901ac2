package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
)

var _ repository.SequenceRepository = (*SequenceRepo)(nil)

const sequenceColumns = `
	category, prefix, padding_width, starting_value, current_value, is_active,
	last_issued_at, last_issued_by, created_at, updated_at`

// SequenceRepo contadores de secuencia sobre SQLite (usable con db o tx).
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador. Pasar db o tx (Querier).
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Create inserta la categoría; domain.ErrConflict si ya existe.
func (r *SequenceRepo) Create(ctx context.Context, c *entity.SequenceCounter) error {
	query := `
		INSERT INTO sequence_counters (category, prefix, padding_width, starting_value, current_value, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		c.Category, c.Prefix, c.PaddingWidth, c.StartingValue, c.CurrentValue, c.IsActive,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	return mapError(err, "create sequence counter")
}

// Get devuelve nil, nil si la categoría no existe.
func (r *SequenceRepo) Get(ctx context.Context, category string) (*entity.SequenceCounter, error) {
	c, err := scanCounter(r.q.QueryRowContext(ctx, `SELECT `+sequenceColumns+` FROM sequence_counters WHERE category = ?`, category))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, "get sequence counter")
	}
	return c, nil
}

// GetForUpdate en SQLite la transacción BEGIN IMMEDIATE ya tiene el lock de escritura.
func (r *SequenceRepo) GetForUpdate(ctx context.Context, category string) (*entity.SequenceCounter, error) {
	return r.Get(ctx, category)
}

// List todas las categorías ordenadas por nombre.
func (r *SequenceRepo) List(ctx context.Context) ([]*entity.SequenceCounter, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+sequenceColumns+` FROM sequence_counters ORDER BY category`)
	if err != nil {
		return nil, mapError(err, "list sequence counters")
	}
	defer func() { _ = rows.Close() }()
	var list []*entity.SequenceCounter
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, mapError(err, "scan sequence counter")
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list sequence counters")
	}
	return list, nil
}

// Save persiste la configuración y el estado de emisión. El trigger rechaza bajar current_value.
func (r *SequenceRepo) Save(ctx context.Context, c *entity.SequenceCounter) error {
	var lastAt sql.NullString
	if c.LastIssuedAt != nil {
		lastAt = sql.NullString{String: formatTime(*c.LastIssuedAt), Valid: true}
	}
	query := `
		UPDATE sequence_counters
		SET prefix = ?, padding_width = ?, current_value = ?, is_active = ?,
			last_issued_at = ?, last_issued_by = ?, updated_at = ?
		WHERE category = ?`
	res, err := r.q.ExecContext(ctx, query,
		c.Prefix, c.PaddingWidth, c.CurrentValue, c.IsActive,
		lastAt, nullIfEmpty(c.LastIssuedBy), formatTime(c.UpdatedAt), c.Category,
	)
	if err != nil {
		return mapError(err, "save sequence counter")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save sequence counter: %w: %q", domain.ErrNotFound, c.Category)
	}
	return nil
}

func scanCounter(s sqlScanner) (*entity.SequenceCounter, error) {
	var c entity.SequenceCounter
	var lastAt, lastBy sql.NullString
	var created, updated string
	err := s.Scan(
		&c.Category, &c.Prefix, &c.PaddingWidth, &c.StartingValue, &c.CurrentValue, &c.IsActive,
		&lastAt, &lastBy, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	if lastAt.Valid {
		t, err := parseTime(lastAt.String)
		if err != nil {
			return nil, err
		}
		c.LastIssuedAt = &t
	}
	c.LastIssuedBy = lastBy.String
	if c.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}
