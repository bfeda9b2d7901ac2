package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
)

var _ repository.SequenceRepository = (*SequenceRepo)(nil)

const sequenceColumns = `
	category, prefix, padding_width, starting_value, current_value, is_active,
	last_issued_at, last_issued_by, created_at, updated_at`

// SequenceRepo contadores de secuencia sobre PostgreSQL (usable con pool o tx).
type SequenceRepo struct {
	q Querier
}

// NewSequenceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSequenceRepository(q Querier) *SequenceRepo {
	return &SequenceRepo{q: q}
}

// Create inserta la categoría; domain.ErrConflict si ya existe.
func (r *SequenceRepo) Create(ctx context.Context, c *entity.SequenceCounter) error {
	query := `
		INSERT INTO sequence_counters (category, prefix, padding_width, starting_value, current_value, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		c.Category, c.Prefix, c.PaddingWidth, c.StartingValue, c.CurrentValue, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	return mapError(err, "create sequence counter")
}

// Get devuelve nil, nil si la categoría no existe.
func (r *SequenceRepo) Get(ctx context.Context, category string) (*entity.SequenceCounter, error) {
	return r.get(ctx, `SELECT `+sequenceColumns+` FROM sequence_counters WHERE category = $1`, category)
}

// GetForUpdate obtiene la categoría y bloquea la fila (SELECT FOR UPDATE) hasta el fin de la tx.
func (r *SequenceRepo) GetForUpdate(ctx context.Context, category string) (*entity.SequenceCounter, error) {
	return r.get(ctx, `SELECT `+sequenceColumns+` FROM sequence_counters WHERE category = $1 FOR UPDATE`, category)
}

// List todas las categorías ordenadas por nombre.
func (r *SequenceRepo) List(ctx context.Context) ([]*entity.SequenceCounter, error) {
	rows, err := r.q.Query(ctx, `SELECT `+sequenceColumns+` FROM sequence_counters ORDER BY category`)
	if err != nil {
		return nil, mapError(err, "list sequence counters")
	}
	defer rows.Close()
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
	query := `
		UPDATE sequence_counters
		SET prefix = $2, padding_width = $3, current_value = $4, is_active = $5,
			last_issued_at = $6, last_issued_by = $7, updated_at = $8
		WHERE category = $1`
	tag, err := r.q.Exec(ctx, query,
		c.Category, c.Prefix, c.PaddingWidth, c.CurrentValue, c.IsActive,
		c.LastIssuedAt, nullIfEmpty(c.LastIssuedBy), c.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "save sequence counter")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save sequence counter: %w: %q", domain.ErrNotFound, c.Category)
	}
	return nil
}

// ── helpers ──

func (r *SequenceRepo) get(ctx context.Context, query, category string) (*entity.SequenceCounter, error) {
	c, err := scanCounter(r.q.QueryRow(ctx, query, category))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, "get sequence counter")
	}
	return c, nil
}

func scanCounter(s pgxScanner) (*entity.SequenceCounter, error) {
	var c entity.SequenceCounter
	var lastBy *string
	err := s.Scan(
		&c.Category, &c.Prefix, &c.PaddingWidth, &c.StartingValue, &c.CurrentValue, &c.IsActive,
		&c.LastIssuedAt, &lastBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.LastIssuedBy = deref(lastBy)
	c.LastIssuedAt = utcPtr(c.LastIssuedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
