package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `
	id, movement_number, item_key, batch_key, quantity, unit_cost, kind, occurred_at,
	from_location, to_location, reference_number, reference_kind, reason,
	actor_id, actor_type, source, actor_occurred_at, correlation_id, recorded_at`

// MovementRepo ledger sobre PostgreSQL (usable con pool o tx). Solo INSERT y SELECT; los triggers
// de la tabla rechazan UPDATE, DELETE y TRUNCATE.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Insert persiste el movimiento y completa RecordedAt con el reloj de la BD.
func (r *MovementRepo) Insert(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO movements (id, movement_number, item_key, batch_key, quantity, unit_cost, kind, occurred_at,
			from_location, to_location, location_key, reference_number, reference_kind, reason,
			actor_id, actor_type, source, actor_occurred_at, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING recorded_at`
	err := r.q.QueryRow(ctx, query,
		m.ID, m.MovementNumber, m.ItemKey, nullIfEmpty(m.BatchKey), m.Quantity, m.UnitCost, string(m.Kind), m.OccurredAt,
		nullIfEmpty(m.FromLocation), nullIfEmpty(m.ToLocation), m.Location(),
		nullIfEmpty(m.ReferenceNumber), nullIfEmpty(m.ReferenceKind), nullIfEmpty(m.Reason),
		m.Actor.ActorID, string(m.Actor.ActorType), m.Actor.Source, m.Actor.OccurredAtUTC, m.CorrelationID,
	).Scan(&m.RecordedAt)
	if err != nil {
		return mapError(err, "insert movement")
	}
	m.RecordedAt = m.RecordedAt.UTC()
	return nil
}

// GetByNumber devuelve nil, nil si no existe.
func (r *MovementRepo) GetByNumber(ctx context.Context, number string) (*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE movement_number = $1`
	m, err := scanMovement(r.q.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, "get movement")
	}
	return m, nil
}

// ListByItem movimientos del ítem en orden de occurred_at.
func (r *MovementRepo) ListByItem(ctx context.Context, itemKey string, limit, offset int) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE item_key = $1
		ORDER BY occurred_at, movement_number
		LIMIT $2 OFFSET $3`
	return r.list(ctx, "list by item", query, itemKey, limit, offset)
}

// ListByCorrelation todos los movimientos de la correlación en orden de registro.
func (r *MovementRepo) ListByCorrelation(ctx context.Context, correlationID string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE correlation_id = $1
		ORDER BY recorded_at, movement_number`
	return r.list(ctx, "list by correlation", query, correlationID)
}

// ListInRange movimientos con occurred_at en [from, to].
func (r *MovementRepo) ListInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE occurred_at >= $1 AND occurred_at <= $2
		ORDER BY occurred_at, movement_number
		LIMIT $3 OFFSET $4`
	return r.list(ctx, "list in range", query, from, to, limit, offset)
}

// ListByReference movimientos que referencian number, en orden de registro.
func (r *MovementRepo) ListByReference(ctx context.Context, number string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE reference_number = $1
		ORDER BY recorded_at, movement_number`
	return r.list(ctx, "list by reference", query, number)
}

// ScanItem recorre las filas en streaming sobre el índice (item_key[, location_key], occurred_at).
func (r *MovementRepo) ScanItem(ctx context.Context, itemKey, location string, asOf time.Time, fn func(*entity.Movement) error) error {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE item_key = $1 AND occurred_at <= $2`
	args := []any{itemKey, asOf}
	if location != "" {
		query += ` AND location_key = $3`
		args = append(args, location)
	}
	query += ` ORDER BY occurred_at, movement_number`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return mapError(err, "scan item")
	}
	defer rows.Close()
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return mapError(err, "scan movement")
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return mapError(rows.Err(), "scan item")
}

// ── helpers ──

func (r *MovementRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Movement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, mapError(err, "scan movement")
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, op)
	}
	return list, nil
}

func scanMovement(s pgxScanner) (*entity.Movement, error) {
	var m entity.Movement
	var kind, actorType string
	var batch, from, to, ref, refKind, reason *string
	err := s.Scan(
		&m.ID, &m.MovementNumber, &m.ItemKey, &batch, &m.Quantity, &m.UnitCost, &kind, &m.OccurredAt,
		&from, &to, &ref, &refKind, &reason,
		&m.Actor.ActorID, &actorType, &m.Actor.Source, &m.Actor.OccurredAtUTC, &m.CorrelationID, &m.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Kind = entity.MovementKind(kind)
	m.Actor.ActorType = entity.ActorType(actorType)
	m.BatchKey = deref(batch)
	m.FromLocation = deref(from)
	m.ToLocation = deref(to)
	m.ReferenceNumber = deref(ref)
	m.ReferenceKind = deref(refKind)
	m.Reason = deref(reason)
	m.OccurredAt = m.OccurredAt.UTC()
	m.Actor.OccurredAtUTC = m.Actor.OccurredAtUTC.UTC()
	m.RecordedAt = m.RecordedAt.UTC()
	return &m, nil
}
