package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `
	id, movement_number, item_key, batch_key, quantity, unit_cost, kind, occurred_at,
	from_location, to_location, reference_number, reference_kind, reason,
	actor_id, actor_type, source, actor_occurred_at, correlation_id, recorded_at`

// MovementRepo ledger sobre SQLite (usable con db o tx). Solo INSERT y SELECT; los triggers de la
// tabla rechazan UPDATE y DELETE.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar db o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Insert persiste el movimiento; RecordedAt lo asigna el adaptador.
func (r *MovementRepo) Insert(ctx context.Context, m *entity.Movement) error {
	recorded := time.Now().UTC()
	query := `
		INSERT INTO movements (id, movement_number, item_key, batch_key, quantity, unit_cost, kind, occurred_at,
			from_location, to_location, location_key, reference_number, reference_kind, reason,
			actor_id, actor_type, source, actor_occurred_at, correlation_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		m.ID, m.MovementNumber, m.ItemKey, nullIfEmpty(m.BatchKey), m.Quantity, m.UnitCost.String(), string(m.Kind),
		formatTime(m.OccurredAt), nullIfEmpty(m.FromLocation), nullIfEmpty(m.ToLocation), m.Location(),
		nullIfEmpty(m.ReferenceNumber), nullIfEmpty(m.ReferenceKind), nullIfEmpty(m.Reason),
		m.Actor.ActorID, string(m.Actor.ActorType), m.Actor.Source, formatTime(m.Actor.OccurredAtUTC),
		m.CorrelationID, formatTime(recorded),
	)
	if err != nil {
		return mapError(err, "insert movement")
	}
	m.RecordedAt = recorded
	return nil
}

// GetByNumber devuelve nil, nil si no existe.
func (r *MovementRepo) GetByNumber(ctx context.Context, number string) (*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE movement_number = ?`
	m, err := scanMovement(r.q.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, "get movement")
	}
	return m, nil
}

// ListByItem movimientos del ítem en orden de occurred_at.
func (r *MovementRepo) ListByItem(ctx context.Context, itemKey string, limit, offset int) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE item_key = ?
		ORDER BY occurred_at, movement_number
		LIMIT ? OFFSET ?`
	return r.list(ctx, "list by item", query, itemKey, limit, offset)
}

// ListByCorrelation todos los movimientos de la correlación en orden de registro.
func (r *MovementRepo) ListByCorrelation(ctx context.Context, correlationID string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE correlation_id = ?
		ORDER BY recorded_at, movement_number`
	return r.list(ctx, "list by correlation", query, correlationID)
}

// ListInRange movimientos con occurred_at en [from, to].
func (r *MovementRepo) ListInRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at, movement_number
		LIMIT ? OFFSET ?`
	return r.list(ctx, "list in range", query, formatTime(from), formatTime(to), limit, offset)
}

// ListByReference movimientos que referencian number, en orden de registro.
func (r *MovementRepo) ListByReference(ctx context.Context, number string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements
		WHERE reference_number = ?
		ORDER BY recorded_at, movement_number`
	return r.list(ctx, "list by reference", query, number)
}

// ScanItem recorre las filas en streaming sobre el índice (item_key[, location_key], occurred_at).
func (r *MovementRepo) ScanItem(ctx context.Context, itemKey, location string, asOf time.Time, fn func(*entity.Movement) error) error {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE item_key = ? AND occurred_at <= ?`
	args := []any{itemKey, formatTime(asOf)}
	if location != "" {
		query += ` AND location_key = ?`
		args = append(args, location)
	}
	query += ` ORDER BY occurred_at, movement_number`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return mapError(err, "scan item")
	}
	defer func() { _ = rows.Close() }()
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
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, op)
	}
	defer func() { _ = rows.Close() }()
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

func scanMovement(s sqlScanner) (*entity.Movement, error) {
	var m entity.Movement
	var kind, actorType, unitCost, occurred, actorOccurred, recorded string
	var batch, from, to, ref, refKind, reason sql.NullString
	err := s.Scan(
		&m.ID, &m.MovementNumber, &m.ItemKey, &batch, &m.Quantity, &unitCost, &kind, &occurred,
		&from, &to, &ref, &refKind, &reason,
		&m.Actor.ActorID, &actorType, &m.Actor.Source, &actorOccurred, &m.CorrelationID, &recorded,
	)
	if err != nil {
		return nil, err
	}
	if m.UnitCost, err = decimal.NewFromString(unitCost); err != nil {
		return nil, fmt.Errorf("decode unit_cost %q: %w", unitCost, err)
	}
	if m.OccurredAt, err = parseTime(occurred); err != nil {
		return nil, err
	}
	if m.Actor.OccurredAtUTC, err = parseTime(actorOccurred); err != nil {
		return nil, err
	}
	if m.RecordedAt, err = parseTime(recorded); err != nil {
		return nil, err
	}
	m.Kind = entity.MovementKind(kind)
	m.Actor.ActorType = entity.ActorType(actorType)
	m.BatchKey = batch.String
	m.FromLocation = from.String
	m.ToLocation = to.String
	m.ReferenceNumber = ref.String
	m.ReferenceKind = refKind.String
	m.Reason = reason.String
	return &m, nil
}
