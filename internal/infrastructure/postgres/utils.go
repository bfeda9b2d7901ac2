package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stockledger/internal/domain"
)

const sequenceCountersPKey = "sequence_counters_pkey"

// mapError traduce errores de PostgreSQL a errores de dominio:
// serialización (40001), deadlock (40P01) y lock no disponible (55P03) son contención transitoria;
// 23505 en la PK de sequence_counters es ErrConflict y en cualquier otra tabla ErrIntegrity;
// el resto de la clase 23 (checks, triggers de inmutabilidad) es ErrIntegrity.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConcurrencyConflict, err)
	case "23505":
		if pgErr.ConstraintName == sequenceCountersPKey {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrConflict, err)
		}
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIntegrity, err)
	}
	if len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIntegrity, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// nullIfEmpty "" -> NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
