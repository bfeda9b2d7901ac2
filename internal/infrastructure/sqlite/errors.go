package sqlite

import (
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jhoicas/stockledger/internal/domain"
)

// mapError traduce errores del driver a errores de dominio: BUSY/LOCKED es contención transitoria;
// UNIQUE/PK sobre sequence_counters es ErrConflict; cualquier otra restricción (UNIQUE del número de
// movimiento, CHECK, triggers RAISE(ABORT)) es ErrIntegrity.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var sErr *msqlite.Error
	if !errors.As(err, &sErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	code := sErr.Code()
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConcurrencyConflict, err)
	case sqlite3.SQLITE_CONSTRAINT:
		if (code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) &&
			strings.Contains(sErr.Error(), "sequence_counters.") {
			return fmt.Errorf("%s: %w: %w", op, domain.ErrConflict, err)
		}
		return fmt.Errorf("%s: %w: %w", op, domain.ErrIntegrity, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
