package main

import (
	"context"
	"fmt"

	"github.com/jhoicas/stockledger/internal/application/ledger"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain/repository"
	"github.com/jhoicas/stockledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stockledger/internal/infrastructure/sqlite"
	"github.com/jhoicas/stockledger/pkg/config"
	"github.com/jhoicas/stockledger/pkg/logger"
)

type txRunner interface {
	ledger.TxRunner
	sequence.TxRunner
}

// storage agrupa los adaptadores del driver elegido en LEDGER_DRIVER.
type storage struct {
	runner  txRunner
	movRepo repository.MovementRepository
	seqRepo repository.SequenceRepository
	migrate func(ctx context.Context) error
	close   func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	switch cfg.Ledger.Driver {
	case config.DriverSQLite:
		// Open ya aplica las migraciones embebidas.
		db, err := sqlite.Open(ctx, cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("abrir SQLite %s: %w", cfg.Ledger.SQLitePath, err)
		}
		return &storage{
			runner:  sqlite.NewTxRunner(db),
			movRepo: sqlite.NewMovementRepository(db),
			seqRepo: sqlite.NewSequenceRepository(db),
			migrate: func(ctx context.Context) error { return sqlite.Migrate(ctx, db) },
			close:   func() { _ = db.Close() },
		}, nil
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		return &storage{
			runner:  postgres.NewTxRunner(pool),
			movRepo: postgres.NewMovementRepository(pool),
			seqRepo: postgres.NewSequenceRepository(pool),
			migrate: func(ctx context.Context) error { return postgres.Migrate(ctx, pool, log) },
			close:   pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("driver %q no soportado", cfg.Ledger.Driver)
}
