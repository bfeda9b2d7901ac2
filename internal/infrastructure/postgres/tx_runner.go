package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stockledger/internal/application/approval"
	"github.com/jhoicas/stockledger/internal/application/ledger"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain/repository"
)

// Ensure TxRunner implements ledger.TxRunner, sequence.TxRunner and approval.TxRunner.
var _ ledger.TxRunner = (*TxRunner)(nil)
var _ sequence.TxRunner = (*TxRunner)(nil)
var _ approval.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción con los repos del ledger y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	seqRepo repository.SequenceRepository,
) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return fn(NewMovementRepository(tx), NewSequenceRepository(tx))
	})
}

// RunSequence inicia una transacción con el repo de secuencias.
func (r *TxRunner) RunSequence(ctx context.Context, fn func(seqRepo repository.SequenceRepository) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return fn(NewSequenceRepository(tx))
	})
}

// RunDocument inicia una transacción con repos de ledger, secuencias y documentos (para Complete).
func (r *TxRunner) RunDocument(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	seqRepo repository.SequenceRepository,
	docRepo repository.DocumentRepository,
) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return fn(NewMovementRepository(tx), NewSequenceRepository(tx), NewDocumentRepository(tx))
	})
}

func (r *TxRunner) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return mapError(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(err, "commit transaction")
	}
	return nil
}

// Verificación de tipos: tanto el pool como la tx sirven de Querier.
var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (pgx.Tx)(nil)
)
