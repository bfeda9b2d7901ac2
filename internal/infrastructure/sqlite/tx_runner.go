package sqlite

import (
	"context"
	"database/sql"

	"github.com/jhoicas/stockledger/internal/application/approval"
	"github.com/jhoicas/stockledger/internal/application/ledger"
	"github.com/jhoicas/stockledger/internal/application/sequence"
	"github.com/jhoicas/stockledger/internal/domain/repository"
)

// Ensure TxRunner implements ledger.TxRunner, sequence.TxRunner and approval.TxRunner.
var _ ledger.TxRunner = (*TxRunner)(nil)
var _ sequence.TxRunner = (*TxRunner)(nil)
var _ approval.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción SQLite (BEGIN IMMEDIATE).
type TxRunner struct {
	db *sql.DB
}

// NewTxRunner construye el runner con la base abierta por Open.
func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

// Run inicia una transacción con los repos del ledger y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	seqRepo repository.SequenceRepository,
) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return fn(NewMovementRepository(tx), NewSequenceRepository(tx))
	})
}

// RunSequence inicia una transacción con el repo de secuencias.
func (r *TxRunner) RunSequence(ctx context.Context, fn func(seqRepo repository.SequenceRepository) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return fn(NewSequenceRepository(tx))
	})
}

// RunDocument inicia una transacción con repos de ledger, secuencias y documentos.
func (r *TxRunner) RunDocument(ctx context.Context, fn func(
	movRepo repository.MovementRepository,
	seqRepo repository.SequenceRepository,
	docRepo repository.DocumentRepository,
) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return fn(NewMovementRepository(tx), NewSequenceRepository(tx), NewDocumentRepository(tx))
	})
}

func (r *TxRunner) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(err, "commit transaction")
	}
	return nil
}
