package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "lexflow/pkg/domain-errors"
	"lexflow/pkg/platform/tx"
)

const defaultDocumentTxTimeout = 5 * time.Second

// documentPostgresTx runs a service callback inside one SQL transaction.
// Stores called with the callback's context pick the transaction up via
// tx.Pick.
type documentPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newDocumentPostgresTx(db *sql.DB, timeout time.Duration) *documentPostgresTx {
	return &documentPostgresTx{db: db, timeout: timeout}
}

func (t *documentPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested calls join the outer transaction.
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultDocumentTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction timed out")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
