package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type txCtxKey struct{}

// Tx is the transaction surface the repositories use. Commit and Rollback
// are safe to defer: a handle joined from the context never closes the
// owning transaction, and a finished transaction is left alone.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type transaction struct {
	*sqlx.Tx
	logger ectologger.Logger
	owner  bool
	closed bool
}

// GetTx returns the transaction already bound to ctx, or begins a new one
// and binds it. Only the caller that began the transaction can commit or
// roll it back; later callers on the same context join it, so repository
// methods compose whether or not the caller opened a transaction first.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if existing, ok := ctx.Value(txCtxKey{}).(*transaction); ok && !existing.closed {
		return ctx, &transaction{Tx: existing.Tx, logger: logger}, nil
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	owned := &transaction{Tx: tx, logger: logger, owner: true}
	return context.WithValue(ctx, txCtxKey{}, owned), owned, nil
}

func (t *transaction) Commit(ctx context.Context) error {
	if !t.owner || t.closed {
		return nil
	}

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		return fmt.Errorf("commit transaction: %w", err)
	}

	t.closed = true
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	if !t.owner || t.closed {
		return nil
	}

	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return fmt.Errorf("rollback transaction: %w", err)
	}

	t.closed = true
	return nil
}
