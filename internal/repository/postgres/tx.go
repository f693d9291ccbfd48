package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type txKey struct{}

// TxRunner implements domain.TxRunner on a *sql.DB. The transaction is
// carried in the context so repository calls made inside the callback join
// it transparently; nested WithinTx calls reuse the outer transaction.
type TxRunner struct {
	DB *sql.DB
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{DB: db}
}

func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// querier is the subset of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// q returns the transaction from ctx when one is open, the bare DB otherwise.
func q(ctx context.Context, db *sql.DB) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
