// Package dbx lets repository code run unchanged inside and outside a
// transaction: DBTX captures the query methods shared by *sql.DB and
// *sql.Tx, and WithTx manages the transaction lifecycle around a callback.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is implemented by both *sql.DB and *sql.Tx. Repositories are written
// against it, so a service moves them into a transaction by swapping the
// handle it vends them with.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction started on db. The transaction is
// committed when fn returns nil, and rolled back when fn returns an error or
// panics; a panic propagates to the caller after the rollback.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    if err := repos.RefreshTokens(tx).DeleteByUser(ctx, userID); err != nil {
//	        return err
//	    }
//	    return repos.RefreshTokens(tx).Create(ctx, userID, token, validity)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
