package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TxFunc is the body of a transaction. Repositories built on tx join it.
type TxFunc = func(ctx context.Context, tx DBTX) error

// UnitOfWork scopes a group of writes to one transaction. The store routes
// every pass write (item upserts, deletes, then the cursor) and Reset
// through it, so a pass is persisted entirely or not at all.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

// TxUnitOfWork opens one database/sql transaction per WithinTx call.
type TxUnitOfWork struct {
	db      *sql.DB
	dialect Dialect
}

func NewUnitOfWork(d *DB) *TxUnitOfWork {
	return &TxUnitOfWork{db: d.DB, dialect: d.Dialect}
}

// WithinTx commits when fn returns nil and rolls back otherwise, including
// when fn panics. A failed rollback is joined to fn's error.
func (u *TxUnitOfWork) WithinTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning %s transaction: %w", u.dialect, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s transaction: %w", u.dialect, err)
	}
	committed = true
	return nil
}
