package db

import (
	"context"
	"database/sql"
)

// DBTX is what repositories query through: the pool for plain reads, or
// the transaction handed out by WithinTx for pass writes. Queries are
// written with ? placeholders and passed through Dialect.Rebind.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
