package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/rankcast/internal/db"
)

// SQLUpdateRepo keeps the latest change record in the single updates row.
type SQLUpdateRepo struct {
	db      db.DBTX
	dialect db.Dialect
}

func NewSQLUpdateRepo(conn db.DBTX, dialect db.Dialect) *SQLUpdateRepo {
	return &SQLUpdateRepo{db: conn, dialect: dialect}
}

func (r *SQLUpdateRepo) Record(ctx context.Context, u Update) error {
	updated, err := encodeIDs(u.UpdatedIDs)
	if err != nil {
		return err
	}
	removed, err := encodeIDs(u.RemovedIDs)
	if err != nil {
		return err
	}
	query := r.dialect.Rebind(`INSERT INTO updates (id, timestamp, updated_ids, removed_ids) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			timestamp = excluded.timestamp,
			updated_ids = excluded.updated_ids,
			removed_ids = excluded.removed_ids`)
	if _, err := r.db.ExecContext(ctx, query, u.Timestamp.Unix(), updated, removed); err != nil {
		return fmt.Errorf("recording update: %w", err)
	}
	return nil
}

func (r *SQLUpdateRepo) Get(ctx context.Context) (Update, error) {
	var (
		ts               int64
		updated, removed string
	)
	err := r.db.QueryRowContext(ctx, `SELECT timestamp, updated_ids, removed_ids FROM updates WHERE id = 1`).
		Scan(&ts, &updated, &removed)
	if errors.Is(err, sql.ErrNoRows) {
		return Update{}, fmt.Errorf("update record: %w", ErrNotFound)
	}
	if err != nil {
		return Update{}, fmt.Errorf("scanning update record: %w", err)
	}
	u := Update{Timestamp: time.Unix(ts, 0).UTC()}
	if u.UpdatedIDs, err = decodeIDs(updated); err != nil {
		return Update{}, err
	}
	if u.RemovedIDs, err = decodeIDs(removed); err != nil {
		return Update{}, err
	}
	return u, nil
}
