package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/rankcast/internal/db"
	"github.com/alexanderramin/rankcast/internal/domain"
)

// SQLCursorRepo stores the event cursor in the single app_state row.
type SQLCursorRepo struct {
	db      db.DBTX
	dialect db.Dialect
}

func NewSQLCursorRepo(conn db.DBTX, dialect db.Dialect) *SQLCursorRepo {
	return &SQLCursorRepo{db: conn, dialect: dialect}
}

func (r *SQLCursorRepo) Get(ctx context.Context) (domain.Cursor, error) {
	var id, updated int64
	err := r.db.QueryRowContext(ctx, `SELECT last_event_id, updated_at FROM app_state WHERE id = 1`).Scan(&id, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cursor{}, fmt.Errorf("cursor: %w", ErrNotFound)
	}
	if err != nil {
		return domain.Cursor{}, fmt.Errorf("scanning cursor: %w", err)
	}
	return domain.Cursor{LastEventID: id, UpdatedAt: time.Unix(updated, 0).UTC()}, nil
}

func (r *SQLCursorRepo) Save(ctx context.Context, c domain.Cursor) error {
	query := r.dialect.Rebind(`INSERT INTO app_state (id, last_event_id, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET last_event_id = excluded.last_event_id, updated_at = excluded.updated_at`)
	if _, err := r.db.ExecContext(ctx, query, c.LastEventID, c.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("saving cursor: %w", err)
	}
	return nil
}

func (r *SQLCursorRepo) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM app_state`); err != nil {
		return fmt.Errorf("deleting cursor: %w", err)
	}
	return nil
}
