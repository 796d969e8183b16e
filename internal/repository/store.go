package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/rankcast/internal/db"
	"github.com/alexanderramin/rankcast/internal/domain"
)

// PassWrite is everything one reconciliation pass persists.
type PassWrite struct {
	Upsert []*domain.Item
	Delete []int64
	// Cursor is saved when non-nil.
	Cursor *domain.Cursor
}

// Store composes the repositories over one database and groups multi-table
// writes into transactions.
type Store struct {
	Items   ItemRepo
	Cursor  CursorRepo
	Updates UpdateRepo

	dialect db.Dialect
	uow     db.UnitOfWork
}

func NewStore(d *db.DB) *Store {
	return NewStoreWithUoW(d.DB, d.Dialect, db.NewUnitOfWork(d))
}

// NewStoreWithUoW builds a Store whose transactional writes go through uow.
func NewStoreWithUoW(conn db.DBTX, dialect db.Dialect, uow db.UnitOfWork) *Store {
	return &Store{
		Items:   NewSQLItemRepo(conn, dialect),
		Cursor:  NewSQLCursorRepo(conn, dialect),
		Updates: NewSQLUpdateRepo(conn, dialect),
		dialect: dialect,
		uow:     uow,
	}
}

// SavePass applies a pass atomically: upserts, deletes, then the cursor.
func (s *Store) SavePass(ctx context.Context, w PassWrite) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := NewSQLItemRepo(tx, s.dialect)
		if err := items.Upsert(ctx, w.Upsert...); err != nil {
			return err
		}
		if err := items.Delete(ctx, w.Delete...); err != nil {
			return err
		}
		if w.Cursor != nil {
			if err := NewSQLCursorRepo(tx, s.dialect).Save(ctx, *w.Cursor); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadBoard rebuilds a board from every pending item and the items
// promoted at or after historySince.
func (s *Store) LoadBoard(ctx context.Context, historySince time.Time) (*domain.Board, error) {
	pending, err := s.Items.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.Items.ListPromotedSince(ctx, historySince)
	if err != nil {
		return nil, err
	}
	return domain.BoardFrom(pending, history), nil
}

// Reset removes every item, the cursor and the update record.
func (s *Store) Reset(ctx context.Context) error {
	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := NewSQLItemRepo(tx, s.dialect).DeleteAll(ctx); err != nil {
			return err
		}
		if err := NewSQLCursorRepo(tx, s.dialect).Delete(ctx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM updates`); err != nil {
			return fmt.Errorf("deleting update record: %w", err)
		}
		return nil
	})
}
