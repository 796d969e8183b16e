package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Update is the single change record clients poll for.
type Update struct {
	Timestamp  time.Time
	UpdatedIDs []int64
	RemovedIDs []int64
}

type ItemRepo interface {
	Upsert(ctx context.Context, items ...*domain.Item) error
	Delete(ctx context.Context, ids ...int64) error
	Get(ctx context.Context, id int64) (*domain.Item, error)
	ListPending(ctx context.Context) ([]*domain.Item, error)
	ListPromotedSince(ctx context.Context, since time.Time) ([]*domain.Item, error)
	DeletePromotedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAll(ctx context.Context) error
}

type CursorRepo interface {
	Get(ctx context.Context) (domain.Cursor, error)
	Save(ctx context.Context, c domain.Cursor) error
	Delete(ctx context.Context) error
}

type UpdateRepo interface {
	Record(ctx context.Context, u Update) error
	Get(ctx context.Context) (Update, error)
}
