// Package notify tells clients which items a pass changed.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/repository"
)

type Notification struct {
	Timestamp time.Time
	Updated   []*domain.Item
	Removed   []int64
}

func (n Notification) Empty() bool {
	return len(n.Updated) == 0 && len(n.Removed) == 0
}

func (n Notification) UpdatedIDs() []int64 {
	ids := make([]int64, 0, len(n.Updated))
	for _, it := range n.Updated {
		ids = append(ids, it.ID)
	}
	return ids
}

// Sink receives change notifications. Callers never send empty ones.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink logs every notification.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "items changed",
		"updated", n.UpdatedIDs(),
		"removed", n.Removed,
		"at", n.Timestamp.Format(time.RFC3339),
	)
	return nil
}

// StoreSink writes the update record that polling clients read.
type StoreSink struct {
	Updates repository.UpdateRepo
}

func (s StoreSink) Notify(ctx context.Context, n Notification) error {
	return s.Updates.Record(ctx, repository.Update{
		Timestamp:  n.Timestamp,
		UpdatedIDs: n.UpdatedIDs(),
		RemovedIDs: n.Removed,
	})
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
