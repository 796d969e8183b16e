// Package reconcile applies upstream lifecycle events to the board and
// keeps every affected lane projected.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/projection"
)

// ReadinessSource builds a fully populated pending item, ReadyTime
// included, from upstream data.
type ReadinessSource interface {
	Item(ctx context.Context, id int64) (*domain.Item, error)
}

// HistorySource lists items promoted at or after since, oldest first.
type HistorySource interface {
	RecentPromotions(ctx context.Context, since time.Time) ([]*domain.Item, error)
}

// Failure is one event that could not be applied.
type Failure struct {
	EventID int64
	ItemID  int64
	Type    domain.EventType
	Err     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("event %d (%s item %d): %v", f.EventID, f.Type, f.ItemID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Outcome summarises one Apply call.
type Outcome struct {
	// Cursor is the id of the last event in the batch, failed or not.
	Cursor   int64
	Applied  int
	Skipped  int
	Failures []Failure
	// Removed lists ids that left Pending, promoted or withdrawn.
	Removed []int64
	// Withdrawn is the subset of Removed that no longer exists upstream.
	Withdrawn []int64
	Resynced  bool
}

type Reconciler struct {
	rules   projection.Rules
	items   ReadinessSource
	history HistorySource
	logger  *slog.Logger
	now     func() time.Time
}

func New(rules projection.Rules, items ReadinessSource, history HistorySource, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{rules: rules, items: items, history: history, logger: logger, now: time.Now}
}

// HistoryWindow is how far back History must reach for the daily cap.
func (r *Reconciler) HistoryWindow() time.Duration {
	return projection.Day + r.rules.Interval
}

// Apply applies events in order to b. A failing event is recorded in the
// outcome and processing continues with the next one. Invariant violations
// abort the batch with an error; b may then be partially updated and must
// be discarded by the caller.
func (r *Reconciler) Apply(ctx context.Context, b *domain.Board, cursor int64, events []domain.Event) (Outcome, error) {
	out := Outcome{Cursor: cursor}
	if len(events) == 0 {
		return out, nil
	}

	for _, ev := range events {
		out.Cursor = ev.ID
		skipped, err := r.applyOne(ctx, b, ev, &out)
		switch {
		case errors.Is(err, domain.ErrInvariantViolation):
			return out, fmt.Errorf("applying event %d: %w", ev.ID, err)
		case err != nil:
			r.logger.Warn("event failed", "event_id", ev.ID, "item_id", ev.ItemID, "type", ev.Type, "error", err)
			out.Failures = append(out.Failures, Failure{EventID: ev.ID, ItemID: ev.ItemID, Type: ev.Type, Err: err})
		case skipped:
			out.Skipped++
		default:
			out.Applied++
		}
	}

	projection.AdjustCrossLane(b, r.rules)
	return out, nil
}

func (r *Reconciler) applyOne(ctx context.Context, b *domain.Board, ev domain.Event, out *Outcome) (bool, error) {
	switch ev.Type {
	case domain.EventEnterQueue:
		return false, r.enter(ctx, b, ev, out)
	case domain.EventWithdraw:
		return r.withdraw(b, ev, out)
	case domain.EventPromote:
		return false, r.promote(ctx, b, ev, out)
	}
	return true, nil
}

func (r *Reconciler) enter(ctx context.Context, b *domain.Board, ev domain.Event, out *Outcome) error {
	item, err := r.items.Item(ctx, ev.ItemID)
	if err != nil {
		return fmt.Errorf("fetching item: %w", err)
	}
	if !item.Lane.Valid() {
		return fmt.Errorf("item %d has invalid lane %d", item.ID, item.Lane)
	}

	item.State = domain.ItemPending
	item.ClearProjection()

	// A stale copy may linger if an earlier withdraw was missed.
	stale := -1
	if lane, _, ok := b.FindPending(item.ID); ok {
		_, idx, _ := b.Lane(lane).RemovePending(item.ID)
		if lane != item.Lane {
			if err := r.reprojectFrom(b, lane, idx); err != nil {
				return err
			}
		} else {
			stale = idx
		}
	}

	idx := b.Lane(item.Lane).Insert(item)
	start := idx
	if stale >= 0 {
		start = min(start, stale)
	}
	// Re-entry after a removal earlier in the batch.
	out.Removed = slices.DeleteFunc(out.Removed, func(id int64) bool { return id == item.ID })
	out.Withdrawn = slices.DeleteFunc(out.Withdrawn, func(id int64) bool { return id == item.ID })

	r.logger.Info("item entered queue", "item_id", item.ID, "lane", item.Lane, "ready_time", item.ReadyTime)
	return r.reprojectFrom(b, item.Lane, start)
}

func (r *Reconciler) withdraw(b *domain.Board, ev domain.Event, out *Outcome) (bool, error) {
	lane, _, ok := b.FindPending(ev.ItemID)
	if !ok {
		r.logger.Debug("withdraw for unknown item", "item_id", ev.ItemID, "error", domain.ErrUnknownItem)
		return true, nil
	}
	_, idx, _ := b.Lane(lane).RemovePending(ev.ItemID)
	out.Removed = append(out.Removed, ev.ItemID)
	out.Withdrawn = append(out.Withdrawn, ev.ItemID)

	r.logger.Info("item withdrawn", "item_id", ev.ItemID, "lane", lane)
	return false, r.reprojectFrom(b, lane, idx)
}

func (r *Reconciler) promote(ctx context.Context, b *domain.Board, ev domain.Event, out *Outcome) error {
	lane, _, ok := b.FindPending(ev.ItemID)
	if !ok {
		r.logger.Warn("promote for unknown item, resyncing history", "item_id", ev.ItemID, "error", domain.ErrUnknownItem)
		if err := r.Resync(ctx, b); err != nil {
			return err
		}
		out.Resynced = true
		out.Removed = appendUnique(out.Removed, ev.ItemID)
		return nil
	}

	q := b.Lane(lane)
	item, idx, _ := q.RemovePending(ev.ItemID)
	r.logger.Info("item promoted",
		"item_id", item.ID, "lane", lane, "at", ev.Timestamp,
		"projected", item.PromoteTime, "early", item.EarlyTime, "probability", item.Probability)

	item.MarkPromoted(ev.Timestamp)
	q.AppendHistory(item)
	out.Removed = append(out.Removed, item.ID)
	return r.reprojectFrom(b, lane, idx)
}

// Resync rebuilds every lane's History from the HistorySource and
// reprojects the whole board. Pending items that appear in the fresh
// history are moved out of Pending.
func (r *Reconciler) Resync(ctx context.Context, b *domain.Board) error {
	since := r.now().Add(-r.HistoryWindow())
	promoted, err := r.history.RecentPromotions(ctx, since)
	if err != nil {
		return fmt.Errorf("fetching recent promotions: %w", err)
	}

	fresh := domain.BoardFrom(nil, promoted)
	for l, q := range b.Lanes {
		q.History = fresh.Lanes[l].History
	}
	for _, it := range promoted {
		if lane, _, ok := b.FindPending(it.ID); ok {
			b.Lane(lane).RemovePending(it.ID)
		}
	}
	for _, q := range b.Lanes {
		if err := projection.Project(q, 0, r.rules); err != nil {
			return fmt.Errorf("reprojecting %s: %w", q.Lane, err)
		}
	}
	return nil
}

func (r *Reconciler) reprojectFrom(b *domain.Board, lane domain.Lane, idx int) error {
	if err := projection.Project(b.Lane(lane), idx, r.rules); err != nil {
		return fmt.Errorf("projecting %s from %d: %w", lane, idx, err)
	}
	return nil
}

func appendUnique(ids []int64, id int64) []int64 {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
