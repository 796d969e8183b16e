package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/projection"
	"github.com/alexanderramin/rankcast/internal/reconcile"
	"github.com/alexanderramin/rankcast/internal/repository"
)

// ErrNotQueued is returned by Insert for an item that is neither pending
// nor promoted upstream.
var ErrNotQueued = errors.New("item is not queued")

// Setup seeds the store from upstream: the cursor at the newest event, the
// recent promotions and every pending item, all projected.
func (e *Engine) Setup(ctx context.Context) (int, error) {
	var n int
	err := e.run(ctx, "setup", func(ctx context.Context, logger *slog.Logger, fields map[string]any) error {
		var err error
		n, err = e.setup(ctx, logger)
		fields["items"] = n
		return err
	})
	return n, err
}

func (e *Engine) setup(ctx context.Context, logger *slog.Logger) (int, error) {
	latest, err := e.upstream.LatestEventID(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching latest event id: %w", err)
	}
	history, err := e.upstream.RecentPromotions(ctx, e.historySince())
	if err != nil {
		return 0, fmt.Errorf("fetching recent promotions: %w", err)
	}
	pending, err := e.upstream.QualifiedItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching queued items: %w", err)
	}

	b := domain.BoardFrom(pending, history)
	if err := projection.ProjectBoard(b, e.rules); err != nil {
		return 0, err
	}
	res := e.commit(ctx, logger, change{
		board:  b,
		before: reconcile.Snapshot{},
		cursor: &domain.Cursor{LastEventID: latest, UpdatedAt: e.now().UTC()},
	})
	if res.WriteErr != nil {
		return 0, res.WriteErr
	}
	logger.Info("setup complete", "pending", len(pending), "history", len(history), "cursor", latest)
	return len(pending) + len(history), nil
}

// Reset deletes every stored item, the cursor and the update record, then
// runs Setup.
func (e *Engine) Reset(ctx context.Context) (int, error) {
	var n int
	err := e.run(ctx, "reset", func(ctx context.Context, logger *slog.Logger, fields map[string]any) error {
		if err := e.store.Reset(ctx); err != nil {
			return fmt.Errorf("resetting store: %w", err)
		}
		e.board = nil
		e.cursor = 0
		e.cursorDirty = false
		clear(e.retryUpsert)
		clear(e.retryDelete)
		var err error
		n, err = e.setup(ctx, logger)
		fields["items"] = n
		return err
	})
	return n, err
}

// Recalculate reprojects every stored item from scratch and returns the
// ones whose projection changed. With dryRun nothing is written.
func (e *Engine) Recalculate(ctx context.Context, dryRun bool) ([]*domain.Item, error) {
	var changed []*domain.Item
	err := e.run(ctx, "recalculate", func(ctx context.Context, logger *slog.Logger, fields map[string]any) error {
		b, err := e.store.LoadBoard(ctx, e.historySince())
		if err != nil {
			return fmt.Errorf("loading board: %w", err)
		}
		before := reconcile.TakeSnapshot(b)
		if err := projection.ProjectBoard(b, e.rules); err != nil {
			return err
		}
		fields["dry_run"] = dryRun
		if dryRun {
			changed = reconcile.Diff(b, before)
			fields["changed"] = len(changed)
			return nil
		}
		if e.mode == ModeMemory && e.board == nil {
			// loads the cursor the adopted board continues from
			if _, _, err := e.state(ctx); err != nil {
				return err
			}
		}
		res := e.commit(ctx, logger, change{board: b, before: before})
		changed = res.Updated
		fields["changed"] = len(changed)
		return res.WriteErr
	})
	return changed, err
}

// Insert refetches one item and places it on the board: a pending item
// replaces any existing copy, a promoted one joins History.
func (e *Engine) Insert(ctx context.Context, id int64) (*domain.Item, error) {
	var inserted *domain.Item
	err := e.run(ctx, "insert", func(ctx context.Context, logger *slog.Logger, fields map[string]any) error {
		fields["item_id"] = id
		item, err := e.upstream.Item(ctx, id)
		if err != nil {
			return fmt.Errorf("fetching item %d: %w", id, err)
		}
		work, _, err := e.state(ctx)
		if err != nil {
			return err
		}
		before := reconcile.TakeSnapshot(work)

		var removed []int64
		switch item.State {
		case domain.ItemPromoted:
			if err := e.insertPromoted(work, item); err != nil {
				return err
			}
			removed = []int64{id}
		case domain.ItemPending:
			if err := e.insertPending(work, item); err != nil {
				return err
			}
		default:
			return fmt.Errorf("item %d in state %q: %w", id, item.State, ErrNotQueued)
		}
		projection.AdjustCrossLane(work, e.rules)

		res := e.commit(ctx, logger, change{board: work, before: before, removed: removed})
		inserted, _ = work.Get(id)
		return res.WriteErr
	})
	return inserted, err
}

func (e *Engine) insertPending(b *domain.Board, item *domain.Item) error {
	item.ClearProjection()
	stale := -1
	if lane, _, ok := b.FindPending(item.ID); ok {
		old, idx, _ := b.Lane(lane).RemovePending(item.ID)
		item.HasOpenIssue = old.HasOpenIssue
		if lane != item.Lane {
			if err := projection.Project(b.Lane(lane), idx, e.rules); err != nil {
				return err
			}
		} else {
			stale = idx
		}
	}
	idx := b.Lane(item.Lane).Insert(item)
	if stale >= 0 {
		idx = min(idx, stale)
	}
	return projection.Project(b.Lane(item.Lane), idx, e.rules)
}

func (e *Engine) insertPromoted(b *domain.Board, item *domain.Item) error {
	if lane, _, ok := b.FindPending(item.ID); ok {
		b.Lane(lane).RemovePending(item.ID)
	}
	history := []*domain.Item{item}
	for _, q := range b.Lanes {
		for _, h := range q.History {
			if h.ID != item.ID {
				history = append(history, h)
			}
		}
	}
	fresh := domain.BoardFrom(b.AllPending(), history)
	b.Lanes = fresh.Lanes
	for _, q := range b.Lanes {
		if err := projection.Project(q, 0, e.rules); err != nil {
			return err
		}
	}
	return nil
}

// RefreshOpenIssues re-reads which pending items have unresolved issues
// and reprojects the lanes whose flags changed.
func (e *Engine) RefreshOpenIssues(ctx context.Context) (int, error) {
	var flipped int
	err := e.run(ctx, "refresh_issues", func(ctx context.Context, logger *slog.Logger, fields map[string]any) error {
		flagged, err := e.upstream.OpenIssues(ctx)
		if err != nil {
			return fmt.Errorf("fetching open issues: %w", err)
		}
		work, _, err := e.state(ctx)
		if err != nil {
			return err
		}
		before := reconcile.TakeSnapshot(work)

		for _, q := range work.Lanes {
			first := -1
			for i, it := range q.Pending {
				if it.HasOpenIssue != flagged[it.ID] {
					it.HasOpenIssue = flagged[it.ID]
					flipped++
					if first < 0 {
						first = i
					}
				}
			}
			if first >= 0 {
				if err := projection.Project(q, first, e.rules); err != nil {
					return err
				}
			}
		}
		fields["flipped"] = flipped
		if flipped == 0 {
			return nil
		}
		projection.AdjustCrossLane(work, e.rules)
		return e.commit(ctx, logger, change{board: work, before: before}).WriteErr
	})
	return flipped, err
}

// Prune deletes promoted items older than the retention period from the
// store and, in memory mode, drops History too old to affect projections.
func (e *Engine) Prune(ctx context.Context) (int64, error) {
	var n int64
	err := e.run(ctx, "prune", func(ctx context.Context, logger *slog.Logger, fields map[string]any) error {
		now := e.now()
		var err error
		n, err = e.store.Items.DeletePromotedBefore(ctx, now.Add(-e.retention))
		if err != nil {
			return fmt.Errorf("pruning store: %w", err)
		}
		fields["deleted"] = n
		if e.mode == ModeMemory && e.board != nil {
			dropped := 0
			for _, q := range e.board.Lanes {
				dropped += q.PruneHistory(e.historySince())
			}
			fields["history_dropped"] = dropped
		}
		return nil
	})
	return n, err
}

// Checkpoint writes the whole in-memory board and cursor. It does nothing
// in stateless mode, where every pass is already durable.
func (e *Engine) Checkpoint(ctx context.Context) error {
	if e.mode != ModeMemory {
		return nil
	}
	return e.run(ctx, "checkpoint", func(ctx context.Context, logger *slog.Logger, fields map[string]any) error {
		if e.board == nil {
			return nil
		}
		items := e.board.All()
		fields["items"] = len(items)
		w := repository.PassWrite{
			Upsert: items,
			Cursor: &domain.Cursor{LastEventID: e.cursor, UpdatedAt: e.now().UTC()},
		}
		for id := range e.retryDelete {
			w.Delete = append(w.Delete, id)
		}
		if err := e.store.SavePass(ctx, w); err != nil {
			return fmt.Errorf("writing checkpoint: %w", err)
		}
		clear(e.retryUpsert)
		clear(e.retryDelete)
		e.cursorDirty = false
		return nil
	})
}
