package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/reconcile"
)

// PassResult summarises one reconciliation pass.
type PassResult struct {
	Events   int
	Cursor   int64
	Updated  []*domain.Item
	Removed  []int64
	Failures []reconcile.Failure
	Resynced bool
	// WriteErr is set when persisting failed; the board was still updated.
	WriteErr error
}

// RunPass fetches new events, applies them, persists the changed items and
// notifies. Fetch errors and invariant violations end the pass with an
// error and leave the board as it was.
func (e *Engine) RunPass(ctx context.Context) (PassResult, error) {
	var res PassResult
	err := e.run(ctx, "pass", func(ctx context.Context, logger *slog.Logger, fields map[string]any) error {
		work, cursor, err := e.state(ctx)
		if err != nil {
			return err
		}
		before := reconcile.TakeSnapshot(work)

		events, latest, err := e.upstream.FetchSince(ctx, cursor)
		if err != nil {
			return fmt.Errorf("fetching events since %d: %w", cursor, err)
		}
		outcome, err := e.reconciler.Apply(ctx, work, cursor, events)
		if err != nil {
			return err
		}
		next := max(outcome.Cursor, latest)

		c := change{board: work, before: before, removed: outcome.Removed, withdrawn: outcome.Withdrawn}
		if next != cursor {
			c.cursor = &domain.Cursor{LastEventID: next, UpdatedAt: e.now().UTC()}
		}
		committed := e.commit(ctx, logger, c)

		res = PassResult{
			Events:   len(events),
			Cursor:   next,
			Updated:  committed.Updated,
			Removed:  committed.Removed,
			Failures: outcome.Failures,
			Resynced: outcome.Resynced,
			WriteErr: committed.WriteErr,
		}
		fields["events"] = len(events)
		fields["cursor"] = next
		fields["updated"] = len(res.Updated)
		fields["removed"] = len(res.Removed)
		fields["failures"] = len(res.Failures)
		if len(events) > 0 {
			logger.Info("pass applied", "events", len(events), "applied", outcome.Applied,
				"skipped", outcome.Skipped, "failures", len(outcome.Failures), "cursor", next)
		}
		return nil
	})
	return res, err
}
