// Package service runs reconciliation passes and maintenance use cases
// over the board, the upstream source and the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/notify"
	"github.com/alexanderramin/rankcast/internal/projection"
	"github.com/alexanderramin/rankcast/internal/reconcile"
	"github.com/alexanderramin/rankcast/internal/repository"
)

const tracerName = "github.com/alexanderramin/rankcast/internal/service"

// Mode selects where the board lives between passes.
type Mode string

const (
	// ModeMemory keeps the board in process and persists only changes.
	ModeMemory Mode = "memory"
	// ModeStateless rebuilds the board from the store on every pass.
	ModeStateless Mode = "stateless"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMemory, ModeStateless:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want memory or stateless)", s)
}

type EventSource interface {
	FetchSince(ctx context.Context, cursor int64) ([]domain.Event, int64, error)
	LatestEventID(ctx context.Context) (int64, error)
}

// Upstream is everything the engine reads from the external system.
type Upstream interface {
	EventSource
	reconcile.ReadinessSource
	reconcile.HistorySource
	QualifiedItems(ctx context.Context) ([]*domain.Item, error)
	OpenIssues(ctx context.Context) (map[int64]bool, error)
}

type Options struct {
	Mode  Mode
	Rules projection.Rules
	// Retention is how long promoted items stay in the store.
	Retention time.Duration
	Logger    *slog.Logger
	Observer  UseCaseObserver
	Now       func() time.Time
}

type Engine struct {
	mu sync.Mutex

	mode       Mode
	rules      projection.Rules
	retention  time.Duration
	upstream   Upstream
	store      *repository.Store
	sink       notify.Sink
	reconciler *reconcile.Reconciler
	observer   UseCaseObserver
	tracer     trace.Tracer
	logger     *slog.Logger
	now        func() time.Time

	// memory mode state
	board  *domain.Board
	cursor int64
	// ids whose last write failed
	retryUpsert map[int64]bool
	retryDelete map[int64]bool
	cursorDirty bool
}

func New(upstream Upstream, store *repository.Store, sink notify.Sink, opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeMemory
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = NoopUseCaseObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retention <= 0 {
		opts.Retention = 7 * projection.Day
	}
	r := reconcile.New(opts.Rules, upstream, upstream, opts.Logger)
	return &Engine{
		mode:        opts.Mode,
		rules:       opts.Rules,
		retention:   opts.Retention,
		upstream:    upstream,
		store:       store,
		sink:        sink,
		reconciler:  r,
		observer:    opts.Observer,
		tracer:      otel.Tracer(tracerName),
		logger:      opts.Logger,
		now:         opts.Now,
		retryUpsert: map[int64]bool{},
		retryDelete: map[int64]bool{},
	}
}

func (e *Engine) Mode() Mode { return e.mode }

func (e *Engine) Rules() projection.Rules { return e.rules }

func (e *Engine) historySince() time.Time {
	return e.now().Add(-e.reconciler.HistoryWindow())
}

// state returns the working board and cursor. The board is a private copy
// the caller may mutate freely.
func (e *Engine) state(ctx context.Context) (*domain.Board, int64, error) {
	if e.mode == ModeMemory && e.board != nil {
		return e.board.Clone(), e.cursor, nil
	}
	b, err := e.store.LoadBoard(ctx, e.historySince())
	if err != nil {
		return nil, 0, fmt.Errorf("loading board: %w", err)
	}
	c, err := e.store.Cursor.Get(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, 0, fmt.Errorf("loading cursor: %w", err)
	}
	if e.mode == ModeMemory {
		e.board = b.Clone()
		e.cursor = c.LastEventID
	}
	return b, c.LastEventID, nil
}

// Board returns a copy of the current board.
func (e *Engine) Board(ctx context.Context) (*domain.Board, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, _, err := e.state(ctx)
	return b, err
}

// change is the result of mutating a working board.
type change struct {
	board     *domain.Board
	before    reconcile.Snapshot
	removed   []int64
	withdrawn []int64
	cursor    *domain.Cursor
}

type commitResult struct {
	Updated  []*domain.Item
	Removed  []int64
	WriteErr error
}

// commit adopts the working board, persists what changed and notifies.
// Write and notification failures are logged and do not undo the board;
// in memory mode the unwritten ids are retried on the next commit.
func (e *Engine) commit(ctx context.Context, logger *slog.Logger, c change) commitResult {
	dirty := reconcile.Diff(c.board, c.before)
	if e.mode == ModeMemory {
		e.board = c.board
		if c.cursor != nil {
			e.cursor = c.cursor.LastEventID
		}
	}

	upsert := dirty
	deletes := c.withdrawn
	if e.mode == ModeMemory {
		upsert, deletes = e.withRetries(c.board, dirty, c.withdrawn)
		if c.cursor == nil && e.cursorDirty {
			c.cursor = &domain.Cursor{LastEventID: e.cursor, UpdatedAt: e.now().UTC()}
		}
	}

	res := commitResult{Removed: c.removed}
	for _, it := range dirty {
		if it.Pending() {
			res.Updated = append(res.Updated, it)
		}
	}

	if len(upsert) > 0 || len(deletes) > 0 || c.cursor != nil {
		ctx, span := e.tracer.Start(ctx, "service.persist")
		err := e.store.SavePass(ctx, repository.PassWrite{Upsert: upsert, Delete: deletes, Cursor: c.cursor})
		span.End()
		if err != nil {
			res.WriteErr = err
			logger.Error("persisting changes failed", "upserts", len(upsert), "deletes", len(deletes), "error", err)
			if e.mode == ModeMemory {
				for _, it := range upsert {
					e.retryUpsert[it.ID] = true
				}
				for _, id := range deletes {
					e.retryDelete[id] = true
				}
				e.cursorDirty = e.cursorDirty || c.cursor != nil
			}
		} else {
			clear(e.retryUpsert)
			clear(e.retryDelete)
			e.cursorDirty = false
		}
	}

	n := notify.Notification{Timestamp: e.now().UTC(), Updated: res.Updated, Removed: res.Removed}
	if !n.Empty() && e.sink != nil {
		if err := e.sink.Notify(ctx, n); err != nil {
			logger.Error("notifying clients failed", "error", err)
		}
	}
	return res
}

func (e *Engine) withRetries(b *domain.Board, dirty []*domain.Item, withdrawn []int64) ([]*domain.Item, []int64) {
	upsert := dirty
	seen := make(map[int64]bool, len(dirty))
	for _, it := range dirty {
		seen[it.ID] = true
	}
	for id := range e.retryUpsert {
		if it, ok := b.Get(id); ok && !seen[id] {
			upsert = append(upsert, it)
			seen[id] = true
		}
	}
	deletes := withdrawn
	for id := range e.retryDelete {
		if _, ok := b.Get(id); !ok {
			deletes = append(deletes, id)
		}
	}
	return upsert, deletes
}

// Initialized reports whether Setup has stored a cursor.
func (e *Engine) Initialized(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.store.Cursor.Get(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("loading cursor: %w", err)
	}
	return true, nil
}
