// Package scheduler drives reconciliation passes on a wall-clock aligned
// poll plus short bursts around cadence boundaries.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/projection"
	"github.com/alexanderramin/rankcast/internal/service"
)

// Runner is the engine surface the scheduler drives.
type Runner interface {
	RunPass(ctx context.Context) (service.PassResult, error)
	RefreshOpenIssues(ctx context.Context) (int, error)
	Checkpoint(ctx context.Context) error
	Prune(ctx context.Context) (int64, error)
	Board(ctx context.Context) (*domain.Board, error)
}

type Options struct {
	PollInterval      time.Duration
	Burst             BurstConfig
	IssueRefreshEvery time.Duration
	// CheckpointEvery is zero in stateless mode.
	CheckpointEvery time.Duration
	PruneEvery      time.Duration
	Rules           projection.Rules
	Logger          *slog.Logger
}

type Scheduler struct {
	runner Runner
	opts   Options
	group  singleflight.Group
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	burstCancel context.CancelFunc
	burstDone   chan struct{}

	lastIssueRefresh time.Time
	lastCheckpoint   time.Time
	lastPrune        time.Time
}

func New(runner Runner, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Minute
	}
	if opts.PruneEvery <= 0 {
		opts.PruneEvery = projection.Day
	}
	return &Scheduler{runner: runner, opts: opts, now: time.Now, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Trigger runs a pass, or joins the one already in flight.
func (s *Scheduler) Trigger(ctx context.Context) (service.PassResult, error) {
	v, err, shared := s.group.Do("pass", func() (any, error) {
		return s.runner.RunPass(ctx)
	})
	if shared {
		s.opts.Logger.Debug("joined in-flight pass")
	}
	res, _ := v.(service.PassResult)
	return res, err
}

// Run ticks on PollInterval boundaries until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stopBurst()
	prev := s.now()
	s.opts.Logger.Info("scheduler started", "poll_interval", s.opts.PollInterval)
	for {
		now := s.now()
		next := now.Truncate(s.opts.PollInterval).Add(s.opts.PollInterval)
		if err := s.sleep(ctx, next.Sub(now)); err != nil {
			if errors.Is(err, context.Canceled) {
				s.opts.Logger.Info("scheduler stopped")
				return nil
			}
			return err
		}
		tickAt := s.now()
		s.tick(ctx, prev, tickAt)
		prev = tickAt
	}
}

// tick runs one baseline round. Errors are logged; the next tick retries.
func (s *Scheduler) tick(ctx context.Context, prev, now time.Time) {
	logger := s.opts.Logger

	board, err := s.runner.Board(ctx)
	if err != nil {
		logger.Error("reading board", "error", err)
	}

	if board != nil && boundaryBetween(prev, now, s.opts.Rules) {
		if burst, ok := PlanBurst(board, now, s.opts.Burst, s.opts.Rules); ok {
			s.startBurst(ctx, burst)
		}
	}

	if s.lastIssueRefresh.IsZero() || now.Sub(s.lastIssueRefresh) >= s.opts.IssueRefreshEvery || anyFlagged(board) {
		if _, err := s.runner.RefreshOpenIssues(ctx); err != nil {
			logger.Error("refreshing open issues", "error", err)
		} else {
			s.lastIssueRefresh = now
		}
	}

	if _, err := s.Trigger(ctx); err != nil {
		logger.Error("pass failed", "error", err)
	}

	if s.opts.CheckpointEvery > 0 && now.Sub(s.lastCheckpoint) >= s.opts.CheckpointEvery {
		if err := s.runner.Checkpoint(ctx); err != nil {
			logger.Error("checkpoint failed", "error", err)
		} else {
			s.lastCheckpoint = now
		}
	}

	if now.Sub(s.lastPrune) >= s.opts.PruneEvery {
		if n, err := s.runner.Prune(ctx); err != nil {
			logger.Error("prune failed", "error", err)
		} else {
			s.lastPrune = now
			logger.Info("pruned promoted items", "deleted", n)
		}
	}
}

// boundaryBetween reports whether a cadence tick falls in (prev, now].
func boundaryBetween(prev, now time.Time, r projection.Rules) bool {
	return projection.FloorTick(now, r).After(prev)
}

func anyFlagged(b *domain.Board) bool {
	if b == nil {
		return false
	}
	for _, it := range b.AllPending() {
		if it.HasOpenIssue {
			return true
		}
	}
	return false
}

// startBurst replaces any running burst.
func (s *Scheduler) startBurst(parent context.Context, b Burst) {
	s.stopBurst()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.mu.Lock()
	s.burstCancel = cancel
	s.burstDone = done
	s.mu.Unlock()

	s.opts.Logger.Info("burst planned", "targets", b.Targets, "delay", b.Delay, "duration", b.Duration, "repeats", b.Repeats)
	go func() {
		defer close(done)
		s.runBurst(ctx, b)
	}()
}

func (s *Scheduler) stopBurst() {
	s.mu.Lock()
	cancel, done := s.burstCancel, s.burstDone
	s.burstCancel, s.burstDone = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// runBurst waits out the delay, then runs a pass every burst interval
// until every target left Pending, a pass fails or the repeats run out.
func (s *Scheduler) runBurst(ctx context.Context, b Burst) {
	logger := s.opts.Logger
	if err := s.sleep(ctx, b.Delay); err != nil {
		return
	}
	for i := 0; i < b.Repeats; i++ {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.Burst.Interval); err != nil {
				return
			}
		}
		if _, err := s.Trigger(ctx); err != nil {
			logger.Warn("burst pass failed, ending burst", "repeat", i+1, "error", err)
			return
		}
		board, err := s.runner.Board(ctx)
		if err != nil {
			logger.Warn("reading board during burst", "error", err)
			return
		}
		if !anyPending(board, b.Targets) {
			logger.Info("burst targets resolved", "repeats_used", i+1)
			return
		}
	}
	logger.Info("burst exhausted", "repeats", b.Repeats)
}

func anyPending(b *domain.Board, ids []int64) bool {
	for _, id := range ids {
		if _, _, ok := b.FindPending(id); ok {
			return true
		}
	}
	return false
}
