package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alexanderramin/rankcast/internal/config"
	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/service"
)

// ErrNotInitialized is returned by pass commands before setup has run.
var ErrNotInitialized = errors.New("store is not initialized; run `rankcast setup` first")

// Engine is the service surface the commands use.
type Engine interface {
	Initialized(ctx context.Context) (bool, error)
	RunPass(ctx context.Context) (service.PassResult, error)
	Setup(ctx context.Context) (int, error)
	Reset(ctx context.Context) (int, error)
	Recalculate(ctx context.Context, dryRun bool) ([]*domain.Item, error)
	Insert(ctx context.Context, id int64) (*domain.Item, error)
	RefreshOpenIssues(ctx context.Context) (int, error)
	Prune(ctx context.Context) (int64, error)
	Board(ctx context.Context) (*domain.Board, error)
}

// Runtime is a wired engine plus its long-running driver.
type Runtime struct {
	Engine Engine
	// Serve blocks running the polling scheduler until ctx is done.
	Serve func(ctx context.Context) error
	Close func() error
}

// Opener wires a Runtime from the final configuration.
type Opener func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error)

// App holds configuration and lazily opens the runtime for commands.
type App struct {
	Config        config.Config
	Logger        *slog.Logger
	Open          Opener
	IsInteractive func() bool
	Now           func() time.Time

	rt *Runtime
}

func (a *App) runtime(ctx context.Context) (*Runtime, error) {
	if a.rt != nil {
		return a.rt, nil
	}
	rt, err := a.Open(ctx, a.Config, a.Logger)
	if err != nil {
		return nil, err
	}
	a.rt = rt
	return rt, nil
}

func (a *App) engine(ctx context.Context) (Engine, error) {
	rt, err := a.runtime(ctx)
	if err != nil {
		return nil, err
	}
	return rt.Engine, nil
}

// initializedEngine refuses to run passes against an empty store.
func (a *App) initializedEngine(ctx context.Context) (Engine, error) {
	e, err := a.engine(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := e.Initialized(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return e, nil
}

func (a *App) close() error {
	if a.rt == nil || a.rt.Close == nil {
		return nil
	}
	err := a.rt.Close()
	a.rt = nil
	return err
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}
