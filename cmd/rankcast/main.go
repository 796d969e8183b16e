package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/alexanderramin/rankcast/internal/cli"
	"github.com/alexanderramin/rankcast/internal/config"
	"github.com/alexanderramin/rankcast/internal/db"
	"github.com/alexanderramin/rankcast/internal/notify"
	"github.com/alexanderramin/rankcast/internal/osu"
	"github.com/alexanderramin/rankcast/internal/projection"
	"github.com/alexanderramin/rankcast/internal/repository"
	"github.com/alexanderramin/rankcast/internal/scheduler"
	"github.com/alexanderramin/rankcast/internal/service"
	"github.com/alexanderramin/rankcast/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := telemetry.NewLogger(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx := context.Background()
	shutdown, err := telemetry.SetupTracing(ctx, cfg.OTelEndpoint, "rankcast")
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	app := &cli.App{
		Config: cfg,
		Logger: logger,
		Open:   open,
	}

	// Detect interactive terminal for confirmation prompts.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}

// open wires the store, the upstream client, the engine and its scheduler.
func open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*cli.Runtime, error) {
	// Flags may have changed the level after the logger was built.
	if level, err := cfg.Level(); err == nil {
		logger = telemetry.NewLogger(os.Stderr, level, cfg.LogFormat)
	}

	rules, err := projection.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	mode, err := service.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var tokens osu.TokenSource = osu.StaticToken(cfg.AccessToken)
	if cfg.ClientID != "" {
		tokens = osu.NewClientCredentials(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, nil)
	}
	client := osu.NewClient(osu.Options{
		BaseURL:          cfg.APIBase,
		Tokens:           tokens,
		Rules:            rules,
		Logger:           logger.With("component", "osu"),
		RequestInterval:  cfg.RequestInterval,
		EventPageSize:    cfg.EventPageSize,
		CallsBeforePause: cfg.CallsBeforePause,
		CallPause:        cfg.CallPause,
	})

	store := repository.NewStore(database)
	sink := notify.Multi{
		notify.LogSink{Logger: logger.With("component", "notify")},
		notify.StoreSink{Updates: store.Updates},
	}

	engine := service.New(client, store, sink, service.Options{
		Mode:      mode,
		Rules:     rules,
		Retention: cfg.Retention,
		Logger:    logger.With("component", "engine"),
		Observer:  service.NewSlogUseCaseObserver(logger),
	})

	checkpointEvery := cfg.CheckpointEvery
	if mode == service.ModeStateless {
		checkpointEvery = 0
	}
	sched := scheduler.New(engine, scheduler.Options{
		PollInterval: cfg.PollInterval,
		Burst: scheduler.BurstConfig{
			Interval: cfg.BurstInterval,
			Horizon:  cfg.BurstHorizon,
			Base:     cfg.BurstBase,
			PerItem:  cfg.BurstPerItem,
			Max:      cfg.BurstMax,
		},
		IssueRefreshEvery: cfg.IssueRefreshEvery,
		CheckpointEvery:   checkpointEvery,
		Rules:             rules,
		Logger:            logger.With("component", "scheduler"),
	})

	return &cli.Runtime{
		Engine: engine,
		Serve:  sched.Run,
		Close:  database.Close,
	}, nil
}
