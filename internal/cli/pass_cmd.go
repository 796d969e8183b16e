package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/rankcast/internal/cli/formatter"
	"github.com/alexanderramin/rankcast/internal/service"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll upstream and keep projections current until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := app.initializedEngine(ctx); err != nil {
				return err
			}
			rt, err := app.runtime(ctx)
			if err != nil {
				return err
			}
			return rt.Serve(ctx)
		},
	}
}

func newUpdateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Run a single reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			e, err := app.initializedEngine(ctx)
			if err != nil {
				return err
			}
			res, err := e.RunPass(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPass(summary(res)))
			return nil
		},
	}
}

func summary(res service.PassResult) formatter.PassSummary {
	return formatter.PassSummary{
		Events:   res.Events,
		Cursor:   res.Cursor,
		Updated:  res.Updated,
		Removed:  res.Removed,
		Failures: len(res.Failures),
		Resynced: res.Resynced,
		WriteErr: res.WriteErr,
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
