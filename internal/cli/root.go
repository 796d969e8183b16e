package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alexanderramin/rankcast/internal/config"
)

// NewRootCmd creates the top-level "rankcast" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "rankcast",
		Short:         "Projects when queued items will be promoted",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.Config.Validate()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}

	bindConfigFlags(root.PersistentFlags(), &app.Config)

	root.AddCommand(
		newServeCmd(app),
		newUpdateCmd(app),
		newRecalculateCmd(app),
		newSetupCmd(app),
		newResetCmd(app),
		newInsertCmd(app),
		newRefreshIssuesCmd(app),
		newPruneCmd(app),
		newQueueCmd(app),
		newWatchCmd(app),
	)

	return root
}

// bindConfigFlags lets flags override the environment-derived settings.
func bindConfigFlags(flags *pflag.FlagSet, cfg *config.Config) {
	flags.StringVar(&cfg.DB, "db", cfg.DB, "SQLite path or postgres:// DSN")
	flags.StringVar(&cfg.Mode, "mode", cfg.Mode, "Board mode: memory or stateless")
	flags.StringVar(&cfg.RulesFile, "rules", cfg.RulesFile, "HCL file overriding promotion rules")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
}
