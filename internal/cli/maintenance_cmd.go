package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/rankcast/internal/cli/formatter"
)

// ErrResetDeclined is returned when the reset confirmation is refused.
var ErrResetDeclined = errors.New("reset cancelled")

func newSetupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Seed the store from upstream and project every queued item",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			e, err := app.engine(ctx)
			if err != nil {
				return err
			}
			n, err := e.Setup(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stored %d items\n", formatter.StyleGreen.Render("setup complete:"), n)
			return nil
		},
	}
}

func newResetCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all stored state and run setup again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !app.interactive() {
					return errors.New("refusing to reset without --yes in a non-interactive session")
				}
				var ok bool
				if err := confirmForm("Delete every stored item and re-run setup?", &ok).Run(); err != nil {
					return err
				}
				if !ok {
					return ErrResetDeclined
				}
			}

			ctx := cmdContext(cmd)
			e, err := app.engine(ctx)
			if err != nil {
				return err
			}
			n, err := e.Reset(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stored %d items\n", formatter.StyleGreen.Render("reset complete:"), n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newRecalculateCmd(app *App) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Reproject every stored item from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			e, err := app.engine(ctx)
			if err != nil {
				return err
			}
			changed, err := e.Recalculate(ctx, dryRun)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatChanged(changed, app.now(), dryRun))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing them")
	return cmd
}

func newInsertCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <id>",
		Short: "Refetch one item from upstream and place it on the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			ctx := cmdContext(cmd)
			e, err := app.engine(ctx)
			if err != nil {
				return err
			}
			it, err := e.Insert(ctx, id)
			if err != nil {
				return err
			}
			if it == nil || !it.Pending() {
				fmt.Fprintf(cmd.OutOrStdout(), "item %d recorded as promoted\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "item %d queued in %s, projected %s (%s)\n",
				id, it.Lane, formatter.Clock(it.PromoteTime), formatter.Percent(it.Probability))
			return nil
		},
	}
}

func newRefreshIssuesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-issues",
		Short: "Re-read open issues and reproject affected lanes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			e, err := app.engine(ctx)
			if err != nil {
				return err
			}
			n, err := e.RefreshOpenIssues(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d items changed flag\n", n)
			return nil
		},
	}
}

func newPruneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete promoted items past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			e, err := app.engine(ctx)
			if err != nil {
				return err
			}
			n, err := e.Prune(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d promoted items\n", n)
			return nil
		},
	}
}

func rankcastHuhTheme() *huh.Theme {
	t := huh.ThemeBase()
	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(formatter.ColorFg).Background(formatter.ColorRed).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(formatter.ColorDim).Padding(0, 1)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	return t
}

// confirmForm creates a huh form for a yes/no confirmation.
func confirmForm(title string, result *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Reset").
				Negative("Cancel").
				Value(result),
		),
	).WithTheme(rankcastHuhTheme()).WithShowHelp(false)
}
