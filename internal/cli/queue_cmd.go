package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/rankcast/internal/cli/formatter"
	"github.com/alexanderramin/rankcast/internal/domain"
)

func newQueueCmd(app *App) *cobra.Command {
	var laneNames []string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List queued items with their projected promotion",
		RunE: func(cmd *cobra.Command, args []string) error {
			lanes, err := parseLanes(laneNames)
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)
			e, err := app.engine(ctx)
			if err != nil {
				return err
			}
			b, err := e.Board(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatBoard(b, app.now(), lanes...))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&laneNames, "lane", "l", nil, "Only show these lanes (name or index)")
	return cmd
}

func parseLanes(names []string) ([]domain.Lane, error) {
	lanes := make([]domain.Lane, 0, len(names))
	for _, n := range names {
		l, err := domain.ParseLane(n)
		if err != nil {
			return nil, err
		}
		lanes = append(lanes, l)
	}
	return lanes, nil
}
