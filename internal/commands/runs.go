package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nhstac/internal/app"
	"nhstac/internal/exporter"
)

func newRunsCommand(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recent runs, or the workbook outcomes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				l, err := a.OpenLedger()
				if err != nil {
					return err
				}
				defer l.Close()

				w := cmd.OutOrStdout()
				if len(args) == 1 {
					outcomes, err := l.Outcomes(ctx, args[0])
					if err != nil {
						return err
					}
					rows := make([][]string, len(outcomes))
					for i, o := range outcomes {
						rows[i] = []string{o.File, o.Sector, o.FY, string(o.Status), o.Reason, o.Sheet,
							fmt.Sprint(o.Rows), fmt.Sprint(o.NullAmounts)}
					}
					return exporter.PrintTable(w,
						[]string{"file", "sector", "fy", "status", "reason", "sheet", "rows", "null_amounts"}, rows)
				}

				runs, err := l.RecentRuns(ctx, limit)
				if err != nil {
					return err
				}
				rows := make([][]string, len(runs))
				for i, r := range runs {
					duration := "-"
					if r.FinishedAt != nil {
						duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
					}
					rows[i] = []string{r.ID, r.Command, string(r.Status), r.StartedAt.Format(time.RFC3339),
						duration, exporter.FormatInt(r.Rows), r.Error}
				}
				return exporter.PrintTable(w,
					[]string{"id", "command", "status", "started_at", "duration", "rows", "error"}, rows)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to list")
	return cmd
}
