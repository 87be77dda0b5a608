package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nhstac/internal/analytics"
	"nhstac/internal/app"
	"nhstac/internal/canonical"
	"nhstac/internal/dimensions"
	"nhstac/internal/exporter"
	"nhstac/internal/operations"
)

func newExtractCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Extract the raw workbooks into the canonical Parquet file and DuckDB table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				state, err := a.RunPipeline(ctx, "extract", operations.Selection{Extract: true}, false)
				printRun(cmd.OutOrStdout(), state)
				if err != nil {
					return err
				}
				return printExtract(cmd.OutOrStdout(), state)
			})
		},
	}
}

func newDimsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dims [dimension...]",
		Short: "Build dimension tables (all when none named)",
		Long:  "Build dimension tables from the fact table.\n\nDimensions:\n" + describeDims(),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := operations.Selection{Dimensions: args}
			if len(args) == 0 {
				sel.Dimensions = operations.FullSelection().Dimensions
			}
			return runSelection(cmd, flags, "dims", sel, false)
		},
	}
}

func newAnalyzeCommand(flags *globalFlags) *cobra.Command {
	var continueOnError bool
	cmd := &cobra.Command{
		Use:   "analyze [job...]",
		Short: "Run analysis jobs (all when none named)",
		Long:  "Run descriptive analysis jobs over the fact table.\n\nJobs:\n" + describeJobs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := operations.Selection{Analyses: args}
			if len(args) == 0 {
				sel.Analyses = operations.FullSelection().Analyses
			}
			return runSelection(cmd, flags, "analyze", sel, continueOnError)
		},
	}
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep running jobs after one fails")
	return cmd
}

func newPipelineCommand(flags *globalFlags) *cobra.Command {
	var continueOnError bool
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run extract, every dimension and every analysis job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelection(cmd, flags, "pipeline", operations.FullSelection(), continueOnError)
		},
	}
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep running steps that do not depend on a failed one")
	return cmd
}

func runSelection(cmd *cobra.Command, flags *globalFlags, command string, sel operations.Selection, continueOnError bool) error {
	names := append(append([]string{}, sel.Dimensions...), sel.Analyses...)
	label := strings.TrimSpace(command + " " + strings.Join(names, " "))
	if command == "pipeline" {
		label = command
	}
	return flags.withApp(cmd, func(ctx context.Context, a *app.Application) error {
		state, err := a.RunPipeline(ctx, label, sel, continueOnError)
		printRun(cmd.OutOrStdout(), state)
		return err
	})
}

// printRun writes the step table of a run; nothing when the run never started
func printRun(w io.Writer, state *operations.RunState) {
	if state == nil {
		return
	}
	fmt.Fprintf(w, "run %s: %s\n\n", state.ID, state.GetStatus())

	var rows [][]string
	for _, s := range state.Steps() {
		rows = append(rows, []string{
			s.ID,
			string(s.GetStatus()),
			s.Duration().Round(time.Millisecond).String(),
			stepDetail(state, s),
		})
	}
	exporter.PrintTable(w, []string{"step", "status", "duration", "detail"}, rows)
}

func stepDetail(state *operations.RunState, s *operations.StepState) string {
	switch s.GetStatus() {
	case operations.StepStatusFailed:
		if s.Error != nil {
			return s.Error.Error()
		}
	case operations.StepStatusSkipped:
		return s.Message
	}

	v, ok := state.GetValue(operations.ValueResultPrefix + s.ID)
	if !ok {
		return ""
	}
	switch r := v.(type) {
	case *dimensions.Result:
		return fmt.Sprintf("%s: %d rows", r.Table, r.Rows)
	case *analytics.Report:
		return fmt.Sprintf("%d outputs", len(r.Outputs))
	}
	return ""
}

func printExtract(w io.Writer, state *operations.RunState) error {
	v, ok := state.GetValue(operations.ValueBuildReport)
	if !ok {
		return nil
	}
	report := v.(*canonical.BuildReport)

	fmt.Fprintf(w, "\nextracted %d workbooks, skipped %d, %d rows\n\n", report.Extracted, report.Skipped, report.Rows)
	rows := make([][]string, len(report.QC))
	for i, q := range report.QC {
		rows[i] = []string{q.FY, q.Sector, exporter.FormatInt(q.Rows), exporter.FormatInt(q.NullAmounts), q.TotalAmount.StringFixed(2)}
	}
	return exporter.PrintTable(w, []string{"fy", "sector", "rows", "null_amounts", "total_amount"}, rows)
}

func describeJobs() string {
	var b strings.Builder
	for _, j := range analytics.Jobs() {
		fmt.Fprintf(&b, "  %-12s %s\n", j.Name(), j.Description())
	}
	return b.String()
}

func describeDims() string {
	var b strings.Builder
	for _, j := range dimensions.Jobs() {
		fmt.Fprintf(&b, "  %-12s %s\n", j.Name(), j.Description())
	}
	return b.String()
}
