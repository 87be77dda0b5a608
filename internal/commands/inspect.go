package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"nhstac/internal/app"
	"nhstac/internal/config"
	"nhstac/internal/exporter"
)

func newInspectCommand(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "inspect [table]",
		Short: "List the database tables, then the columns and first rows of a table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := config.FactTableName
			if len(args) == 1 {
				table = args[0]
			}
			return flags.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				return inspect(ctx, cmd.OutOrStdout(), a, table, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of rows to preview")
	return cmd
}

func inspect(ctx context.Context, w io.Writer, a *app.Application, table string, limit int) error {
	store, err := a.OpenStore()
	if err != nil {
		return err
	}
	defer store.Close()

	tables, err := store.Tables(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, len(tables))
	for i, t := range tables {
		rows[i] = []string{t.Name, exporter.FormatInt(t.Rows)}
	}
	fmt.Fprintf(w, "## tables in %s\n\n", store.Path())
	if err := exporter.PrintTable(w, []string{"table", "rows"}, rows); err != nil {
		return err
	}

	columns, err := store.Columns(ctx, table)
	if err != nil {
		return err
	}
	rows = make([][]string, len(columns))
	for i, c := range columns {
		rows[i] = []string{c.Name, c.Type}
	}
	fmt.Fprintf(w, "\n## columns of %s\n\n", table)
	if err := exporter.PrintTable(w, []string{"column", "type"}, rows); err != nil {
		return err
	}

	headers, preview, err := store.Preview(ctx, table, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n## first %d rows of %s\n\n", len(preview), table)
	return exporter.PrintTable(w, headers, preview)
}
