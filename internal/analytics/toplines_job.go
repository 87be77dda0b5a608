package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"nhstac/internal/canonical"
	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/exporter"
)

// TopLinesJob ranks the TAC lines of the focus year by absolute spend per sector
type TopLinesJob struct{}

func (TopLinesJob) Name() string { return "toplines" }

func (TopLinesJob) Description() string {
	return "Top N lines by SUM(ABS(amount)) per sector for the focus year"
}

var topLineColumns = []canonical.Column{
	{Name: "fy", Type: "VARCHAR"},
	{Name: "sector", Type: "VARCHAR"},
	{Name: "TableID", Type: "VARCHAR"},
	{Name: "MainCode", Type: "VARCHAR"},
	{Name: "SubCode", Type: "VARCHAR"},
	{Name: "RowNumber", Type: "VARCHAR"},
	{Name: "abs_amount", Type: "DOUBLE"},
	{Name: "rank", Type: "BIGINT"},
}

func (j TopLinesJob) Run(ctx context.Context, env *Env) (*Report, error) {
	if err := env.Store.RequireTable(ctx, config.FactTableName); err != nil {
		return nil, err
	}

	fy := env.Config.FocusFY
	if fy == "" {
		latest, err := LatestFY(ctx, env.Store.DB())
		if err != nil {
			return nil, err
		}
		fy = latest
	}
	n := env.Config.TopN
	if n <= 0 {
		n = config.DefaultTopN
	}

	lines, err := TopLines(ctx, env.Store.DB(), fy, n)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperrors.NewNotFoundError("lines for financial year " + fy)
	}

	records := make([][]string, len(lines))
	rows := make([][]interface{}, len(lines))
	for i, l := range lines {
		records[i] = []string{
			l.FY, l.Sector, l.TableID, l.MainCode, l.SubCode, l.RowNumber,
			exporter.FormatFloat(l.AbsAmount),
			exporter.FormatInt(l.Rank),
		}
		rows[i] = []interface{}{l.FY, l.Sector, l.TableID, l.MainCode, l.SubCode, l.RowNumber, l.AbsAmount, l.Rank}
	}

	headers := make([]string, len(topLineColumns))
	for i, c := range topLineColumns {
		headers[i] = c.Name
	}

	report := &Report{Job: j.Name(), Rows: len(lines)}
	path, err := env.Writer(j.Name()).WriteSimpleCSV(fmt.Sprintf("top_%d_lines_%s.csv", n, fy), headers, records)
	if err != nil {
		return nil, err
	}
	report.Add(path)

	if err := env.Store.ReplaceTable(ctx, config.TopLinesTable, topLineColumns, rows); err != nil {
		return nil, err
	}

	env.logger().InfoContext(ctx, "toplines_completed",
		slog.String("fy", fy),
		slog.Int("top_n", n),
		slog.Int("lines", len(lines)))

	return report, nil
}
