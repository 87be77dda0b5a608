package dimensions

import (
	"context"
	"log/slog"
	"sort"

	"nhstac/internal/analytics"
	"nhstac/internal/canonical"
	"nhstac/internal/config"
)

var lineSeedColumns = []canonical.Column{
	{Name: "TableID", Type: "VARCHAR"},
	{Name: "MainCode", Type: "VARCHAR"},
	{Name: "SubCode", Type: "VARCHAR"},
	{Name: "RowNumber", Type: "VARCHAR"},
	{Name: "line_label", Type: "VARCHAR"},
	{Name: "category_1", Type: "VARCHAR"},
	{Name: "category_2", Type: "VARCHAR"},
	{Name: "is_digital_data_it", Type: "VARCHAR"},
	{Name: "notes", Type: "VARCHAR"},
}

// LinesJob seeds dim_tac_lines_seed from the top lines of the focus year.
// The label and category columns are left blank for manual classification.
type LinesJob struct{}

func (LinesJob) Name() string { return "lines" }

func (LinesJob) Description() string {
	return "TAC line seed from the focus year's top lines"
}

type lineKey struct {
	tableID, mainCode, subCode, rowNumber string
}

func (j LinesJob) Run(ctx context.Context, env *Env) (*Result, error) {
	if err := env.Store.RequireTable(ctx, config.FactTableName); err != nil {
		return nil, err
	}

	fy := env.Analytics.FocusFY
	if fy == "" {
		latest, err := analytics.LatestFY(ctx, env.Store.DB())
		if err != nil {
			return nil, err
		}
		fy = latest
	}
	n := env.Analytics.TopN
	if n <= 0 {
		n = config.DefaultTopN
	}

	top, err := analytics.TopLines(ctx, env.Store.DB(), fy, n)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		env.logger().WarnContext(ctx, "no_lines_for_focus_year", slog.String("fy", fy))
	}

	seen := make(map[lineKey]bool)
	var keys []lineKey
	for _, l := range top {
		k := lineKey{l.TableID, l.MainCode, l.SubCode, l.RowNumber}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(a, b int) bool {
		x, y := keys[a], keys[b]
		if x.tableID != y.tableID {
			return x.tableID < y.tableID
		}
		if x.mainCode != y.mainCode {
			return x.mainCode < y.mainCode
		}
		if x.subCode != y.subCode {
			return x.subCode < y.subCode
		}
		return x.rowNumber < y.rowNumber
	})

	rows := make([][]interface{}, len(keys))
	for i, k := range keys {
		rows[i] = []interface{}{k.tableID, k.mainCode, k.subCode, k.rowNumber, "", "", "", "", ""}
	}
	return publish(ctx, env, config.LineSeedTable, lineSeedColumns, rows)
}
