package analytics

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"nhstac/internal/charts"
	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/exporter"
	"nhstac/internal/extract"
)

// SchemaJob tracks how the set of TAC sub codes evolves across financial years
type SchemaJob struct{}

func (SchemaJob) Name() string { return "schema" }

func (SchemaJob) Description() string {
	return "Sub code schema evolution: new, removed, stable and volatile codes per year"
}

func (j SchemaJob) Run(ctx context.Context, env *Env) (*Report, error) {
	if err := env.Store.RequireTable(ctx, config.FactTableName); err != nil {
		return nil, err
	}

	labels, err := subCodeLabels(ctx, env)
	if err != nil {
		return nil, err
	}
	presence, err := subCodePresence(ctx, env.Store.DB(), labels)
	if err != nil {
		return nil, err
	}
	evo := AnalyzeSchema(presence)

	providers, err := countDistinct(ctx, env.Store.DB(), "sector, org_name_raw")
	if err != nil {
		return nil, err
	}
	lines, err := countDistinct(ctx, env.Store.DB(), "TableID, MainCode, SubCode, RowNumber")
	if err != nil {
		return nil, err
	}

	report := &Report{Job: j.Name(), Rows: len(presence)}
	w := env.Writer(j.Name())

	var subcodeRows [][]string
	for _, h := range evo.SubCodes {
		subcodeRows = append(subcodeRows, []string{
			h.SubCode,
			strings.Join(h.Years, "|"),
			h.Label,
			h.PrimaryWorkSheet,
			exporter.FormatInt(int64(len(h.Years))),
		})
	}

	var changeRows, detailRows [][]string
	fyLabels := make([]string, len(evo.Years))
	totals := make([]float64, len(evo.Years))
	for i, y := range evo.Years {
		changeRows = append(changeRows, []string{
			y.FY,
			exporter.FormatInt(int64(y.Total)),
			exporter.FormatInt(int64(len(y.NewCodes))),
			exporter.FormatInt(int64(len(y.RemovedCodes))),
		})
		// the first year lists no additions; every code would be new
		if i > 0 {
			for _, code := range y.NewCodes {
				detailRows = append(detailRows, []string{y.FY, "new", code})
			}
		}
		for _, code := range y.RemovedCodes {
			detailRows = append(detailRows, []string{y.FY, "removed", code})
		}
		fyLabels[i] = y.FY
		totals[i] = float64(y.Total)
	}

	summary := [][]string{{
		exporter.FormatInt(providers),
		exporter.FormatInt(int64(len(evo.SubCodes))),
		exporter.FormatInt(lines),
		exporter.FormatInt(int64(len(evo.Years))),
		exporter.FormatInt(int64(evo.WorkSheets)),
		exporter.FormatInt(int64(len(evo.Stable))),
		exporter.FormatInt(int64(len(evo.Volatile))),
	}}

	outputs := []struct {
		file    string
		headers []string
		rows    [][]string
	}{
		{"subcode_analysis.csv", []string{"SubCode", "financial_years", "label", "primary_worksheet", "num_years"}, subcodeRows},
		{"schema_changes.csv", []string{"fy", "total_subcodes", "new_subcodes", "removed_subcodes"}, changeRows},
		{"schema_change_detail.csv", []string{"fy", "change", "SubCode"}, detailRows},
		{"summary_statistics.csv", []string{"total_providers", "total_subcodes", "total_tac_lines", "financial_years", "worksheets", "stable_subcodes", "volatile_subcodes"}, summary},
	}
	for _, o := range outputs {
		path, err := w.WriteSimpleCSV(o.file, o.headers, o.rows)
		if err != nil {
			return nil, err
		}
		report.Add(path)
	}

	chart(ctx, env, j.Name(), report, func(r *charts.Renderer) (string, error) {
		return r.Line("subcodes_per_fy", "Sub codes per financial year", "Sub codes", fyLabels,
			[]charts.Series{{Name: "sub codes", Values: totals}})
	})

	env.logger().InfoContext(ctx, "schema_completed",
		slog.Int("years", len(evo.Years)),
		slog.Int("subcodes", len(evo.SubCodes)),
		slog.Int("stable", len(evo.Stable)),
		slog.Int("volatile", len(evo.Volatile)))

	return report, nil
}

type labelKey struct {
	fy      string
	wsKey   string
	subCode string
}

// subCodeLabels loads harvested labels when the label dimension has been built
func subCodeLabels(ctx context.Context, env *Env) (map[labelKey]string, error) {
	labels := make(map[labelKey]string)
	ok, err := env.Store.TableExists(ctx, config.SubCodeLabelTable)
	if err != nil || !ok {
		return labels, err
	}

	rows, err := env.Store.DB().QueryContext(ctx,
		"SELECT fy, ws_key, SubCode, subcode_label FROM "+config.SubCodeLabelTable)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read sub code labels", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k labelKey
		var label string
		if err := rows.Scan(&k.fy, &k.wsKey, &k.subCode, &label); err != nil {
			return nil, apperrors.NewStorageError("failed to scan sub code label", err)
		}
		labels[k] = label
	}
	return labels, rows.Err()
}

func subCodePresence(ctx context.Context, db *sql.DB, labels map[labelKey]string) ([]SubCodePresence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT fy, SubCode, WorkSheetName
		FROM fact_tru_tac
		WHERE SubCode <> ''
		ORDER BY fy, SubCode, WorkSheetName`)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list sub codes", err)
	}
	defer rows.Close()

	var out []SubCodePresence
	for rows.Next() {
		var p SubCodePresence
		if err := rows.Scan(&p.FY, &p.SubCode, &p.WorkSheet); err != nil {
			return nil, apperrors.NewStorageError("failed to scan sub code", err)
		}
		p.Label = labels[labelKey{fy: p.FY, wsKey: extract.NormalizeName(p.WorkSheet), subCode: p.SubCode}]
		out = append(out, p)
	}
	return out, rows.Err()
}

func countDistinct(ctx context.Context, db *sql.DB, columns string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM (SELECT DISTINCT "+columns+" FROM fact_tru_tac)").Scan(&n)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to count distinct values", err)
	}
	return n, nil
}
