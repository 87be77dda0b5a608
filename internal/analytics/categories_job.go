package analytics

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"nhstac/internal/canonical"
	"nhstac/internal/charts"
	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/exporter"
	"nhstac/internal/extract"
	"nhstac/pkg/contracts/domain"
)

// CategoriesJob classifies sub codes by their harvested labels and totals the
// categorised spend per fy and sector
type CategoriesJob struct{}

func (CategoriesJob) Name() string { return "categories" }

func (CategoriesJob) Description() string {
	return "Keyword spend categories with share of operating expenditure"
}

type categorisedCode struct {
	fy, wsKey, subCode string
}

// codeLabel is one row of the harvested sub code labels
type codeLabel struct {
	fy, workSheet, wsKey, subCode, label string
}

func (l codeLabel) key() categorisedCode {
	return categorisedCode{fy: l.fy, wsKey: l.wsKey, subCode: l.subCode}
}

// readCodeLabels loads the harvested labels ordered by fy, worksheet key and sub code
func readCodeLabels(ctx context.Context, store *canonical.Store) ([]codeLabel, error) {
	if err := store.RequireTable(ctx, config.SubCodeLabelTable); err != nil {
		return nil, err
	}
	rows, err := store.DB().QueryContext(ctx,
		"SELECT fy, WorkSheetName, ws_key, SubCode, subcode_label FROM "+config.SubCodeLabelTable+
			" ORDER BY fy, ws_key, SubCode")
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read sub code labels", err)
	}
	defer rows.Close()

	var out []codeLabel
	for rows.Next() {
		var l codeLabel
		if err := rows.Scan(&l.fy, &l.workSheet, &l.wsKey, &l.subCode, &l.label); err != nil {
			return nil, apperrors.NewStorageError("failed to scan sub code label", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to read sub code labels", err)
	}
	return out, nil
}

func (j CategoriesJob) Run(ctx context.Context, env *Env) (*Report, error) {
	rules, err := LoadCategoryRules(env.Config.CategoryRules)
	if err != nil {
		return nil, apperrors.NewConfigError("category rules", err)
	}
	labels, err := readCodeLabels(ctx, env.Store)
	if err != nil {
		return nil, err
	}

	matched := make(map[categorisedCode][]string)
	var subcodeRows [][]string
	for _, l := range labels {
		cats := rules.Match(l.label)
		if len(cats) == 0 {
			continue
		}
		matched[l.key()] = cats
		for _, c := range cats {
			subcodeRows = append(subcodeRows, []string{l.fy, l.workSheet, l.subCode, l.label, c})
		}
	}

	denominator := extract.NormalizeName(rules.DenominatorWorkSheet)
	acc := NewCategoryAccumulator()
	var factRows int
	err = env.Store.ForEachFact(ctx, canonical.FactFilter{}, func(r domain.FactRecord) error {
		factRows++
		wsKey := extract.NormalizeName(r.WorkSheetName)
		if wsKey == denominator && r.Amount != nil {
			acc.AddDenominator(r.FY, r.Sector, *r.Amount)
		}
		for _, c := range matched[categorisedCode{fy: r.FY, wsKey: wsKey, subCode: r.SubCode}] {
			acc.Add(r.FY, r.Sector, c, r.OrgName, r.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	totals := acc.Totals()
	totalRows := make([][]string, len(totals))
	for i, t := range totals {
		p := t.OrgPercentiles()
		totalRows[i] = []string{
			t.FY, t.Sector, t.Category,
			exporter.FormatInt(t.Rows),
			exporter.FormatInt(int64(t.Orgs)),
			t.Total.StringFixed(2),
			t.AbsTotal.StringFixed(2),
			t.Denominator.StringFixed(2),
			exporter.FormatRatio(t.SharePct()),
			exporter.FormatFloat(p[0]),
			exporter.FormatFloat(p[1]),
			exporter.FormatFloat(p[2]),
			exporter.FormatFloat(p[3]),
		}
	}

	report := &Report{Job: j.Name(), Rows: factRows}
	w := env.Writer(j.Name())
	path, err := w.WriteSimpleCSV("category_subcodes.csv",
		[]string{"fy", "WorkSheetName", "SubCode", "subcode_label", "category"}, subcodeRows)
	if err != nil {
		return nil, err
	}
	report.Add(path)

	path, err = w.WriteSimpleCSV("category_totals.csv", []string{
		"fy", "sector", "category", "rows", "orgs", "total_amount", "abs_amount",
		"opex_abs_amount", "share_of_opex_pct", "p25", "p50", "p75", "p90",
	}, totalRows)
	if err != nil {
		return nil, err
	}
	report.Add(path)

	chart(ctx, env, j.Name(), report, func(r *charts.Renderer) (string, error) {
		labels, series := categoryShareSeries(totals)
		return r.GroupedBar("share_of_opex", "Category share of operating expenditure", "% of opex", labels, series)
	})

	env.logger().InfoContext(ctx, "categories_completed",
		slog.Int("categorised_subcodes", len(matched)),
		slog.Int("groups", len(totals)))

	return report, nil
}

// categoryShareSeries lays out one series per category over fy/sector labels
func categoryShareSeries(totals []CategoryTotal) ([]string, []charts.Series) {
	labelIndex := make(map[string]int)
	var labels []string
	for _, t := range totals {
		l := t.FY + " " + t.Sector
		if _, ok := labelIndex[l]; !ok {
			labelIndex[l] = len(labels)
			labels = append(labels, l)
		}
	}

	byCategory := make(map[string][]float64)
	for _, t := range totals {
		v, ok := byCategory[t.Category]
		if !ok {
			v = make([]float64, len(labels))
			byCategory[t.Category] = v
		}
		share := t.SharePct()
		if math.IsNaN(share) {
			share = 0
		}
		v[labelIndex[t.FY+" "+t.Sector]] = share
	}

	names := make([]string, 0, len(byCategory))
	for name := range byCategory {
		names = append(names, name)
	}
	sort.Strings(names)
	series := make([]charts.Series, len(names))
	for i, name := range names {
		series[i] = charts.Series{Name: name, Values: byCategory[name]}
	}
	return labels, series
}
