package analytics

import (
	"context"
	"log/slog"

	"nhstac/internal/canonical"
	"nhstac/internal/charts"
	"nhstac/internal/config"
	"nhstac/internal/exporter"
	"nhstac/pkg/contracts/domain"
)

// CountsJob reports row counts by organisation, year, sector and worksheet with shares
type CountsJob struct{}

func (CountsJob) Name() string { return "counts" }

func (CountsJob) Description() string {
	return "Row counts by organisation, year and worksheet with percentage shares"
}

func (j CountsJob) Run(ctx context.Context, env *Env) (*Report, error) {
	if err := env.Store.RequireTable(ctx, config.FactTableName); err != nil {
		return nil, err
	}

	byOrg := NewGrouper(DimOrg, DimSector, DimFY)
	byWorkSheet := NewGrouper(DimFY, DimSector, DimWorkSheet)
	overall := NewGrouper(DimWorkSheet)
	bySector := NewGrouper(DimFY, DimSector)
	groupers := []*Grouper{byOrg, byWorkSheet, overall, bySector}

	rows := 0
	err := env.Store.ForEachFact(ctx, canonical.FactFilter{}, func(r domain.FactRecord) error {
		rows++
		for _, g := range groupers {
			g.Add(r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{Job: j.Name(), Rows: rows}
	w := env.Writer(j.Name())

	outputs := []struct {
		file      string
		grouper   *Grouper
		partition int
		shares    bool
	}{
		{"counts_by_org_fy.csv", byOrg, 0, false},
		{"counts_by_fy_sector_worksheet.csv", byWorkSheet, 2, true},
		{"counts_by_worksheet.csv", overall, 0, true},
		{"sector_share_by_fy.csv", bySector, 1, true},
	}

	for _, o := range outputs {
		headers := append(dimensionHeaders(o.grouper.Dimensions()), "rows", "abs_amount")
		if o.shares {
			headers = append(headers, "row_share_pct", "amount_share_pct")
		}

		var records [][]string
		if o.shares {
			for _, s := range Shares(o.grouper.Groups(), o.partition) {
				records = append(records, append(groupRow(s.GroupCount),
					exporter.FormatFloat(s.RowSharePct), exporter.FormatFloat(s.AmountSharePct)))
			}
		} else {
			for _, g := range o.grouper.Groups() {
				records = append(records, groupRow(g))
			}
		}

		path, err := w.WriteSimpleCSV(o.file, headers, records)
		if err != nil {
			return nil, err
		}
		report.Add(path)
	}

	sectorGroups := bySector.Groups()
	chart(ctx, env, j.Name(), report, func(r *charts.Renderer) (string, error) {
		labels, series := sectorSeries(sectorGroups, func(g GroupCount) float64 { return float64(g.Rows) })
		return r.GroupedBar("rows_by_fy_sector", "Fact rows by financial year and sector", "Rows", labels, series)
	})

	env.logger().InfoContext(ctx, "counts_completed",
		slog.Int("rows", rows),
		slog.Int("org_years", len(byOrg.groups)),
		slog.Int("worksheets", len(overall.groups)))

	return report, nil
}

func dimensionHeaders(dims []Dimension) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = string(d)
	}
	return out
}

func groupRow(g GroupCount) []string {
	row := append([]string(nil), g.Keys...)
	return append(row, exporter.FormatInt(g.Rows), exporter.FormatFloat(g.AbsAmount))
}

// sectorSeries pivots (fy, sector) groups into fy labels with one series per sector
func sectorSeries(groups []GroupCount, value func(GroupCount) float64) ([]string, []charts.Series) {
	fySet := make(map[string]bool)
	values := make(map[string]map[string]float64)
	for _, g := range groups {
		fy, sector := g.Keys[0], g.Keys[1]
		fySet[fy] = true
		if values[sector] == nil {
			values[sector] = make(map[string]float64)
		}
		values[sector][fy] = value(g)
	}

	labels := sortedKeys(fySet)
	var series []charts.Series
	for _, sector := range domain.Sectors {
		byFY, ok := values[string(sector)]
		if !ok {
			continue
		}
		s := charts.Series{Name: sector.DisplayName(), Values: make([]float64, len(labels))}
		for i, fy := range labels {
			s.Values[i] = byFY[fy]
		}
		series = append(series, s)
	}
	return labels, series
}
