package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"nhstac/internal/canonical"
	"nhstac/internal/charts"
	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/exporter"
	"nhstac/internal/extract"
	"nhstac/pkg/contracts/domain"
)

// OutliersJob flags organisations whose spend on a category, or whose category
// spend as a share of operating income, deviates from their fy/sector peers,
// and organisations whose category spend grew unusually.
type OutliersJob struct{}

func (OutliersJob) Name() string { return "outliers" }

func (OutliersJob) Description() string {
	return "Z-score outliers of category spend and spend as % of operating income, plus growth outliers"
}

const (
	spendSuffix     = "_spend"
	pctIncomeSuffix = "_pct_income"
)

// MetricScore is a scored observation of one named metric
type MetricScore struct {
	Metric string
	Scored
}

// MetricGrowth is a growth score of one named metric
type MetricGrowth struct {
	Metric string
	Growth
}

var outlierHeaders = []string{"metric", "fy", "sector", "org_name_raw", "value", "group_size", "group_mean", "group_std", "z_score", "direction"}

var orgMetricHeaders = []string{"fy", "sector", "org_name_raw", "category", "spend", "operating_income", "pct_of_income"}

func (j OutliersJob) Run(ctx context.Context, env *Env) (*Report, error) {
	rules, err := LoadCategoryRules(env.Config.CategoryRules)
	if err != nil {
		return nil, apperrors.NewConfigError("category rules", err)
	}
	if err := env.Store.RequireTable(ctx, config.FactTableName); err != nil {
		return nil, err
	}
	labels, err := readCodeLabels(ctx, env.Store)
	if err != nil {
		return nil, err
	}

	matched := make(map[categorisedCode][]string)
	income := make(map[categorisedCode]bool)
	for _, l := range labels {
		if cats := rules.Match(l.label); len(cats) > 0 {
			matched[l.key()] = cats
		}
		if rules.IsIncome(l.wsKey, l.label) {
			income[l.key()] = true
		}
	}

	acc := NewOrgSpendAccumulator()
	err = env.Store.ForEachFact(ctx, canonical.FactFilter{}, func(r domain.FactRecord) error {
		k := categorisedCode{fy: r.FY, wsKey: extract.NormalizeName(r.WorkSheetName), subCode: r.SubCode}
		if income[k] && r.Amount != nil {
			acc.AddIncome(r.FY, r.Sector, r.OrgName, *r.Amount)
		}
		for _, c := range matched[k] {
			acc.AddSpend(r.FY, r.Sector, r.OrgName, c, r.Amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	spends := acc.Spends()

	threshold := env.Config.ZThreshold
	var scored, flagged []MetricScore
	var growthFlagged []MetricGrowth
	var summary [][]string
	var span GrowthSpan
	for _, c := range rules.Categories {
		spendObs, pctObs := CategoryObservations(spends, c.Name)
		for _, m := range []struct {
			name string
			obs  []Observation
		}{
			{c.Name + spendSuffix, spendObs},
			{c.Name + pctIncomeSuffix, pctObs},
		} {
			if len(m.obs) == 0 {
				continue
			}
			s := ScoreByGroup(m.obs)
			f := Flag(s, threshold)
			scored = append(scored, withMetric(m.name, s)...)
			flagged = append(flagged, withMetric(m.name, f)...)
			summary = append(summary, groupSummaryRows(m.name, s, f)...)
			env.Metrics.RecordOutliers(ctx, m.name, len(f))
		}

		_, gf, gs := GrowthOutliers(spendObs, threshold)
		if span.From == "" {
			span = gs
		}
		for _, g := range gf {
			growthFlagged = append(growthFlagged, MetricGrowth{Metric: c.Name + spendSuffix, Growth: g})
		}
		if gs.From != "" {
			env.Metrics.RecordOutliers(ctx, c.Name+spendSuffix+"_growth", len(gf))
		}
	}

	var high, low []MetricScore
	for _, s := range flagged {
		if s.Direction() == DirectionHigh {
			high = append(high, s)
		} else {
			low = append(low, s)
		}
	}

	report := &Report{Job: j.Name(), Rows: len(spends)}
	w := env.Writer(j.Name())

	write := func(file string, headers []string, records [][]string) error {
		path, err := w.WriteSimpleCSV(file, headers, records)
		if err != nil {
			return err
		}
		report.Add(path)
		return nil
	}

	if err := write("org_metrics.csv", orgMetricHeaders, orgMetricRows(spends)); err != nil {
		return nil, err
	}
	if err := write("high_outliers.csv", outlierHeaders, outlierRows(high)); err != nil {
		return nil, err
	}
	if err := write("low_outliers.csv", outlierHeaders, outlierRows(low)); err != nil {
		return nil, err
	}
	for _, sector := range domain.Sectors {
		var rows []MetricScore
		for _, s := range flagged {
			if s.Sector == string(sector) {
				rows = append(rows, s)
			}
		}
		file := fmt.Sprintf("outliers_%s.csv", strings.ToLower(string(sector)))
		if err := write(file, outlierHeaders, outlierRows(rows)); err != nil {
			return nil, err
		}
	}
	if err := write("group_summary.csv", groupSummaryHeaders, summary); err != nil {
		return nil, err
	}
	if err := write("growth_outliers.csv", growthHeaders, growthRows(growthFlagged)); err != nil {
		return nil, err
	}

	var zs []float64
	for _, s := range scored {
		if s.Valid && strings.HasSuffix(s.Metric, pctIncomeSuffix) {
			zs = append(zs, s.Z)
		}
	}
	chart(ctx, env, j.Name(), report, func(r *charts.Renderer) (string, error) {
		return r.Histogram("zscore_distribution", "Z-scores of spend as % of operating income", "z-score", zs, 30)
	})
	chart(ctx, env, j.Name(), report, func(r *charts.Renderer) (string, error) {
		top := topByAbsZ(flagged, 15)
		labels := make([]string, len(top))
		values := make([]float64, len(top))
		for i, s := range top {
			labels[i] = truncate(s.Org, 24) + " " + s.FY + " " + s.Metric
			values[i] = s.Z
		}
		return r.Bar("top_outliers", "Largest z-scores", "z-score", labels, values)
	})

	env.logger().InfoContext(ctx, "outliers_completed",
		slog.Int("org_categories", len(spends)),
		slog.Int("income_subcodes", len(income)),
		slog.Float64("threshold", threshold),
		slog.Int("high", len(high)),
		slog.Int("low", len(low)),
		slog.Int("growth_flagged", len(growthFlagged)),
		slog.String("growth_span", span.String()))

	return report, nil
}

func withMetric(metric string, scored []Scored) []MetricScore {
	out := make([]MetricScore, len(scored))
	for i, s := range scored {
		out[i] = MetricScore{Metric: metric, Scored: s}
	}
	return out
}

// OrgCategorySpend is one organisation's absolute spend on a category in a
// year, with its operating income when the organisation reported any
type OrgCategorySpend struct {
	FY        string
	Sector    string
	Org       string
	Category  string
	Spend     float64
	Income    float64
	HasIncome bool
}

// PctIncome returns spend as a percentage of operating income, or NaN when
// there is no non-zero income
func (s OrgCategorySpend) PctIncome() float64 {
	if !s.HasIncome || s.Income == 0 {
		return math.NaN()
	}
	return s.Spend * 100 / s.Income
}

type orgYear struct {
	fy, sector, org string
}

type orgYearCategory struct {
	orgYear
	category string
}

// OrgSpendAccumulator sums categorised spend and operating income per organisation and year
type OrgSpendAccumulator struct {
	spend  map[orgYearCategory]decimal.Decimal
	income map[orgYear]decimal.Decimal
}

// NewOrgSpendAccumulator creates an empty accumulator
func NewOrgSpendAccumulator() *OrgSpendAccumulator {
	return &OrgSpendAccumulator{
		spend:  make(map[orgYearCategory]decimal.Decimal),
		income: make(map[orgYear]decimal.Decimal),
	}
}

// AddSpend records one categorised amount. A null amount still registers the
// organisation with the category.
func (a *OrgSpendAccumulator) AddSpend(fy, sector, org, category string, amount *float64) {
	k := orgYearCategory{orgYear: orgYear{fy, sector, org}, category: category}
	total := a.spend[k]
	if amount != nil {
		total = total.Add(decimal.NewFromFloat(*amount).Abs())
	}
	a.spend[k] = total
}

// AddIncome records one signed operating income amount
func (a *OrgSpendAccumulator) AddIncome(fy, sector, org string, amount float64) {
	k := orgYear{fy, sector, org}
	a.income[k] = a.income[k].Add(decimal.NewFromFloat(amount))
}

// Spends returns every organisation's category spend ordered by fy, sector,
// organisation and category. Income is the absolute value of the signed total.
func (a *OrgSpendAccumulator) Spends() []OrgCategorySpend {
	out := make([]OrgCategorySpend, 0, len(a.spend))
	for k, v := range a.spend {
		s := OrgCategorySpend{
			FY: k.fy, Sector: k.sector, Org: k.org, Category: k.category,
			Spend: v.InexactFloat64(),
		}
		if inc, ok := a.income[k.orgYear]; ok {
			s.Income = inc.Abs().InexactFloat64()
			s.HasIncome = true
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessKeys([]string{out[i].FY, out[i].Sector, out[i].Org, out[i].Category},
			[]string{out[j].FY, out[j].Sector, out[j].Org, out[j].Category})
	})
	return out
}

// CategoryObservations splits one category's spends into spend observations and
// percent-of-income observations. Organisations without operating income only
// contribute spend.
func CategoryObservations(spends []OrgCategorySpend, category string) (spend, pctIncome []Observation) {
	for _, s := range spends {
		if s.Category != category {
			continue
		}
		spend = append(spend, Observation{FY: s.FY, Sector: s.Sector, Org: s.Org, Value: s.Spend})
		if pct := s.PctIncome(); !math.IsNaN(pct) {
			pctIncome = append(pctIncome, Observation{FY: s.FY, Sector: s.Sector, Org: s.Org, Value: pct})
		}
	}
	return spend, pctIncome
}

func orgMetricRows(spends []OrgCategorySpend) [][]string {
	out := make([][]string, len(spends))
	for i, s := range spends {
		income := ""
		if s.HasIncome {
			income = exporter.FormatFloat(s.Income)
		}
		out[i] = []string{
			s.FY, s.Sector, s.Org, s.Category,
			exporter.FormatFloat(s.Spend),
			income,
			exporter.FormatFloat(s.PctIncome()),
		}
	}
	return out
}

func outlierRows(scored []MetricScore) [][]string {
	out := make([][]string, len(scored))
	for i, s := range scored {
		out[i] = []string{
			s.Metric, s.FY, s.Sector, s.Org,
			exporter.FormatFloat(s.Value),
			exporter.FormatInt(int64(s.GroupSize)),
			exporter.FormatFloat(s.Mean),
			exporter.FormatFloat(s.StdDev),
			exporter.FormatRatio(s.Z),
			s.Direction(),
		}
	}
	return out
}

var groupSummaryHeaders = []string{"metric", "fy", "sector", "orgs", "mean", "std", "p25", "p50", "p75", "p90", "flagged"}

func groupSummaryRows(metric string, scored, flagged []Scored) [][]string {
	values := make(map[groupKey][]float64)
	for _, s := range scored {
		k := groupKey{fy: s.FY, sector: s.Sector}
		values[k] = append(values[k], s.Value)
	}
	counts := make(map[groupKey]int)
	for _, s := range flagged {
		counts[groupKey{fy: s.FY, sector: s.Sector}]++
	}

	keys := make([]groupKey, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].fy != keys[j].fy {
			return keys[i].fy < keys[j].fy
		}
		return keys[i].sector < keys[j].sector
	})

	out := make([][]string, len(keys))
	for i, k := range keys {
		s := Summarize(values[k])
		out[i] = []string{
			metric, k.fy, k.sector,
			exporter.FormatInt(int64(s.Count)),
			exporter.FormatFloat(s.Mean),
			exporter.FormatFloat(s.StdDev),
			exporter.FormatFloat(s.P25),
			exporter.FormatFloat(s.P50),
			exporter.FormatFloat(s.P75),
			exporter.FormatFloat(s.P90),
			exporter.FormatInt(int64(counts[k])),
		}
	}
	return out
}

// GrowthSpan is the pair of years growth is measured between
type GrowthSpan struct {
	From string
	To   string
}

func (g GrowthSpan) String() string {
	if g.From == "" {
		return ""
	}
	return g.From + ".." + g.To
}

// Growth is the change of one organisation's value between the first and last year
type Growth struct {
	Org       string
	Sector    string
	FromFY    string
	ToFY      string
	From      float64
	To        float64
	GrowthPct float64
	Z         float64
}

// Direction reports whether growth lies above or below the mean growth
func (g Growth) Direction() string {
	if g.Z < 0 {
		return DirectionLow
	}
	return DirectionHigh
}

var growthHeaders = []string{"metric", "org_name_raw", "sector", "from_fy", "to_fy", "from_value", "to_value", "growth_pct", "z_score", "direction"}

// GrowthOutliers scores first-to-last-year growth of each organisation present in
// both years. Non-finite growth (a zero starting value) is excluded. All
// organisations form one group. Fewer than two distinct years yields nothing.
func GrowthOutliers(observations []Observation, threshold float64) ([]Growth, []Growth, GrowthSpan) {
	fys := make(map[string]bool)
	for _, o := range observations {
		fys[o.FY] = true
	}
	years := sortedKeys(fys)
	if len(years) < 2 {
		return nil, nil, GrowthSpan{}
	}
	span := GrowthSpan{From: years[0], To: years[len(years)-1]}

	type orgKey struct{ org, sector string }
	from := make(map[orgKey]float64)
	to := make(map[orgKey]float64)
	for _, o := range observations {
		k := orgKey{o.Org, o.Sector}
		switch o.FY {
		case span.From:
			from[k] = o.Value
		case span.To:
			to[k] = o.Value
		}
	}

	keys := make([]orgKey, 0, len(from))
	for k := range from {
		if _, ok := to[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].org != keys[j].org {
			return keys[i].org < keys[j].org
		}
		return keys[i].sector < keys[j].sector
	})

	var growth []Growth
	var obs []Observation
	for _, k := range keys {
		pct := (to[k] - from[k]) / from[k] * 100
		if math.IsNaN(pct) || math.IsInf(pct, 0) {
			continue
		}
		growth = append(growth, Growth{
			Org: k.org, Sector: k.sector,
			FromFY: span.From, ToFY: span.To,
			From: from[k], To: to[k],
			GrowthPct: pct,
		})
		obs = append(obs, Observation{Sector: k.sector, Org: k.org, Value: pct})
	}

	scored := ScoreAll(obs)
	var flagged []Growth
	for i := range growth {
		growth[i].Z = scored[i].Z
		if scored[i].Valid && math.Abs(scored[i].Z) > threshold {
			flagged = append(flagged, growth[i])
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].GrowthPct > flagged[j].GrowthPct
	})
	return growth, flagged, span
}

func growthRows(growth []MetricGrowth) [][]string {
	out := make([][]string, len(growth))
	for i, g := range growth {
		out[i] = []string{
			g.Metric, g.Org, g.Sector, g.FromFY, g.ToFY,
			exporter.FormatFloat(g.From),
			exporter.FormatFloat(g.To),
			exporter.FormatFloat(g.GrowthPct),
			exporter.FormatRatio(g.Z),
			g.Direction(),
		}
	}
	return out
}

func topByAbsZ(scored []MetricScore, n int) []MetricScore {
	top := append([]MetricScore(nil), scored...)
	sort.SliceStable(top, func(i, j int) bool {
		return math.Abs(top[i].Z) > math.Abs(top[j].Z)
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}
