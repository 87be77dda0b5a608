package analytics

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"nhstac/internal/extract"
)

// CategoryRule assigns a spend category to sub codes whose label matches.
// Keywords match anywhere in the lower-cased label; Words must match a whole word.
type CategoryRule struct {
	Name        string   `yaml:"name" validate:"required"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords" validate:"required_without=Words,dive,required"`
	Words       []string `yaml:"words" validate:"required_without=Keywords,dive,required"`
}

// CategoryRules is the category rules file
type CategoryRules struct {
	// DenominatorWorkSheet is the worksheet whose absolute total is used as operating expenditure
	DenominatorWorkSheet string `yaml:"denominator_worksheet" validate:"required"`
	// IncomeWorkSheet and IncomeLabel select the sub codes summed as operating
	// income: codes on IncomeWorkSheet whose label contains IncomeLabel
	IncomeWorkSheet string         `yaml:"income_worksheet"`
	IncomeLabel     string         `yaml:"income_label"`
	Categories      []CategoryRule `yaml:"categories" validate:"required,min=1,dive"`
}

const (
	defaultIncomeWorkSheet = "TAC02 SoCI"
	defaultIncomeLabel     = "operating income"
)

// DefaultCategoryRules returns the built-in IT/digital and consultancy rules
func DefaultCategoryRules() *CategoryRules {
	return &CategoryRules{
		DenominatorWorkSheet: "TAC08 Op Exp",
		IncomeWorkSheet:      defaultIncomeWorkSheet,
		IncomeLabel:          defaultIncomeLabel,
		Categories: []CategoryRule{
			{
				Name:        "it_digital",
				Description: "IT, digital and technology spend",
				Keywords:    []string{"digital", "technology", "information", "computer", "software", "hardware", "system"},
				Words:       []string{"it", "ict"},
			},
			{
				Name:        "consultancy",
				Description: "Consultancy and advisory services",
				Keywords:    []string{"consult", "advisory", "professional"},
			},
		},
	}
}

// LoadCategoryRules reads rules from a YAML file; an empty path yields the defaults
func LoadCategoryRules(path string) (*CategoryRules, error) {
	if path == "" {
		return DefaultCategoryRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category rules: %w", err)
	}

	var rules CategoryRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse category rules: %w", err)
	}
	if err := validator.New().Struct(&rules); err != nil {
		return nil, fmt.Errorf("invalid category rules: %w", err)
	}

	seen := make(map[string]bool)
	for _, c := range rules.Categories {
		if seen[c.Name] {
			return nil, fmt.Errorf("invalid category rules: duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	if rules.IncomeWorkSheet == "" {
		rules.IncomeWorkSheet = defaultIncomeWorkSheet
	}
	if rules.IncomeLabel == "" {
		rules.IncomeLabel = defaultIncomeLabel
	}
	return &rules, nil
}

// IsIncome reports whether a sub code label on the worksheet with key wsKey
// counts towards operating income
func (r *CategoryRules) IsIncome(wsKey, label string) bool {
	return wsKey == extract.NormalizeName(r.IncomeWorkSheet) &&
		strings.Contains(strings.ToLower(label), strings.ToLower(r.IncomeLabel))
}

var wordSplit = regexp.MustCompile(`[^a-z0-9]+`)

// Match returns the names of the categories whose rules match label, in rule order
func (r *CategoryRules) Match(label string) []string {
	lower := strings.ToLower(label)
	words := make(map[string]bool)
	for _, w := range wordSplit.Split(lower, -1) {
		if w != "" {
			words[w] = true
		}
	}

	var out []string
	for _, c := range r.Categories {
		if c.matches(lower, words) {
			out = append(out, c.Name)
		}
	}
	return out
}

func (c CategoryRule) matches(lower string, words map[string]bool) bool {
	for _, k := range c.Keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	for _, w := range c.Words {
		if words[strings.ToLower(w)] {
			return true
		}
	}
	return false
}

// CategoryTotal is the spend of one category in a fy/sector group
type CategoryTotal struct {
	FY          string
	Sector      string
	Category    string
	Rows        int64
	Orgs        int
	Total       decimal.Decimal // signed, exact
	AbsTotal    decimal.Decimal
	Denominator decimal.Decimal // absolute operating expenditure of the group
	OrgAmounts  map[string]float64
}

// SharePct returns the category's absolute total as a percentage of operating expenditure
func (c CategoryTotal) SharePct() float64 {
	if c.Denominator.IsZero() {
		return percent(0, 0)
	}
	return c.AbsTotal.Div(c.Denominator).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// OrgPercentiles returns the distribution of per-organisation absolute category spend
func (c CategoryTotal) OrgPercentiles() []float64 {
	values := make([]float64, 0, len(c.OrgAmounts))
	for _, org := range sortedKeys(c.OrgAmounts) {
		values = append(values, c.OrgAmounts[org])
	}
	return Percentiles(values, DefaultPercentiles...)
}

// CategoryAccumulator sums categorised spend per fy, sector and category
type CategoryAccumulator struct {
	totals       map[string]*CategoryTotal
	denominators map[groupKey]decimal.Decimal
}

// NewCategoryAccumulator creates an empty accumulator
func NewCategoryAccumulator() *CategoryAccumulator {
	return &CategoryAccumulator{
		totals:       make(map[string]*CategoryTotal),
		denominators: make(map[groupKey]decimal.Decimal),
	}
}

// AddDenominator adds an operating expenditure amount to a fy/sector group
func (a *CategoryAccumulator) AddDenominator(fy, sector string, amount float64) {
	k := groupKey{fy: fy, sector: sector}
	a.denominators[k] = a.denominators[k].Add(decimal.NewFromFloat(amount).Abs())
}

// Add records one categorised amount
func (a *CategoryAccumulator) Add(fy, sector, category, org string, amount *float64) {
	k := strings.Join([]string{fy, sector, category}, keySep)
	t, ok := a.totals[k]
	if !ok {
		t = &CategoryTotal{FY: fy, Sector: sector, Category: category, OrgAmounts: make(map[string]float64)}
		a.totals[k] = t
	}
	t.Rows++
	if _, seen := t.OrgAmounts[org]; !seen {
		t.OrgAmounts[org] = 0
	}
	if amount == nil {
		return
	}
	d := decimal.NewFromFloat(*amount)
	t.Total = t.Total.Add(d)
	t.AbsTotal = t.AbsTotal.Add(d.Abs())
	t.OrgAmounts[org] += d.Abs().InexactFloat64()
}

// Totals returns the category totals ordered by fy, sector and category
func (a *CategoryAccumulator) Totals() []CategoryTotal {
	out := make([]CategoryTotal, 0, len(a.totals))
	for _, t := range a.totals {
		t.Orgs = len(t.OrgAmounts)
		t.Denominator = a.denominators[groupKey{fy: t.FY, sector: t.Sector}]
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessKeys([]string{out[i].FY, out[i].Sector, out[i].Category},
			[]string{out[j].FY, out[j].Sector, out[j].Category})
	})
	return out
}
