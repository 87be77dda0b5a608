package analytics

import (
	"math"
	"sort"
	"strings"

	"nhstac/pkg/contracts/domain"
)

// Dimension is a fact attribute records can be grouped by
type Dimension string

const (
	DimFY        Dimension = "fy"
	DimSector    Dimension = "sector"
	DimOrg       Dimension = "org_name_raw"
	DimWorkSheet Dimension = "WorkSheetName"
	DimSubCode   Dimension = "SubCode"
	DimTableID   Dimension = "TableID"
)

func (d Dimension) value(r *domain.FactRecord) string {
	switch d {
	case DimFY:
		return r.FY
	case DimSector:
		return r.Sector
	case DimOrg:
		return r.OrgName
	case DimWorkSheet:
		return r.WorkSheetName
	case DimSubCode:
		return r.SubCode
	case DimTableID:
		return r.TableID
	default:
		return ""
	}
}

// GroupCount is the row count and absolute amount of one group
type GroupCount struct {
	Keys      []string
	Rows      int64
	AbsAmount float64
}

// Grouper accumulates group counts record by record
type Grouper struct {
	dims   []Dimension
	groups map[string]*GroupCount
}

const keySep = "\x1f"

// NewGrouper groups by dims, in the given order
func NewGrouper(dims ...Dimension) *Grouper {
	return &Grouper{dims: dims, groups: make(map[string]*GroupCount)}
}

// Dimensions returns the grouping dimensions
func (g *Grouper) Dimensions() []Dimension {
	return g.dims
}

// Add counts one record
func (g *Grouper) Add(r domain.FactRecord) {
	keys := make([]string, len(g.dims))
	for i, d := range g.dims {
		keys[i] = d.value(&r)
	}
	k := strings.Join(keys, keySep)

	gc, ok := g.groups[k]
	if !ok {
		gc = &GroupCount{Keys: keys}
		g.groups[k] = gc
	}
	gc.Rows++
	gc.AbsAmount += r.AbsAmount()
}

// Groups returns the groups sorted by key
func (g *Grouper) Groups() []GroupCount {
	out := make([]GroupCount, 0, len(g.groups))
	for _, gc := range g.groups {
		out = append(out, *gc)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessKeys(out[i].Keys, out[j].Keys)
	})
	return out
}

func lessKeys(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// GroupCounts counts records grouped by dims, sorted by key
func GroupCounts(records []domain.FactRecord, dims ...Dimension) []GroupCount {
	g := NewGrouper(dims...)
	for i := range records {
		g.Add(records[i])
	}
	return g.Groups()
}

// Share is a group with its percentage of the rows and absolute amount of its partition
type Share struct {
	GroupCount
	RowSharePct    float64
	AmountSharePct float64
}

// Shares computes each group's percentage share within the partition formed by
// the leading partitionSize keys. A partition with a zero total yields NaN shares.
func Shares(groups []GroupCount, partitionSize int) []Share {
	type total struct {
		rows   int64
		amount float64
	}
	partKey := func(g GroupCount) string {
		n := partitionSize
		if n > len(g.Keys) {
			n = len(g.Keys)
		}
		return strings.Join(g.Keys[:n], keySep)
	}

	totals := make(map[string]*total)
	for _, g := range groups {
		k := partKey(g)
		t, ok := totals[k]
		if !ok {
			t = &total{}
			totals[k] = t
		}
		t.rows += g.Rows
		t.amount += g.AbsAmount
	}

	out := make([]Share, len(groups))
	for i, g := range groups {
		t := totals[partKey(g)]
		out[i] = Share{
			GroupCount:     g,
			RowSharePct:    percent(float64(g.Rows), float64(t.rows)),
			AmountSharePct: percent(g.AbsAmount, t.amount),
		}
	}
	return out
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return math.NaN()
	}
	return part / whole * 100
}
