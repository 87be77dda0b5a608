package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Direction of a flagged observation relative to its group mean
const (
	DirectionHigh = "high"
	DirectionLow  = "low"
)

// DefaultPercentiles are the percentiles reported in summary outputs
var DefaultPercentiles = []float64{0.25, 0.50, 0.75, 0.90}

// Observation is one value of a metric for an organisation within a fy/sector group
type Observation struct {
	FY     string
	Sector string
	Org    string
	Value  float64
}

// Scored is an observation with its group statistics.
// Valid is false when the group has fewer than two members or no variance.
type Scored struct {
	Observation
	GroupSize int
	Mean      float64
	StdDev    float64
	Z         float64
	Valid     bool
}

// Direction reports whether the observation lies above or below its group mean
func (s Scored) Direction() string {
	if s.Z < 0 {
		return DirectionLow
	}
	return DirectionHigh
}

type groupKey struct {
	fy     string
	sector string
}

// ScoreByGroup computes the population z-score of every observation within its
// (fy, sector) group. Output order follows the input order.
func ScoreByGroup(observations []Observation) []Scored {
	return score(observations, func(o Observation) groupKey {
		return groupKey{fy: o.FY, sector: o.Sector}
	})
}

// ScoreAll computes z-scores over all observations as one group
func ScoreAll(observations []Observation) []Scored {
	return score(observations, func(Observation) groupKey { return groupKey{} })
}

func score(observations []Observation, keyOf func(Observation) groupKey) []Scored {
	groups := make(map[groupKey][]float64)
	for _, o := range observations {
		k := keyOf(o)
		groups[k] = append(groups[k], o.Value)
	}

	type moments struct {
		n         int
		mean, std float64
	}
	stats := make(map[groupKey]moments, len(groups))
	for k, values := range groups {
		mean, std := stat.PopMeanStdDev(values, nil)
		stats[k] = moments{n: len(values), mean: mean, std: std}
	}

	out := make([]Scored, len(observations))
	for i, o := range observations {
		m := stats[keyOf(o)]
		s := Scored{Observation: o, GroupSize: m.n, Mean: m.mean, StdDev: m.std}
		if m.n >= 2 && m.std > 0 && !math.IsNaN(m.std) {
			s.Z = (o.Value - m.mean) / m.std
			s.Valid = true
		}
		out[i] = s
	}
	return out
}

// Flag returns the scored observations with |z| strictly above threshold,
// ordered by fy, sector, descending |z| and organisation.
func Flag(scored []Scored, threshold float64) []Scored {
	var out []Scored
	for _, s := range scored {
		if s.Valid && math.Abs(s.Z) > threshold {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FY != b.FY {
			return a.FY < b.FY
		}
		if a.Sector != b.Sector {
			return a.Sector < b.Sector
		}
		if za, zb := math.Abs(a.Z), math.Abs(b.Z); za != zb {
			return za > zb
		}
		return a.Org < b.Org
	})
	return out
}

// ZScoreOutliers flags observations deviating by more than threshold standard
// deviations from their (fy, sector) group mean. Each group is computed
// independently; groups with fewer than two observations or zero variance
// flag nothing.
func ZScoreOutliers(observations []Observation, threshold float64) []Scored {
	return Flag(ScoreByGroup(observations), threshold)
}

// Percentiles returns the requested quantiles (0..1) of values using linear
// interpolation of the empirical distribution. Empty input yields NaNs.
func Percentiles(values []float64, ps ...float64) []float64 {
	out := make([]float64, len(ps))
	if len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	for i, p := range ps {
		out[i] = stat.Quantile(p, stat.LinInterp, sorted, nil)
	}
	return out
}

// Summary holds distribution statistics of a set of values
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	P25    float64
	P50    float64
	P75    float64
	P90    float64
}

// Summarize computes the distribution summary of values
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		nan := math.NaN()
		s.Mean, s.StdDev, s.Min, s.Max = nan, nan, nan, nan
		s.P25, s.P50, s.P75, s.P90 = nan, nan, nan, nan
		return s
	}

	s.Mean, s.StdDev = stat.PopMeanStdDev(values, nil)
	s.Min, s.Max = values[0], values[0]
	for _, v := range values[1:] {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	p := Percentiles(values, DefaultPercentiles...)
	s.P25, s.P50, s.P75, s.P90 = p[0], p[1], p[2], p[3]
	return s
}
