// Package charts renders the static PNG charts of the analysis jobs.
package charts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	defaultWidth  = 10 * vg.Inch
	defaultHeight = 6 * vg.Inch
)

// Series is one named set of values aligned with the chart's category labels
type Series struct {
	Name   string
	Values []float64
}

// Renderer writes charts into a directory
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
	logger *slog.Logger
}

// NewRenderer creates a renderer writing PNG files into dir
func NewRenderer(dir string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{dir: dir, width: defaultWidth, height: defaultHeight, logger: logger}
}

// Bar renders a single-series bar chart, one bar per label
func (r *Renderer) Bar(name, title, yLabel string, labels []string, values []float64) (string, error) {
	return r.GroupedBar(name, title, yLabel, labels, []Series{{Values: values}})
}

// GroupedBar renders side-by-side bars for each series
func (r *Renderer) GroupedBar(name, title, yLabel string, labels []string, series []Series) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("chart %s has no data", name)
	}

	p := newPlot(title, "", yLabel)
	width := vg.Points(40) / vg.Length(len(series))
	for i, s := range series {
		if len(s.Values) != len(labels) {
			return "", fmt.Errorf("chart %s: series %q has %d values for %d labels", name, s.Name, len(s.Values), len(labels))
		}
		bars, err := plotter.NewBarChart(plotter.Values(s.Values), width)
		if err != nil {
			return "", fmt.Errorf("chart %s: %w", name, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = width * vg.Length(float64(i)-float64(len(series)-1)/2)
		p.Add(bars)
		if s.Name != "" {
			p.Legend.Add(s.Name, bars)
		}
	}
	p.Legend.Top = true
	p.NominalX(labels...)
	if len(labels) > 8 {
		p.X.Tick.Label.Rotation = 0.8
	}

	return r.save(p, name)
}

// Histogram renders the distribution of values in bins buckets
func (r *Renderer) Histogram(name, title, xLabel string, values []float64, bins int) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("chart %s has no data", name)
	}

	p := newPlot(title, xLabel, "Count")
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return "", fmt.Errorf("chart %s: %w", name, err)
	}
	h.FillColor = plotutil.Color(0)
	p.Add(h)

	return r.save(p, name)
}

// Line renders one line per series over the category labels
func (r *Renderer) Line(name, title, yLabel string, labels []string, series []Series) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("chart %s has no data", name)
	}

	p := newPlot(title, "", yLabel)
	for i, s := range series {
		pts := make(plotter.XYs, len(s.Values))
		for j, v := range s.Values {
			pts[j].X = float64(j)
			pts[j].Y = v
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return "", fmt.Errorf("chart %s: %w", name, err)
		}
		line.Color = plotutil.Color(i)
		points.GlyphStyle.Color = plotutil.Color(i)
		points.GlyphStyle.Shape = plotutil.Shape(i)
		p.Add(line, points)
		if s.Name != "" {
			p.Legend.Add(s.Name, line, points)
		}
	}
	p.Legend.Top = true
	p.NominalX(labels...)

	return r.save(p, name)
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func (r *Renderer) save(p *plot.Plot, name string) (string, error) {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create chart directory: %w", err)
	}
	path := filepath.Join(r.dir, name+".png")
	if err := p.Save(r.width, r.height, path); err != nil {
		return "", fmt.Errorf("failed to save chart %s: %w", name, err)
	}
	r.logger.Debug("chart_written", slog.String("path", path))
	return path, nil
}
