package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"nhstac/internal/canonical"
	"nhstac/internal/charts"
	"nhstac/internal/config"
	"nhstac/internal/exporter"
	"nhstac/internal/infrastructure"
)

// Env is everything a job needs to read the store and write its outputs
type Env struct {
	Store   *canonical.Store
	Paths   *config.Paths
	Config  config.AnalyticsConfig
	Metrics *infrastructure.PipelineMetrics
	Logger  *slog.Logger
}

// JobDir returns the output directory of a job
func (e *Env) JobDir(job string) string {
	return e.Paths.AnalysisJobDir(job)
}

// Writer returns a CSV writer rooted at the job's output directory
func (e *Env) Writer(job string) *exporter.CSVWriter {
	return exporter.NewCSVWriter(e.JobDir(job), e.logger())
}

// Charts returns the chart renderer for a job, or nil when charts are disabled
func (e *Env) Charts(job string) *charts.Renderer {
	if !e.Config.Charts {
		return nil
	}
	return charts.NewRenderer(e.JobDir(job), e.logger())
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Report lists what a job produced
type Report struct {
	Job     string
	Outputs []string
	Rows    int
}

// Add records an output path
func (r *Report) Add(path string) {
	r.Outputs = append(r.Outputs, path)
}

// Job is one independent batch computation over the store
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context, env *Env) (*Report, error)
}

// Jobs returns the analysis jobs in pipeline order
func Jobs() []Job {
	return []Job{
		CountsJob{},
		OutliersJob{},
		SchemaJob{},
		TopLinesJob{},
		CategoriesJob{},
	}
}

// Lookup finds a job by name among jobs
func Lookup(jobs []Job, name string) (Job, error) {
	for _, j := range jobs {
		if j.Name() == name {
			return j, nil
		}
	}
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name()
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown job %q (available: %v)", name, names)
}

// chart renders through fn when charts are enabled. Chart failures are logged, not fatal.
func chart(ctx context.Context, env *Env, job string, report *Report, fn func(r *charts.Renderer) (string, error)) {
	r := env.Charts(job)
	if r == nil {
		return
	}
	path, err := fn(r)
	if err != nil {
		env.logger().WarnContext(ctx, "chart_failed",
			slog.String("job", job),
			slog.String("error", err.Error()))
		return
	}
	report.Add(path)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
