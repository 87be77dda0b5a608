package operations

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"nhstac/internal/analytics"
	"nhstac/internal/canonical"
	"nhstac/internal/config"
	"nhstac/internal/dimensions"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/infrastructure"
)

// Step IDs and run state keys
const (
	ExtractStepID     = "extract"
	DimStepPrefix     = "dims."
	AnalyzeStepPrefix = "analyze."

	ValueRows         = "rows"
	ValueBuildReport  = "build_report"
	ValueResultPrefix = "result."
)

// Selection chooses which pipeline steps to register
type Selection struct {
	Extract    bool
	Dimensions []string
	Analyses   []string
}

// FullSelection selects extract, every dimension and every analysis
func FullSelection() Selection {
	sel := Selection{Extract: true}
	for _, j := range dimensions.Jobs() {
		sel.Dimensions = append(sel.Dimensions, j.Name())
	}
	for _, j := range analytics.Jobs() {
		sel.Analyses = append(sel.Analyses, j.Name())
	}
	return sel
}

// Pipeline builds the steps of the TAC pipeline and owns the store they share
type Pipeline struct {
	cfg      *config.Config
	paths    *config.Paths
	metrics  *infrastructure.PipelineMetrics
	recorder canonical.OutcomeRecorder
	logger   *slog.Logger

	mu    sync.Mutex
	store *canonical.Store
}

// PipelineOption configures optional collaborators
type PipelineOption func(*Pipeline)

// WithPipelineMetrics records workbook, step and outlier metrics
func WithPipelineMetrics(m *infrastructure.PipelineMetrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithOutcomeRecorder records workbook outcomes during extract
func WithOutcomeRecorder(r canonical.OutcomeRecorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

// NewPipeline creates a pipeline over the configured layout
func NewPipeline(cfg *config.Config, paths *config.Paths, logger *slog.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{cfg: cfg, paths: paths, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Metrics returns the metrics the pipeline records into, possibly nil
func (p *Pipeline) Metrics() *infrastructure.PipelineMetrics {
	return p.metrics
}

// Registry registers the selected steps. Dependencies are only declared on
// steps that are part of the selection, so a partial run works against the
// outputs of an earlier one.
func (p *Pipeline) Registry(sel Selection) (*Registry, error) {
	reg := NewRegistry()
	included := make(map[string]bool)

	if sel.Extract {
		if err := reg.Register(NewStep(ExtractStepID, "Extract workbooks", p.extract)); err != nil {
			return nil, err
		}
		included[ExtractStepID] = true
	}

	deps := func(ids ...string) []string {
		var out []string
		for _, id := range ids {
			if included[id] {
				out = append(out, id)
			}
		}
		return out
	}

	dimJobs := dimensions.Jobs()
	for _, name := range sel.Dimensions {
		job, err := dimensions.Lookup(dimJobs, name)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		want := []string{ExtractStepID}
		if job.Name() == "enrich" {
			want = append(want, DimStepPrefix+"providers", DimStepPrefix+"labels")
		}
		id := DimStepPrefix + job.Name()
		if err := reg.Register(NewStep(id, job.Description(), p.dimension(job), deps(want...)...)); err != nil {
			return nil, err
		}
		included[id] = true
	}

	analysisJobs := analytics.Jobs()
	for _, name := range sel.Analyses {
		job, err := analytics.Lookup(analysisJobs, name)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		want := []string{ExtractStepID}
		switch job.Name() {
		case "outliers", "schema", "categories":
			want = append(want, DimStepPrefix+"labels")
		}
		id := AnalyzeStepPrefix + job.Name()
		if err := reg.Register(NewStep(id, job.Description(), p.analysis(job), deps(want...)...)); err != nil {
			return nil, err
		}
		included[id] = true
	}

	return reg, nil
}

func (p *Pipeline) extract(ctx context.Context, state *RunState) error {
	// the builder rewrites the DuckDB file
	if err := p.closeStore(); err != nil {
		return err
	}

	opts := []canonical.BuilderOption{canonical.WithMetrics(p.metrics)}
	if p.recorder != nil {
		opts = append(opts, canonical.WithRecorder(p.recorder))
	}
	report, err := canonical.NewBuilder(p.cfg.Extract, p.paths, p.logger, opts...).Build(ctx, state.ID)
	if err != nil {
		return err
	}
	state.SetValue(ValueRows, report.Rows)
	state.SetValue(ValueBuildReport, report)
	return nil
}

func (p *Pipeline) dimension(job dimensions.Job) StepFunc {
	return func(ctx context.Context, state *RunState) error {
		store, err := p.Store()
		if err != nil {
			return err
		}
		result, err := job.Run(ctx, &dimensions.Env{
			Store:     store,
			Paths:     p.paths,
			Analytics: p.cfg.Analytics,
			Logger:    p.logger,
		})
		if err != nil {
			return err
		}
		state.SetValue(ValueResultPrefix+DimStepPrefix+job.Name(), result)
		return nil
	}
}

func (p *Pipeline) analysis(job analytics.Job) StepFunc {
	return func(ctx context.Context, state *RunState) error {
		store, err := p.Store()
		if err != nil {
			return err
		}
		report, err := job.Run(ctx, &analytics.Env{
			Store:   store,
			Paths:   p.paths,
			Config:  p.cfg.Analytics,
			Metrics: p.metrics,
			Logger:  p.logger,
		})
		if err != nil {
			return err
		}
		state.SetValue(ValueResultPrefix+AnalyzeStepPrefix+job.Name(), report)
		return nil
	}
}

// Store opens the canonical DuckDB store on first use
func (p *Pipeline) Store() (*canonical.Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		return p.store, nil
	}
	if _, err := os.Stat(p.paths.DuckDB); err != nil {
		return nil, apperrors.NewNotFoundError("canonical database").
			WithContext("path", p.paths.DuckDB).
			WithContext("hint", "run `tac extract` first")
	}
	store, err := canonical.OpenStore(p.paths.DuckDB)
	if err != nil {
		return nil, err
	}
	p.store = store
	return store, nil
}

func (p *Pipeline) closeStore() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	return err
}

// Close releases the store
func (p *Pipeline) Close() error {
	return p.closeStore()
}
