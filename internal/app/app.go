package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"nhstac/internal/canonical"
	"nhstac/internal/config"
	"nhstac/internal/infrastructure"
	"nhstac/internal/ledger"
	"nhstac/internal/operations"
	"nhstac/internal/services"
	transport "nhstac/internal/transport/http"
)

// Options are the command-line overrides applied on top of the loaded configuration
type Options struct {
	ConfigFile string
	DataDir    string
	FocusFY    string
	TopN       int
	Addr       string

	// LogOutput replaces the configured log destination
	LogOutput io.Writer
}

// Application represents the main application container
type Application struct {
	Config    *config.Config
	Paths     *config.Paths
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	Metrics   *infrastructure.PipelineMetrics
}

// New loads configuration, applies opts and starts logging and telemetry
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command-line overrides: %w", err)
	}

	var logger *slog.Logger
	if opts.LogOutput != nil {
		logger = infrastructure.NewLogger(cfg.Logging, opts.LogOutput)
	} else if logger, err = infrastructure.InitializeLogger(cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	paths, err := cfg.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	telemetry, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewPipelineMetrics(telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	logger.Debug("application_initialized",
		slog.String("data_dir", paths.DataDir),
		slog.String("duckdb", paths.DuckDB))

	return &Application{
		Config:    cfg,
		Paths:     paths,
		Logger:    logger,
		Telemetry: telemetry,
		Metrics:   metrics,
	}, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.DataDir != "" {
		cfg.Paths.DataDir = opts.DataDir
	}
	if opts.FocusFY != "" {
		cfg.Analytics.FocusFY = opts.FocusFY
	}
	if opts.TopN > 0 {
		cfg.Analytics.TopN = opts.TopN
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
}

// RunPipeline executes the selected steps as one recorded run
func (a *Application) RunPipeline(ctx context.Context, command string, sel operations.Selection, continueOnError bool) (*operations.RunState, error) {
	runs, err := ledger.Open(a.Paths.Ledger)
	if err != nil {
		return nil, err
	}
	defer runs.Close()

	runID := uuid.NewString()
	if err := runs.StartRun(ctx, runID, command); err != nil {
		return nil, err
	}
	a.Logger.InfoContext(ctx, "run_recorded",
		slog.String("run_id", runID),
		slog.String("command", command))

	pipeline := operations.NewPipeline(a.Config, a.Paths, a.Logger,
		operations.WithPipelineMetrics(a.Metrics),
		operations.WithOutcomeRecorder(runs))
	defer pipeline.Close()

	var (
		state  *operations.RunState
		runErr error
	)
	reg, runErr := pipeline.Registry(sel)
	if runErr == nil {
		state, runErr = operations.NewRunner(reg, a.Metrics, a.Logger).
			Run(ctx, operations.RunRequest{ID: runID, ContinueOnError: continueOnError})
	}

	rows := factRows(ctx, state, pipeline)
	// record the outcome even when ctx was cancelled
	if err := runs.FinishRun(context.WithoutCancel(ctx), runID, rows, runErr); err != nil {
		a.Logger.ErrorContext(ctx, "run_finish_not_recorded",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
	}
	return state, runErr
}

// factRows is the extracted row count, or the current fact table size when
// the run did not extract
func factRows(ctx context.Context, state *operations.RunState, p *operations.Pipeline) int64 {
	if state != nil {
		if v, ok := state.GetValue(operations.ValueRows); ok {
			if n, ok := v.(int64); ok {
				return n
			}
		}
	}
	if ctx.Err() != nil {
		return 0
	}
	store, err := p.Store()
	if err != nil {
		return 0
	}
	n, err := store.CountRows(ctx, config.FactTableName)
	if err != nil {
		return 0
	}
	return n
}

// Serve runs the browser API until ctx is cancelled, then shuts down gracefully
func (a *Application) Serve(ctx context.Context) error {
	store, err := canonical.OpenStoreReadOnly(a.Paths.DuckDB)
	if err != nil {
		return err
	}
	defer store.Close()

	var runs services.RunHistory
	if _, err := os.Stat(a.Paths.Ledger); err == nil {
		l, err := ledger.Open(a.Paths.Ledger)
		if err != nil {
			return err
		}
		defer l.Close()
		runs = l
	}

	router := transport.NewRouter(transport.RouterConfig{
		Browser:   services.NewBrowserService(store, runs, a.Logger),
		Health:    services.NewHealthService(store, a.Logger),
		Metrics:   a.metricsHandler(),
		Pipeline:  a.Metrics,
		RateLimit: a.Config.Server.RateLimit,
		Logger:    a.Logger,
	})
	srv := transport.NewServer(a.Config.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.InfoContext(gctx, "server_started", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		a.Logger.Info("server_stopping")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (a *Application) metricsHandler() http.Handler {
	if a.Telemetry == nil || a.Telemetry.Registry == nil {
		return nil
	}
	return a.Telemetry.Handler()
}

// OpenStore opens the canonical database read-only
func (a *Application) OpenStore() (*canonical.Store, error) {
	return canonical.OpenStoreReadOnly(a.Paths.DuckDB)
}

// OpenLedger opens the run ledger
func (a *Application) OpenLedger() (*ledger.Ledger, error) {
	return ledger.Open(a.Paths.Ledger)
}

// Close writes the metrics textfile and stops telemetry
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if err := a.Telemetry.WriteTextfile(a.Paths.MetricsFile); err != nil {
		errs = append(errs, fmt.Errorf("failed to write metrics textfile: %w", err))
	}
	if err := a.Telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
