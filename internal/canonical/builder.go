package canonical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"nhstac/internal/config"
	apperrors "nhstac/internal/errors"
	"nhstac/internal/exporter"
	"nhstac/internal/extract"
	"nhstac/internal/files"
	"nhstac/internal/infrastructure"
	"nhstac/internal/validation"
	"nhstac/pkg/contracts/domain"
)

// OutcomeRecorder persists the per-workbook outcomes of a run
type OutcomeRecorder interface {
	RecordWorkbook(ctx context.Context, runID string, outcome domain.WorkbookOutcome) error
}

// BuildReport summarises one extraction run
type BuildReport struct {
	RunID       string
	Outcomes    []domain.WorkbookOutcome
	Extracted   int
	Skipped     int
	Rows        int64
	QC          []domain.QCRow
	ParquetPath string
	DuckDBPath  string
	QCPath      string
}

// Builder turns the raw workbooks into the canonical Parquet file and DuckDB table
type Builder struct {
	paths     *config.Paths
	pattern   string
	discovery *files.Discovery
	validator *validation.FileValidator
	extractor *extract.Extractor
	csv       *exporter.CSVWriter
	metrics   *infrastructure.PipelineMetrics
	recorder  OutcomeRecorder
	logger    *slog.Logger
}

// BuilderOption configures optional collaborators
type BuilderOption func(*Builder)

// WithMetrics records workbook counters
func WithMetrics(m *infrastructure.PipelineMetrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// WithRecorder records workbook outcomes in the run ledger
func WithRecorder(r OutcomeRecorder) BuilderOption {
	return func(b *Builder) { b.recorder = r }
}

// NewBuilder creates a builder for the configured layout
func NewBuilder(cfg config.ExtractConfig, paths *config.Paths, logger *slog.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		paths:     paths,
		pattern:   cfg.WorkbookPattern,
		discovery: files.NewDiscovery(""),
		validator: validation.NewFileValidator(logger),
		extractor: extract.NewExtractor(cfg.DataSheet, logger),
		csv:       exporter.NewCSVWriter(paths.CanonicalDir, logger),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build extracts every workbook and regenerates the canonical outputs.
// Unreadable workbooks are skipped with a warning; a missing input directory,
// an empty one, or a run where nothing could be extracted is fatal.
func (b *Builder) Build(ctx context.Context, runID string) (*BuildReport, error) {
	if err := b.validator.ValidateInputDirectory(b.paths.RawDir, b.pattern); err != nil {
		return nil, apperrors.NewNotFoundError("input workbooks").WithContext("reason", err.Error())
	}
	if err := b.validator.ValidateOutputDirectory(b.paths.CanonicalDir); err != nil {
		return nil, apperrors.NewStorageError("canonical directory unavailable", err)
	}

	workbooks, err := b.discovery.FindWorkbooks(b.paths.RawDir, b.pattern)
	if err != nil {
		return nil, apperrors.NewNotFoundError("input workbooks").WithContext("reason", err.Error())
	}

	b.logger.InfoContext(ctx, "extraction_started",
		slog.String("run_id", runID),
		slog.String("raw_dir", b.paths.RawDir),
		slog.Int("workbooks", len(workbooks)))

	if err := b.removeOutputs(); err != nil {
		return nil, err
	}

	unifier, err := NewUnifier(b.paths.FactParquet)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create parquet file", err)
	}

	report := &BuildReport{
		RunID:       runID,
		ParquetPath: b.paths.FactParquet,
		DuckDBPath:  b.paths.DuckDB,
	}

	for _, wb := range workbooks {
		if err := ctx.Err(); err != nil {
			unifier.Abort()
			return nil, err
		}

		outcome, err := b.extractOne(ctx, wb, unifier)
		if err != nil {
			unifier.Abort()
			return nil, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Status == domain.WorkbookExtracted {
			report.Extracted++
		} else {
			report.Skipped++
		}

		if b.recorder != nil {
			if err := b.recorder.RecordWorkbook(ctx, runID, outcome); err != nil {
				b.logger.WarnContext(ctx, "ledger_write_failed",
					slog.String("file", outcome.File),
					slog.String("error", err.Error()))
			}
		}
	}

	if report.Extracted == 0 {
		unifier.Abort()
		return report, apperrors.NewValidationError("no workbook could be extracted").
			WithContext("skipped", report.Skipped)
	}

	report.Rows = unifier.Rows()
	report.QC = unifier.QC()
	if err := unifier.Close(); err != nil {
		return report, apperrors.NewStorageError("failed to write parquet file", err)
	}

	if err := b.loadDatabase(ctx, report); err != nil {
		return report, err
	}

	qcPath, err := WriteQCSummary(b.csv, b.paths.QCSummary, report.QC)
	if err != nil {
		return report, apperrors.NewStorageError("failed to write QC summary", err)
	}
	report.QCPath = qcPath

	for _, row := range report.QC {
		b.logger.InfoContext(ctx, "qc_summary",
			slog.String("fy", row.FY),
			slog.String("sector", row.Sector),
			slog.Int64("rows", row.Rows),
			slog.Int64("null_amounts", row.NullAmounts),
			slog.String("total_amount", row.TotalAmount.StringFixed(2)))
	}

	b.logger.InfoContext(ctx, "extraction_completed",
		slog.String("run_id", runID),
		slog.Int("extracted", report.Extracted),
		slog.Int("skipped", report.Skipped),
		slog.Int64("rows", report.Rows),
		slog.String("parquet", report.ParquetPath),
		slog.String("duckdb", report.DuckDBPath))

	return report, nil
}

// extractOne reads a workbook into the unifier. Only cancellation and
// storage failures are returned as errors; anything else is a skip.
func (b *Builder) extractOne(ctx context.Context, wb files.FileInfo, unifier *Unifier) (domain.WorkbookOutcome, error) {
	outcome := domain.WorkbookOutcome{File: wb.Name}

	var result *extract.Result
	err := b.validator.ValidateFile(wb.Path, config.ExcelExtension)
	if err == nil {
		result, err = b.extractor.Extract(ctx, wb.Path)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome, ctxErr
		}

		outcome.Status = domain.WorkbookSkipped
		outcome.Reason = skipReason(err)
		outcome.Error = err.Error()
		if meta, metaErr := extract.ParseWorkbookName(wb.Path); metaErr == nil {
			outcome.Sector = string(meta.Sector)
			outcome.FY = meta.FY
		}

		b.logger.WarnContext(ctx, "workbook_skipped",
			slog.String("file", wb.Name),
			slog.String("reason", outcome.Reason),
			slog.String("error", err.Error()))
		b.metrics.RecordSkip(ctx, outcome.Reason)
		return outcome, nil
	}

	if err := unifier.Append(result); err != nil {
		return outcome, apperrors.NewStorageError("failed to append workbook", err).WithContext("file", wb.Name)
	}

	outcome.Status = domain.WorkbookExtracted
	outcome.Sector = string(result.Meta.Sector)
	outcome.FY = result.Meta.FY
	outcome.Sheet = result.Sheet
	outcome.MatchRule = string(result.Rule)
	outcome.Rows = len(result.Records)
	outcome.NullAmounts = result.NullAmounts

	b.metrics.RecordWorkbook(ctx, outcome.Sector, outcome.FY, outcome.Rows, outcome.NullAmounts)
	return outcome, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, extract.ErrUnrecognisedWorkbookName):
		return domain.SkipUnrecognisedName
	case errors.Is(err, extract.ErrWorksheetNotRecognised):
		return domain.SkipWorksheetNotRecognised
	default:
		return domain.SkipUnreadable
	}
}

// removeOutputs deletes the previous run's canonical files
func (b *Builder) removeOutputs() error {
	for _, path := range []string{b.paths.FactParquet, b.paths.DuckDB, b.paths.DuckDB + ".wal", b.paths.QCSummary} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return apperrors.NewStorageError("failed to remove previous output", err).WithContext("path", path)
		}
	}
	return nil
}

// loadDatabase loads the Parquet file into DuckDB and cross-checks the per group counts
func (b *Builder) loadDatabase(ctx context.Context, report *BuildReport) error {
	store, err := OpenStore(b.paths.DuckDB)
	if err != nil {
		return err
	}
	defer store.Close()

	loaded, err := store.LoadFactFromParquet(ctx, b.paths.FactParquet)
	if err != nil {
		return err
	}
	if loaded != report.Rows {
		return apperrors.NewInternalError(
			fmt.Sprintf("database holds %d rows, parquet holds %d", loaded, report.Rows), nil)
	}

	dbQC, err := store.QC(ctx)
	if err != nil {
		return err
	}
	return compareQC(report.QC, dbQC)
}

func compareQC(want, got []domain.QCRow) error {
	if len(want) != len(got) {
		return apperrors.NewInternalError(
			fmt.Sprintf("QC group count mismatch: parquet %d, database %d", len(want), len(got)), nil)
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.FY != g.FY || w.Sector != g.Sector || w.Rows != g.Rows || w.NullAmounts != g.NullAmounts {
			return apperrors.NewInternalError(
				fmt.Sprintf("QC mismatch for %s/%s: parquet %d rows (%d null), database %d rows (%d null)",
					w.FY, w.Sector, w.Rows, w.NullAmounts, g.Rows, g.NullAmounts), nil)
		}
	}
	return nil
}
