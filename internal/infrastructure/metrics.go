package infrastructure

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the counters recorded by the extraction and analysis steps
type PipelineMetrics struct {
	WorkbooksProcessed metric.Int64Counter
	WorkbooksSkipped   metric.Int64Counter
	RowsExtracted      metric.Int64Counter
	NullAmounts        metric.Int64Counter
	OutliersFlagged    metric.Int64Counter
	StepDuration       metric.Float64Histogram
	HTTPRequests       metric.Int64Counter
	HTTPDuration       metric.Float64Histogram
}

// NewPipelineMetrics registers the pipeline instruments on meter. Names use
// underscores so the Prometheus exposition keeps classic, unquoted metric names.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)

	if m.WorkbooksProcessed, err = meter.Int64Counter("tac_workbooks_processed",
		metric.WithDescription("Workbooks extracted into the fact table")); err != nil {
		return nil, err
	}
	if m.WorkbooksSkipped, err = meter.Int64Counter("tac_workbooks_skipped",
		metric.WithDescription("Workbooks skipped because no data worksheet was recognised")); err != nil {
		return nil, err
	}
	if m.RowsExtracted, err = meter.Int64Counter("tac_rows_extracted",
		metric.WithDescription("Fact rows extracted")); err != nil {
		return nil, err
	}
	if m.NullAmounts, err = meter.Int64Counter("tac_amounts_null",
		metric.WithDescription("Amounts coerced to null")); err != nil {
		return nil, err
	}
	if m.OutliersFlagged, err = meter.Int64Counter("tac_outliers_flagged",
		metric.WithDescription("Observations flagged by z-score detection")); err != nil {
		return nil, err
	}
	if m.StepDuration, err = meter.Float64Histogram("tac_step_duration",
		metric.WithDescription("Pipeline step duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.HTTPRequests, err = meter.Int64Counter("tac_http_requests",
		metric.WithDescription("Browser API requests served")); err != nil {
		return nil, err
	}
	if m.HTTPDuration, err = meter.Float64Histogram("tac_http_duration",
		metric.WithDescription("Browser API request duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordWorkbook counts one extracted workbook and its rows
func (m *PipelineMetrics) RecordWorkbook(ctx context.Context, sector, fy string, rows, nulls int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("sector", sector), attribute.String("fy", fy))
	m.WorkbooksProcessed.Add(ctx, 1, attrs)
	m.RowsExtracted.Add(ctx, int64(rows), attrs)
	m.NullAmounts.Add(ctx, int64(nulls), attrs)
}

// RecordSkip counts one skipped workbook
func (m *PipelineMetrics) RecordSkip(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.WorkbooksSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordOutliers counts flagged observations for one analysis
func (m *PipelineMetrics) RecordOutliers(ctx context.Context, analysis string, n int) {
	if m == nil {
		return
	}
	m.OutliersFlagged.Add(ctx, int64(n), metric.WithAttributes(attribute.String("analysis", analysis)))
}

// RecordStep records the duration of a pipeline step
func (m *PipelineMetrics) RecordStep(ctx context.Context, step, status string, seconds float64) {
	if m == nil {
		return
	}
	m.StepDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("step", step), attribute.String("status", status)))
}

// RecordRequest counts one API request by route and status
func (m *PipelineMetrics) RecordRequest(ctx context.Context, method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status_code", status))
	m.HTTPRequests.Add(ctx, 1, attrs)
	m.HTTPDuration.Record(ctx, seconds, attrs)
}
