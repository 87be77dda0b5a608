package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nhstac/internal/infrastructure"
)

const (
	TracerName = "nhstac.operations"
)

// RunRequest selects how a run executes
type RunRequest struct {
	// ID of the run; generated when empty
	ID string

	// ContinueOnError keeps running steps that do not depend on a failed one
	ContinueOnError bool
}

// Runner executes the steps of a registry in dependency order
type Runner struct {
	registry *Registry
	metrics  *infrastructure.PipelineMetrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewRunner creates a runner. metrics may be nil.
func NewRunner(registry *Registry, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry: registry,
		metrics:  metrics,
		tracer:   otel.Tracer(TracerName),
		logger:   logger,
	}
}

// Run executes every registered step one at a time. The returned state is
// never nil once the step order is known; the error joins the step failures.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunState, error) {
	steps, err := r.registry.Ordered()
	if err != nil {
		return nil, fmt.Errorf("failed to order steps: %w", err)
	}

	state := NewRunState(req.ID)
	for _, step := range steps {
		state.AddStep(NewStepState(step.ID(), step.Name()))
	}

	ctx, span := r.tracer.Start(ctx, "operation.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.Int("run.steps", len(steps)),
		),
	)
	defer span.End()

	state.Start()
	r.logger.InfoContext(ctx, "run_started",
		slog.String("run_id", state.ID),
		slog.Int("steps", len(steps)),
	)

	var failures []error
	blocked := make(map[string]string) // step id -> failed step that blocks it

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			r.skipRemaining(ctx, state, "run cancelled")
			state.Finish(RunStatusCancelled, err)
			span.SetStatus(codes.Error, "cancelled")
			r.logger.WarnContext(ctx, "run_cancelled", slog.String("run_id", state.ID))
			return state, errors.Join(append(failures, err)...)
		}

		stepState := state.Step(step.ID())
		if cause, ok := blocked[step.ID()]; ok {
			stepState.Skip(fmt.Sprintf("dependency %s failed", cause))
			r.metrics.RecordStep(ctx, step.ID(), string(StepStatusSkipped), 0)
			r.logger.WarnContext(ctx, "step_skipped",
				slog.String("run_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("failed_dependency", cause),
			)
			continue
		}

		if err := r.executeStep(ctx, state, step, stepState); err != nil {
			failures = append(failures, err)
			for _, dependent := range r.registry.Dependents(step.ID()) {
				if _, ok := blocked[dependent.ID()]; !ok {
					blocked[dependent.ID()] = step.ID()
				}
			}
			if !req.ContinueOnError {
				r.skipRemaining(ctx, state, fmt.Sprintf("step %s failed", step.ID()))
				break
			}
		}
	}

	if len(failures) > 0 {
		runErr := errors.Join(failures...)
		state.Finish(RunStatusFailed, runErr)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run failed")
		r.logger.ErrorContext(ctx, "run_failed",
			slog.String("run_id", state.ID),
			slog.Int("failed_steps", len(failures)),
		)
		return state, runErr
	}

	state.Finish(RunStatusCompleted, nil)
	span.SetStatus(codes.Ok, "")
	r.logger.InfoContext(ctx, "run_completed", slog.String("run_id", state.ID))
	return state, nil
}

func (r *Runner) executeStep(ctx context.Context, state *RunState, step Step, stepState *StepState) error {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("operation.step.%s", step.ID()),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("step.id", step.ID()),
			attribute.String("step.name", step.Name()),
		),
	)
	defer span.End()

	stepState.Start()
	r.logger.InfoContext(ctx, "step_started",
		slog.String("run_id", state.ID),
		slog.String("step", step.ID()),
	)

	if err := step.Execute(ctx, state); err != nil {
		stepErr := NewStepError(step.ID(), err)
		stepState.Fail(stepErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordStep(ctx, step.ID(), string(StepStatusFailed), stepState.Duration().Seconds())
		r.logger.ErrorContext(ctx, "step_failed",
			slog.String("run_id", state.ID),
			slog.String("step", step.ID()),
			slog.String("error", err.Error()),
			slog.Duration("duration", stepState.Duration()),
		)
		return stepErr
	}

	stepState.Complete()
	span.SetStatus(codes.Ok, "")
	r.metrics.RecordStep(ctx, step.ID(), string(StepStatusCompleted), stepState.Duration().Seconds())
	r.logger.InfoContext(ctx, "step_completed",
		slog.String("run_id", state.ID),
		slog.String("step", step.ID()),
		slog.Duration("duration", stepState.Duration().Round(time.Millisecond)),
	)
	return nil
}

// skipRemaining marks every step that has not started as skipped
func (r *Runner) skipRemaining(ctx context.Context, state *RunState, reason string) {
	for _, s := range state.Steps() {
		if s.GetStatus() != StepStatusPending {
			continue
		}
		s.Skip(reason)
		r.logger.WarnContext(ctx, "step_skipped",
			slog.String("run_id", state.ID),
			slog.String("step", s.ID),
			slog.String("reason", reason),
		)
	}
}
