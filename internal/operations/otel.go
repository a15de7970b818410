package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sachi-35/crop-yield-prediction/internal/infrastructure"
)

const (
	TracerName = "github.com/Sachi-35/crop-yield-prediction/operations"
)

// OperationTracer provides OpenTelemetry instrumentation for pipeline runs
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer from the initialized providers. A nil
// provider set yields a tracer that records nothing.
func NewOperationTracer(providers *infrastructure.OTelProviders, metrics *infrastructure.PipelineMetrics) *OperationTracer {
	tracer := noop.NewTracerProvider().Tracer(TracerName)
	if providers != nil && providers.Tracer != nil {
		tracer = providers.Tracer
	}
	return &OperationTracer{tracer: tracer, metrics: metrics}
}

// NewNoopOperationTracer returns a tracer that records nothing
func NewNoopOperationTracer() *OperationTracer {
	return NewOperationTracer(nil, nil)
}

// Metrics returns the metric instruments, which may be nil
func (pt *OperationTracer) Metrics() *infrastructure.PipelineMetrics {
	return pt.metrics
}

// TraceOperationExecution creates a span for the entire pipeline run
func (pt *OperationTracer) TraceOperationExecution(ctx context.Context, operationID string, req OperationRequest) (context.Context, trace.Span) {
	step := req.Step
	if req.RunsFullPipeline() {
		step = StepIDFullPipeline
	}
	ctx, span := pt.tracer.Start(ctx, "pipeline.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("operation.step", step),
		),
	)
	infrastructure.RecordActiveOperationChange(ctx, pt.metrics, 1, OperationTypePipeline)
	return ctx, span
}

// TraceStepExecution creates a span for one step
func (pt *OperationTracer) TraceStepExecution(ctx context.Context, operationID, stepID string) (context.Context, trace.Span) {
	return pt.tracer.Start(ctx, fmt.Sprintf("pipeline.step.%s", stepID),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stepID),
		),
	)
}

// RecordOperationCompletion closes out the run span and records run metrics
func (pt *OperationTracer) RecordOperationCompletion(ctx context.Context, span trace.Span, operationID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		infrastructure.RecordError(ctx, err, trace.WithAttributes(
			attribute.String("operation.id", operationID),
		))
	} else {
		span.SetStatus(codes.Ok, "pipeline completed")
	}
	span.SetAttributes(
		attribute.String("operation.status", status),
		attribute.Float64("operation.duration_seconds", duration.Seconds()),
	)

	infrastructure.RecordOperationMetrics(ctx, pt.metrics, operationID, OperationTypePipeline, duration, err)
	infrastructure.RecordActiveOperationChange(ctx, pt.metrics, -1, OperationTypePipeline)
}

// RecordStepCompletion closes out a step span and records step metrics
func (pt *OperationTracer) RecordStepCompletion(ctx context.Context, span trace.Span, operationID, stepID string, duration time.Duration, err error) {
	if err != nil {
		infrastructure.RecordError(ctx, err, trace.WithAttributes(
			attribute.String("step.id", stepID),
		))
	} else {
		span.SetStatus(codes.Ok, "step completed")
	}
	span.SetAttributes(attribute.Float64("step.duration_seconds", duration.Seconds()))

	infrastructure.RecordOperationStepMetrics(ctx, pt.metrics, operationID, stepID, duration, err == nil)
}

// RecordCancellation counts a run stopped by its context
func (pt *OperationTracer) RecordCancellation(ctx context.Context, operationID string, cause error) {
	reason := "cancelled"
	if cause != nil {
		reason = cause.Error()
	}
	infrastructure.RecordOperationCancellation(ctx, pt.metrics, operationID, reason)
}
