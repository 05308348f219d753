package langtest

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// otelMetrics holds the OpenTelemetry metric instruments for the
// harness. These are created once at construction and reused across
// stages.
type otelMetrics struct {
	// samplesCounter increments per sample leaving a stage, with
	// stage and outcome attributes.
	samplesCounter metric.Int64Counter

	// invocationsCounter increments per model call, with a cache_hit
	// attribute.
	invocationsCounter metric.Int64Counter

	// passRateHistogram records per-test pass rates at report time.
	passRateHistogram metric.Float64Histogram
}

// initOTelMetrics creates the metric instruments. Called once from New
// when a meter is configured.
func initOTelMetrics(meter metric.Meter) (*otelMetrics, error) {
	if meter == nil {
		return nil, nil
	}

	m := &otelMetrics{}
	var err error

	m.samplesCounter, err = meter.Int64Counter(
		"harness.samples",
		metric.WithDescription("Samples processed per pipeline stage"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create samples counter: %w", err)
	}

	m.invocationsCounter, err = meter.Int64Counter(
		"harness.invocations",
		metric.WithDescription("Model invocations, including cache hits"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create invocations counter: %w", err)
	}

	m.passRateHistogram, err = meter.Float64Histogram(
		"harness.pass_rate",
		metric.WithDescription("Per-test pass rate from 0.0 to 1.0"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pass rate histogram: %w", err)
	}

	return m, nil
}

func (m *otelMetrics) recordSample(ctx context.Context, stage string, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	m.samplesCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

func (m *otelMetrics) recordInvocation(ctx context.Context, cacheHit bool) {
	if m == nil {
		return
	}
	m.invocationsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("cache_hit", cacheHit),
	))
}

func (m *otelMetrics) recordPassRate(ctx context.Context, category, test string, rate float64) {
	if m == nil {
		return
	}
	m.passRateHistogram.Record(ctx, rate, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("test", test),
	))
}

// startStageSpan opens a span for a pipeline stage when a tracer is
// configured, otherwise returns the context untouched with a no-op end.
func (h *Harness) startStageSpan(ctx context.Context, stage string) (context.Context, func(error)) {
	if h.cfg.tracer == nil {
		return ctx, func(error) {}
	}

	ctx, span := h.cfg.tracer.Start(ctx, "harness."+stage,
		trace.WithAttributes(
			attribute.String("run.id", h.runID),
			attribute.String("model", h.cfg.modelName),
			attribute.String("task", h.task.String()),
		))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
