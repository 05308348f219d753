package langtest

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/techthiyanes/langtest/cache"
	"github.com/techthiyanes/langtest/store"
)

// Option configures a Harness.
type Option func(*harnessConfig)

// harnessConfig holds configuration for a Harness instance.
type harnessConfig struct {
	logger          *slog.Logger
	tracer          trace.Tracer
	meter           metric.Meter
	modelName       string
	seed            *int64
	runConcurrency  int
	evalConcurrency int
	cache           cache.Cache
	store           store.Store
	excludeErrors   bool
}

// WithLogger sets a custom logger for the harness.
// If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *harnessConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Each pipeline stage runs
// under its own span.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *harnessConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for sample counters and the
// pass-rate histogram.
func WithMeter(meter metric.Meter) Option {
	return func(c *harnessConfig) {
		c.meter = meter
	}
}

// WithModelName names the model under test. The name appears in
// reports, persisted runs and cache keys. Defaults to "model".
func WithModelName(name string) Option {
	return func(c *harnessConfig) {
		c.modelName = name
	}
}

// WithSeed overrides the configuration's seed. Two harnesses with the
// same config, dataset and seed generate byte-identical test cases.
func WithSeed(seed int64) Option {
	return func(c *harnessConfig) {
		c.seed = &seed
	}
}

// WithRunConcurrency bounds concurrent model invocations during the run
// stage. Defaults to 8.
func WithRunConcurrency(n int) Option {
	return func(c *harnessConfig) {
		c.runConcurrency = n
	}
}

// WithEvalConcurrency bounds concurrent evaluator executions. Defaults
// to 4; evaluators are CPU-bound so the bound stays small.
func WithEvalConcurrency(n int) Option {
	return func(c *harnessConfig) {
		c.evalConcurrency = n
	}
}

// WithCache sets the prediction cache. Defaults to an in-process cache
// scoped to the harness; pass a Redis cache to share predictions across
// processes.
func WithCache(ca cache.Cache) Option {
	return func(c *harnessConfig) {
		c.cache = ca
	}
}

// WithStore enables persistence. When set, the harness records its run
// at Generate time and persists samples and report entries after
// Evaluate.
func WithStore(st store.Store) Option {
	return func(c *harnessConfig) {
		c.store = st
	}
}

// WithExcludeAdapterFailures drops errored samples from pass-rate
// denominators. By default an errored sample counts against the pass
// rate; excluding them keeps infrastructure flakiness out of the rate
// while error counts still report it.
func WithExcludeAdapterFailures() Option {
	return func(c *harnessConfig) {
		c.excludeErrors = true
	}
}
