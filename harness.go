package langtest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/techthiyanes/langtest/cache"
	"github.com/techthiyanes/langtest/dataset"
	"github.com/techthiyanes/langtest/evaluate"
	"github.com/techthiyanes/langtest/model"
	"github.com/techthiyanes/langtest/perturb"
	"github.com/techthiyanes/langtest/report"
	"github.com/techthiyanes/langtest/sample"
	"github.com/techthiyanes/langtest/store"
)

// Test categories. Robustness and bias tests judge behavioral
// invariance against the model's own original-input output; accuracy
// and fairness judge against dataset labels; representation judges the
// dataset itself.
const (
	CategoryRobustness     = "robustness"
	CategoryBias           = "bias"
	CategoryFairness       = "fairness"
	CategoryAccuracy       = "accuracy"
	CategoryRepresentation = "representation"
)

// Harness drives the generate, run and evaluate pipeline for one model,
// one task and one reference dataset.
//
// Stages are explicit so callers can inspect samples between them:
//
//	h, err := langtest.New(task, records, adapter, cfg)
//	...
//	err = h.Generate(ctx)
//	err = h.Run(ctx)
//	err = h.Evaluate(ctx)
//	rep, err := h.Report(ctx)
//
// Execute runs all four in order. A Harness is single-use: build a new
// one per run.
type Harness struct {
	cfg      harnessConfig
	task     sample.Task
	config   Config
	records  []dataset.Record
	adapter  model.Adapter
	perturbs *perturb.Registry
	evals    *evaluate.Registry
	specs    []TestSpec
	specByID map[string]TestSpec
	seed     int64
	runID    string
	metrics  *otelMetrics
	logger   *slog.Logger
	flight   singleflight.Group

	mu        sync.Mutex
	samples   []*sample.Sample
	generated bool
	evaluated bool
}

// New validates the configuration and builds a harness.
//
// Every enabled (task, category, test) pair is checked against both the
// perturbation and evaluator registries up front; a miss is a fatal
// configuration error. Nothing is generated or invoked until a stage
// method is called.
func New(task sample.Task, records []dataset.Record, adapter model.Adapter, config Config, opts ...Option) (*Harness, error) {
	const op = "New"

	cfg := harnessConfig{
		logger:          slog.Default(),
		modelName:       "model",
		runConcurrency:  8,
		evalConcurrency: 4,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.cache == nil {
		cfg.cache = cache.NewMemory()
	}
	if cfg.runConcurrency < 1 {
		cfg.runConcurrency = 1
	}
	if cfg.evalConcurrency < 1 {
		cfg.evalConcurrency = 1
	}

	specs := config.specs(task)
	if len(specs) == 0 {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: no tests enabled", ErrInvalidConfig))
	}
	if len(records) == 0 {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: empty dataset", ErrInvalidConfig))
	}
	for i, r := range records {
		if err := r.Validate(task); err != nil {
			return nil, NewConfigurationError(op, err).WithContext(map[string]any{"record_index": i})
		}
	}

	perturbs := perturb.Default().Clone()
	evals := evaluate.Default().Clone()

	// Custom tests bind the identity perturbation and a compiled CEL
	// criteria into the harness's registry clones.
	for _, spec := range specs {
		if spec.Expression == "" {
			continue
		}
		eval, err := evaluate.NewCEL(spec.Expression)
		if err != nil {
			return nil, NewConfigurationError(op, err).WithContext(map[string]any{
				"category": spec.Category,
				"test":     spec.Name,
			})
		}
		if err := perturbs.Register(task, spec.Category, spec.Name, perturb.Identity); err != nil {
			return nil, NewConfigurationError(op, err)
		}
		if err := evals.Register(task, spec.Category, spec.Name, eval); err != nil {
			return nil, NewConfigurationError(op, err)
		}
	}

	specByID := make(map[string]TestSpec, len(specs))
	needModel := false
	for _, spec := range specs {
		if _, ok := perturbs.Lookup(task, spec.Category, spec.Name); !ok {
			return nil, NewConfigurationError(op,
				fmt.Errorf("%w: no perturbation for %s/%s/%s", ErrTestNotFound, task, spec.Category, spec.Name))
		}
		if _, ok := evals.Lookup(task, spec.Category, spec.Name); !ok {
			return nil, NewConfigurationError(op,
				fmt.Errorf("%w: no evaluator for %s/%s/%s", ErrTestNotFound, task, spec.Category, spec.Name))
		}
		specByID[spec.Category+"/"+spec.Name] = spec
		needModel = needModel || spec.NeedsModel
	}
	if adapter == nil && needModel {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: adapter required", ErrInvalidConfig))
	}

	seed := config.Tests.Defaults.Seed
	if cfg.seed != nil {
		seed = *cfg.seed
	}

	metrics, err := initOTelMetrics(cfg.meter)
	if err != nil {
		return nil, NewConfigurationError(op, err)
	}

	runID := uuid.New().String()
	return &Harness{
		cfg:      cfg,
		task:     task,
		config:   config,
		records:  records,
		adapter:  adapter,
		perturbs: perturbs,
		evals:    evals,
		specs:    specs,
		specByID: specByID,
		seed:     seed,
		runID:    runID,
		metrics:  metrics,
		logger: cfg.logger.With(
			"run_id", runID,
			"model", cfg.modelName,
			"task", task.String(),
		),
	}, nil
}

// RunID returns the run's unique identifier.
func (h *Harness) RunID() string { return h.runID }

// Samples returns the harness's samples. The slice is a copy but the
// samples are shared; treat them as read-only outside the pipeline.
func (h *Harness) Samples() []*sample.Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*sample.Sample(nil), h.samples...)
}

// Generate produces one sample per (record, enabled test), perturbing
// each record's input deterministically from the seed. Representation
// tests instead produce one sample per test carrying dataset statistics.
//
// A perturbation error fails its own sample; generation continues.
func (h *Harness) Generate(ctx context.Context) error {
	const op = "Harness.Generate"

	h.mu.Lock()
	if h.generated {
		h.mu.Unlock()
		return NewGenerationError(op, fmt.Errorf("samples already generated"))
	}
	h.generated = true
	h.mu.Unlock()

	ctx, end := h.startStageSpan(ctx, "generate")
	var stageErr error
	defer func() { end(stageErr) }()

	if h.cfg.store != nil {
		err := h.cfg.store.CreateRun(ctx, store.RunRecord{
			ID:        h.runID,
			Model:     h.cfg.modelName,
			Task:      h.task,
			Status:    store.RunStatusRunning,
			Seed:      h.seed,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			stageErr = NewStoreError(op, err)
			return stageErr
		}
	}

	var samples []*sample.Sample
	for _, spec := range h.specs {
		if err := ctx.Err(); err != nil {
			stageErr = err
			return stageErr
		}

		if spec.Category == CategoryRepresentation {
			samples = append(samples, h.generateRepresentation(spec))
			continue
		}

		pfn, _ := h.perturbs.Lookup(h.task, spec.Category, spec.Name)
		for i, record := range h.records {
			s := sample.New(h.task, spec.Category, spec.Name, i, record.Input(h.task))

			rng := perturb.NewRand(h.seed, spec.Name, i)
			res, err := pfn(rng, perturb.Input{
				Text:     s.Original,
				Task:     h.task,
				Entities: record.Entities,
			}, spec.Perturb)
			if err != nil {
				s.MarkFailed("generate", err)
				h.metrics.recordSample(ctx, "generate", true)
				samples = append(samples, s)
				continue
			}

			if err := s.MarkGenerated(res.Text, res.Transformations); err != nil {
				s.MarkFailed("generate", err)
			}
			// Accuracy-family tests are judged against the dataset
			// label. Invariance-family expectations are captured from
			// the model during the run stage.
			if spec.Category == CategoryAccuracy || spec.Category == CategoryFairness {
				s.ExpectedOutput = record.Expected(h.task)
			}
			h.metrics.recordSample(ctx, "generate", s.State == sample.StateFailed)
			samples = append(samples, s)
		}
	}

	h.mu.Lock()
	h.samples = samples
	h.mu.Unlock()

	h.logger.Info("samples generated", "count", len(samples), "tests", len(h.specs), "seed", h.seed)
	return nil
}

// generateRepresentation builds the single dataset-statistics sample
// for a representation test. The counts the evaluator reads are
// computed here, at generation time, over the whole dataset.
func (h *Harness) generateRepresentation(spec TestSpec) *sample.Sample {
	s := sample.New(h.task, spec.Category, spec.Name, 0, "")
	s.Metadata = map[string]any{
		"label_counts":  labelCounts(h.task, h.records),
		"gender_counts": genderCounts(h.task, h.records),
	}
	if err := s.MarkGenerated("", nil); err != nil {
		s.MarkFailed("generate", err)
	}
	return s
}

// Run invokes the model on every generated sample, bounded by the run
// concurrency. Samples that already ran are skipped, so Run is
// idempotent; call Retry to re-run run-stage failures.
//
// Robustness and bias samples are invariance tests: the adapter is
// invoked on the original input as well, through the prediction cache,
// and that output becomes the sample's expected output.
func (h *Harness) Run(ctx context.Context) error {
	return h.run(ctx, false)
}

// Retry re-runs samples that failed in the run stage, then behaves like
// Run for any still-pending samples.
func (h *Harness) Retry(ctx context.Context) error {
	return h.run(ctx, true)
}

func (h *Harness) run(ctx context.Context, retryFailed bool) error {
	const op = "Harness.Run"

	h.mu.Lock()
	generated := h.generated
	samples := append([]*sample.Sample(nil), h.samples...)
	h.mu.Unlock()
	if !generated {
		return NewInvocationError(op, ErrNotGenerated)
	}

	ctx, end := h.startStageSpan(ctx, "run")
	var stageErr error
	defer func() { end(stageErr) }()

	runnable := func(s *sample.Sample) bool {
		if s.State == sample.StateGenerated {
			return true
		}
		return retryFailed && s.State == sample.StateFailed && s.FailedStage == "run"
	}

	stageErr = h.forEach(ctx, h.cfg.runConcurrency, samples, runnable, h.runSample)
	return stageErr
}

// runSample executes the run stage for one sample.
func (h *Harness) runSample(ctx context.Context, s *sample.Sample) {
	spec := h.specByID[s.Category+"/"+s.TestName]

	if !spec.NeedsModel {
		// Dataset-statistics samples carry everything the evaluator
		// needs in their metadata.
		if err := s.MarkRun(sample.Output{}); err != nil {
			s.MarkFailed("run", err)
		}
		h.metrics.recordSample(ctx, "run", s.State == sample.StateFailed)
		return
	}

	invariance := s.Category == CategoryRobustness || s.Category == CategoryBias
	if invariance {
		expected, err := h.predict(ctx, s.Original)
		if err != nil {
			s.MarkFailed("run", fmt.Errorf("original input: %w", err))
			h.metrics.recordSample(ctx, "run", true)
			return
		}
		s.ExpectedOutput = expected
	}

	actual, err := h.predict(ctx, s.Perturbed)
	if err != nil {
		s.MarkFailed("run", err)
		h.metrics.recordSample(ctx, "run", true)
		return
	}
	if err := s.MarkRun(actual); err != nil {
		s.MarkFailed("run", err)
	}
	h.metrics.recordSample(ctx, "run", s.State == sample.StateFailed)
}

// predict invokes the adapter through the prediction cache. Unchanged
// perturbed inputs and repeated original inputs resolve to one model
// call per distinct text: cache misses on the same key coalesce through
// a singleflight group, so concurrent workers never race the adapter
// for an input another worker is already predicting.
func (h *Harness) predict(ctx context.Context, input string) (sample.Output, error) {
	key := cache.Key(h.cfg.modelName, h.task, input)

	if out, ok, err := h.cfg.cache.Get(ctx, key); err == nil && ok {
		h.metrics.recordInvocation(ctx, true)
		return out, nil
	}

	v, err, shared := h.flight.Do(key, func() (any, error) {
		out, err := h.adapter.Predict(ctx, h.task, input)
		if err != nil {
			return sample.Output{}, err
		}
		h.metrics.recordInvocation(ctx, false)
		if err := h.cfg.cache.Set(ctx, key, out); err != nil {
			h.logger.Warn("prediction cache write failed", "error", err)
		}
		return out, nil
	})
	if err != nil {
		return sample.Output{}, err
	}
	if shared {
		h.metrics.recordInvocation(ctx, true)
	}
	return v.(sample.Output), nil
}

// Evaluate judges every run sample with its registered evaluator,
// bounded by the eval concurrency. Evaluator errors and panics fail
// their own sample and never stop siblings.
func (h *Harness) Evaluate(ctx context.Context) error {
	const op = "Harness.Evaluate"

	h.mu.Lock()
	generated := h.generated
	samples := append([]*sample.Sample(nil), h.samples...)
	h.mu.Unlock()
	if !generated {
		return NewEvaluationError(op, ErrNotGenerated)
	}

	ctx, end := h.startStageSpan(ctx, "evaluate")
	var stageErr error
	defer func() { end(stageErr) }()

	stageErr = h.forEach(ctx, h.cfg.evalConcurrency, samples,
		func(s *sample.Sample) bool { return s.State == sample.StateRun },
		h.evaluateSample)
	if stageErr != nil {
		return stageErr
	}

	h.mu.Lock()
	h.evaluated = true
	h.mu.Unlock()
	return nil
}

func (h *Harness) evaluateSample(ctx context.Context, s *sample.Sample) {
	spec := h.specByID[s.Category+"/"+s.TestName]
	eval, _ := h.evals.Lookup(h.task, s.Category, s.TestName)

	defer func() {
		if r := recover(); r != nil {
			s.MarkFailed("evaluate", fmt.Errorf("evaluator panic: %v", r))
			h.metrics.recordSample(ctx, "evaluate", true)
		}
	}()

	pass, err := eval(s, spec.Evaluate)
	if err != nil {
		s.MarkFailed("evaluate", err)
		h.metrics.recordSample(ctx, "evaluate", true)
		return
	}
	if err := s.MarkEvaluated(pass); err != nil {
		s.MarkFailed("evaluate", err)
	}
	h.metrics.recordSample(ctx, "evaluate", s.State == sample.StateFailed)
}

// Report aggregates evaluated samples into per-test pass rates and
// persists the run when a store is configured.
func (h *Harness) Report(ctx context.Context) (report.Report, error) {
	const op = "Harness.Report"

	h.mu.Lock()
	evaluated := h.evaluated
	samples := append([]*sample.Sample(nil), h.samples...)
	h.mu.Unlock()
	if !evaluated {
		return report.Report{}, NewEvaluationError(op, ErrNotEvaluated)
	}

	minRates := make(map[string]float64, len(h.specs))
	for _, spec := range h.specs {
		minRates[spec.Name] = spec.MinPassRate
	}

	entries, err := report.Aggregate(samples, report.Options{
		MinPassRates:       minRates,
		DefaultMinPassRate: defaultMinPassRate,
		ExcludeErrors:      h.cfg.excludeErrors,
	})
	if err != nil {
		return report.Report{}, NewEvaluationError(op, err)
	}

	rep := report.Report{
		RunID:     uuid.MustParse(h.runID),
		Model:     h.cfg.modelName,
		Task:      h.task,
		Entries:   entries,
		CreatedAt: time.Now().UTC(),
	}
	for _, e := range entries {
		h.metrics.recordPassRate(ctx, e.Category, e.TestName, e.PassRate)
		h.logger.Info("test evaluated",
			"category", e.Category,
			"test", e.TestName,
			"pass_rate", e.PassRate,
			"min_pass_rate", e.MinPassRate,
			"errors", e.ErrorCount,
			"pass", e.Pass,
		)
	}

	if h.cfg.store != nil {
		if err := h.cfg.store.SaveSamples(ctx, h.runID, samples); err != nil {
			return rep, NewStoreError(op, err)
		}
		if err := h.cfg.store.SaveReport(ctx, h.runID, entries); err != nil {
			return rep, NewStoreError(op, err)
		}
		if err := h.cfg.store.FinishRun(ctx, h.runID, store.RunStatusFinished, ""); err != nil {
			return rep, NewStoreError(op, err)
		}
	}
	return rep, nil
}

// Execute runs the full pipeline: Generate, Run, Evaluate, Report.
func (h *Harness) Execute(ctx context.Context) (report.Report, error) {
	if err := h.Generate(ctx); err != nil {
		return report.Report{}, err
	}
	if err := h.Run(ctx); err != nil {
		return report.Report{}, err
	}
	if err := h.Evaluate(ctx); err != nil {
		return report.Report{}, err
	}
	return h.Report(ctx)
}

// FailedSamples returns the samples that failed evaluation for one
// test, the input to data-augmentation workflows that retrain on the
// perturbations the model could not handle.
func (h *Harness) FailedSamples(testName string) []*sample.Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*sample.Sample
	for _, s := range h.samples {
		if s.TestName == testName && s.State == sample.StateEvaluated && !s.Passed() {
			out = append(out, s)
		}
	}
	return out
}

// forEach runs fn over the matching samples from a bounded worker pool.
// It returns the context error if the run was cut short.
func (h *Harness) forEach(ctx context.Context, workers int, samples []*sample.Sample,
	match func(*sample.Sample) bool, fn func(context.Context, *sample.Sample)) error {

	work := make(chan *sample.Sample)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range work {
				fn(ctx, s)
			}
		}()
	}

feed:
	for _, s := range samples {
		if !match(s) {
			continue
		}
		select {
		case work <- s:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()
	return ctx.Err()
}

// labelCounts tallies gold labels across the dataset: class labels for
// classification, entity labels for NER.
func labelCounts(task sample.Task, records []dataset.Record) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		switch task {
		case sample.TaskTextClassification:
			if r.Label != "" {
				counts[r.Label]++
			}
		case sample.TaskNER:
			for _, e := range r.Entities {
				counts[e.Label]++
			}
		}
	}
	return counts
}

// genderCounts classifies each record's input by the pronouns it
// contains and tallies the groups.
func genderCounts(task sample.Task, records []dataset.Record) map[string]int {
	counts := map[string]int{"male": 0, "female": 0, "unknown": 0}
	for _, r := range records {
		counts[classifyGender(r.Input(task))]++
	}
	return counts
}

var (
	maleMarkers   = []string{"he", "him", "his", "himself", "man", "men", "boy", "father", "husband"}
	femaleMarkers = []string{"she", "her", "hers", "herself", "woman", "women", "girl", "mother", "wife"}
)

func classifyGender(text string) string {
	male, female := 0, 0
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimRight(word, ".,!?;:'\"")
		for _, m := range maleMarkers {
			if word == m {
				male++
			}
		}
		for _, f := range femaleMarkers {
			if word == f {
				female++
			}
		}
	}
	switch {
	case male > female:
		return "male"
	case female > male:
		return "female"
	default:
		return "unknown"
	}
}
