package langtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techthiyanes/langtest/dataset"
	"github.com/techthiyanes/langtest/model"
	"github.com/techthiyanes/langtest/sample"
)

// gazetteerAdapter tags every known word it finds, case-insensitively,
// at the word's actual offsets. Case perturbations therefore leave its
// entity predictions structurally unchanged.
func gazetteerAdapter(entities map[string]string) model.Adapter {
	return model.PredictFunc(func(_ context.Context, task sample.Task, input string) (sample.Output, error) {
		var preds []sample.NERPrediction
		offset := 0
		for _, word := range strings.Split(input, " ") {
			if label, ok := entities[strings.ToLower(strings.TrimRight(word, ".,!?"))]; ok {
				preds = append(preds, sample.NERPrediction{
					Label: label,
					Span:  sample.Span{Start: offset, End: offset + len(word), Word: word},
				})
			}
			offset += len(word) + 1
		}
		return sample.EntitiesOutput(preds...), nil
	})
}

func labelAdapter(fn func(input string) string) model.Adapter {
	return model.PredictFunc(func(_ context.Context, _ sample.Task, input string) (sample.Output, error) {
		return sample.LabelOutput(fn(input)), nil
	})
}

func robustnessConfig(tests ...string) Config {
	enabled := make(map[string]TestConfig, len(tests))
	for _, name := range tests {
		enabled[name] = TestConfig{}
	}
	return Config{Tests: TestsConfig{
		Defaults:   Defaults{MinPassRate: 0.75, Seed: 7},
		Categories: map[string]map[string]TestConfig{CategoryRobustness: enabled},
	}}
}

func classificationRecords(n int) []dataset.Record {
	records := make([]dataset.Record, n)
	for i := range records {
		records[i] = dataset.Record{Text: fmt.Sprintf("review number %d was fine", i), Label: "positive"}
	}
	return records
}

func TestGenerateOneSamplePerRecordAndTest(t *testing.T) {
	h, err := New(sample.TaskTextClassification, classificationRecords(4),
		labelAdapter(func(string) string { return "positive" }),
		robustnessConfig("uppercase", "lowercase", "add_typo"))
	require.NoError(t, err)
	require.NoError(t, h.Generate(context.Background()))

	samples := h.Samples()
	assert.Len(t, samples, 12)

	seen := map[string]bool{}
	for _, s := range samples {
		require.False(t, seen[s.Key()], "duplicate sample %s", s.Key())
		seen[s.Key()] = true
		assert.Equal(t, sample.StateGenerated, s.State)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	var calls atomic.Int64
	adapter := model.PredictFunc(func(_ context.Context, _ sample.Task, input string) (sample.Output, error) {
		calls.Add(1)
		return sample.LabelOutput("positive"), nil
	})

	h, err := New(sample.TaskTextClassification, classificationRecords(3), adapter,
		robustnessConfig("uppercase"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, h.Generate(ctx))
	require.NoError(t, h.Run(ctx))

	after := calls.Load()
	outputs := map[string]sample.Output{}
	for _, s := range h.Samples() {
		outputs[s.Key()] = s.ActualOutput
	}

	require.NoError(t, h.Run(ctx))
	assert.Equal(t, after, calls.Load(), "second Run must not invoke the model")
	for _, s := range h.Samples() {
		assert.Equal(t, outputs[s.Key()], s.ActualOutput)
	}
}

func TestSeedDeterminism(t *testing.T) {
	records := classificationRecords(5)
	adapter := labelAdapter(func(string) string { return "positive" })

	perturbedTexts := func(seed int64) []string {
		h, err := New(sample.TaskTextClassification, records, adapter,
			robustnessConfig("add_typo", "add_ocr_typo"), WithSeed(seed))
		require.NoError(t, err)
		require.NoError(t, h.Generate(context.Background()))
		var texts []string
		for _, s := range h.Samples() {
			texts = append(texts, s.Key()+"="+s.Perturbed)
		}
		return texts
	}

	assert.Equal(t, perturbedTexts(99), perturbedTexts(99),
		"same seed must produce identical test cases")
}

func TestInvariancePassesForConsistentModel(t *testing.T) {
	h, err := New(sample.TaskTextClassification, classificationRecords(6),
		labelAdapter(func(string) string { return "positive" }),
		robustnessConfig("uppercase", "add_contraction"))
	require.NoError(t, err)

	rep, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed())
	for _, e := range rep.Entries {
		assert.Equal(t, 1.0, e.PassRate)
		assert.Zero(t, e.ErrorCount)
	}
}

func TestPassRateAgainstMinimum(t *testing.T) {
	// The model flips its label when an all-caps input mentions "bad":
	// 3 of 10 records regress under the uppercase perturbation.
	records := classificationRecords(10)
	for _, i := range []int{2, 5, 8} {
		records[i].Text = fmt.Sprintf("review number %d was bad", i)
	}
	adapter := labelAdapter(func(input string) string {
		if input == strings.ToUpper(input) && strings.Contains(input, "BAD") {
			return "negative"
		}
		return "positive"
	})

	h, err := New(sample.TaskTextClassification, records, adapter, robustnessConfig("uppercase"))
	require.NoError(t, err)

	rep, err := h.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)

	e := rep.Entries[0]
	assert.Equal(t, 10, e.SampleCount)
	assert.InDelta(t, 0.7, e.PassRate, 1e-9)
	assert.Equal(t, 0.75, e.MinPassRate)
	assert.False(t, e.Pass)
	assert.False(t, rep.Passed())

	assert.Len(t, h.FailedSamples("uppercase"), 3)
}

func TestEndToEndNERUppercase(t *testing.T) {
	records := []dataset.Record{
		{
			Text: "John lives in Berlin",
			Entities: []sample.NERPrediction{
				{Label: "PER", Span: sample.Span{Start: 0, End: 4, Word: "John"}},
				{Label: "LOC", Span: sample.Span{Start: 14, End: 20, Word: "Berlin"}},
			},
		},
		{
			Text: "Maria flew to Paris",
			Entities: []sample.NERPrediction{
				{Label: "PER", Span: sample.Span{Start: 0, End: 5, Word: "Maria"}},
				{Label: "LOC", Span: sample.Span{Start: 14, End: 19, Word: "Paris"}},
			},
		},
	}
	adapter := gazetteerAdapter(map[string]string{
		"john": "PER", "maria": "PER", "berlin": "LOC", "paris": "LOC",
	})

	h, err := New(sample.TaskNER, records, adapter, robustnessConfig("uppercase"))
	require.NoError(t, err)

	rep, err := h.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, 1.0, rep.Entries[0].PassRate)
	assert.True(t, rep.Passed())

	for _, s := range h.Samples() {
		assert.Equal(t, strings.ToUpper(s.Original), s.Perturbed)
		require.NotNil(t, s.ActualOutput.NER)
	}
}

func TestAdapterFailureIsIsolated(t *testing.T) {
	records := classificationRecords(5)
	records[1].Text = "poison pill review"

	adapter := model.PredictFunc(func(_ context.Context, _ sample.Task, input string) (sample.Output, error) {
		if strings.Contains(strings.ToLower(input), "poison") {
			return sample.Output{}, errors.New("backend exploded")
		}
		return sample.LabelOutput("positive"), nil
	})

	h, err := New(sample.TaskTextClassification, records, adapter, robustnessConfig("uppercase"))
	require.NoError(t, err)

	rep, err := h.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)

	e := rep.Entries[0]
	assert.Equal(t, 5, e.SampleCount)
	assert.Equal(t, 4, e.PassCount)
	assert.Equal(t, 1, e.ErrorCount)
	// The errored sample counts against the pass rate by default.
	assert.InDelta(t, 0.8, e.PassRate, 1e-9)

	var failed *sample.Sample
	for _, s := range h.Samples() {
		if s.State == sample.StateFailed {
			require.Nil(t, failed, "exactly one sample should fail")
			failed = s
		} else {
			assert.Equal(t, sample.StateEvaluated, s.State)
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "run", failed.FailedStage)
	assert.Contains(t, failed.Error, "backend exploded")
}

func TestRetryRecoversRunFailures(t *testing.T) {
	var healthy atomic.Bool
	adapter := model.PredictFunc(func(_ context.Context, _ sample.Task, input string) (sample.Output, error) {
		if !healthy.Load() && strings.Contains(input, "NUMBER 1") {
			return sample.Output{}, errors.New("transient timeout")
		}
		return sample.LabelOutput("positive"), nil
	})

	h, err := New(sample.TaskTextClassification, classificationRecords(3), adapter,
		robustnessConfig("uppercase"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, h.Generate(ctx))
	require.NoError(t, h.Run(ctx))

	failed := 0
	for _, s := range h.Samples() {
		if s.State == sample.StateFailed {
			failed++
		}
	}
	require.Equal(t, 1, failed)

	healthy.Store(true)
	require.NoError(t, h.Retry(ctx))
	for _, s := range h.Samples() {
		assert.Equal(t, sample.StateRun, s.State)
	}
}

func TestRepresentationRunsWithoutAdapter(t *testing.T) {
	records := classificationRecords(8)
	for i := 0; i < 2; i++ {
		records[i].Label = "negative"
	}

	cfg := Config{Tests: TestsConfig{
		Defaults: Defaults{MinPassRate: 1.0},
		Categories: map[string]map[string]TestConfig{
			CategoryRepresentation: {
				"min_label_representation_count": {Threshold: 2},
			},
		},
	}}

	h, err := New(sample.TaskTextClassification, records, nil, cfg)
	require.NoError(t, err)

	rep, err := h.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Entries, 1)
	assert.Equal(t, 1, rep.Entries[0].SampleCount)
	assert.True(t, rep.Entries[0].Pass, "both labels reach the minimum count of 2")
}

func TestCustomCELCriteria(t *testing.T) {
	cfg := Config{Tests: TestsConfig{
		Defaults: Defaults{MinPassRate: 1.0},
		Categories: map[string]map[string]TestConfig{
			CategoryAccuracy: {
				"no_refusals": {Expression: `!actual.matches('(?i)cannot answer')`},
			},
		},
	}}

	adapter := model.PredictFunc(func(_ context.Context, _ sample.Task, input string) (sample.Output, error) {
		return sample.TextOutput("the answer is 42"), nil
	})

	records := []dataset.Record{{Question: "what is the answer?", Answer: "42"}}
	h, err := New(sample.TaskQuestionAnswering, records, adapter, cfg)
	require.NoError(t, err)

	rep, err := h.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Passed())
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	records := classificationRecords(1)
	adapter := labelAdapter(func(string) string { return "positive" })

	// Unknown test name fails registry validation before any work.
	_, err := New(sample.TaskTextClassification, records, adapter,
		robustnessConfig("no_such_test"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTestNotFound)

	// swap_entities exists for NER only.
	_, err = New(sample.TaskTextClassification, records, adapter,
		robustnessConfig("swap_entities"))
	assert.ErrorIs(t, err, ErrTestNotFound)

	// CEL compile failure is fatal at construction.
	badCEL := Config{Tests: TestsConfig{
		Categories: map[string]map[string]TestConfig{
			CategoryAccuracy: {"broken": {Expression: `actual ==`}},
		},
	}}
	_, err = New(sample.TaskTextClassification, records, adapter, badCEL)
	require.Error(t, err)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, KindConfiguration, cfgErr.Kind)

	// A model-dependent suite needs an adapter.
	_, err = New(sample.TaskTextClassification, records, nil, robustnessConfig("uppercase"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// Empty dataset.
	_, err = New(sample.TaskTextClassification, nil, adapter, robustnessConfig("uppercase"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// Invalid record for the task.
	_, err = New(sample.TaskTextClassification, []dataset.Record{{Text: "no label"}}, adapter,
		robustnessConfig("uppercase"))
	require.Error(t, err)
}

func TestStageOrderEnforced(t *testing.T) {
	h, err := New(sample.TaskTextClassification, classificationRecords(1),
		labelAdapter(func(string) string { return "positive" }),
		robustnessConfig("uppercase"))
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, h.Run(ctx), ErrNotGenerated)
	assert.ErrorIs(t, h.Evaluate(ctx), ErrNotGenerated)
	_, err = h.Report(ctx)
	assert.ErrorIs(t, err, ErrNotEvaluated)

	require.NoError(t, h.Generate(ctx))
	assert.Error(t, h.Generate(ctx), "a harness is single-use")
}

func TestCancellationStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := New(sample.TaskTextClassification, classificationRecords(3),
		labelAdapter(func(string) string { return "positive" }),
		robustnessConfig("uppercase"))
	require.NoError(t, err)
	require.NoError(t, h.Generate(context.Background()))

	err = h.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvarianceSharesOriginalPrediction(t *testing.T) {
	var calls atomic.Int64
	adapter := model.PredictFunc(func(_ context.Context, _ sample.Task, input string) (sample.Output, error) {
		calls.Add(1)
		// Latency keeps concurrent workers in flight together, so a
		// cache miss raced by another worker must coalesce rather
		// than double-invoke.
		time.Sleep(10 * time.Millisecond)
		return sample.LabelOutput("positive"), nil
	})

	// Two invariance tests over the same records: the original-input
	// predictions are cached, so each distinct text is predicted once.
	h, err := New(sample.TaskTextClassification, classificationRecords(4), adapter,
		robustnessConfig("uppercase", "lowercase"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, h.Generate(ctx))
	require.NoError(t, h.Run(ctx))

	distinct := map[string]bool{}
	for _, s := range h.Samples() {
		distinct[s.Original] = true
		distinct[s.Perturbed] = true
	}
	assert.Equal(t, int64(len(distinct)), calls.Load())
}
