package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techthiyanes/langtest/sample"
)

func newRunSample(t *testing.T, task sample.Task, expected, actual sample.Output) *sample.Sample {
	t.Helper()
	s := sample.New(task, "robustness", "uppercase", 0, "John lives in Berlin")
	require.NoError(t, s.MarkGenerated("JOHN LIVES IN BERLIN", nil))
	s.ExpectedOutput = expected
	require.NoError(t, s.MarkRun(actual))
	return s
}

func TestDefaultRegistryCoverage(t *testing.T) {
	r := Default()

	for _, test := range []string{"uppercase", "add_typo", "swap_entities"} {
		_, ok := r.Lookup(sample.TaskNER, "robustness", test)
		assert.True(t, ok, "missing evaluator for %s", test)
	}
	_, ok := r.Lookup(sample.TaskTextClassification, "bias", "replace_to_male_pronouns")
	assert.True(t, ok)
	_, ok = r.Lookup(sample.TaskQuestionAnswering, "accuracy", "min_f1_score")
	assert.True(t, ok)
	_, ok = r.Lookup(sample.TaskNER, "representation", "min_label_representation_count")
	assert.True(t, ok)
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	base := Default()
	clone := base.Clone()
	require.NoError(t, clone.Register(sample.TaskNER, "robustness", "custom_criteria", ExactMatch))

	_, ok := clone.Lookup(sample.TaskNER, "robustness", "custom_criteria")
	assert.True(t, ok)
	_, ok = base.Lookup(sample.TaskNER, "robustness", "custom_criteria")
	assert.False(t, ok, "clone registration must not leak into the shared catalog")
}

func TestInvarianceClassification(t *testing.T) {
	s := newRunSample(t, sample.TaskTextClassification,
		sample.LabelOutput("positive"), sample.LabelOutput("positive"))
	pass, err := Invariance(s, Config{})
	require.NoError(t, err)
	assert.True(t, pass)

	s2 := newRunSample(t, sample.TaskTextClassification,
		sample.LabelOutput("positive"), sample.LabelOutput("negative"))
	pass, err = Invariance(s2, Config{})
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestInvarianceNERRealignsOffsets(t *testing.T) {
	// Expected (original-run) entities in original coordinates; the
	// perturbation rewrote "USA" to "United States" (+10 chars).
	s := sample.New(sample.TaskNER, "robustness", "american_to_british", 0, "Bob visited USA today")
	require.NoError(t, s.MarkGenerated("Bob visited United States today", []sample.Transformation{{
		OriginalSpan: sample.Span{Start: 12, End: 15, Word: "USA"},
		NewSpan:      sample.Span{Start: 12, End: 25, Word: "United States"},
	}}))
	s.ExpectedOutput = sample.EntitiesOutput(
		sample.NERPrediction{Label: "PER", Span: sample.Span{Start: 0, End: 3, Word: "Bob"}},
		sample.NERPrediction{Label: "LOC", Span: sample.Span{Start: 12, End: 15, Word: "USA"}},
	)
	require.NoError(t, s.MarkRun(sample.EntitiesOutput(
		sample.NERPrediction{Label: "PER", Span: sample.Span{Start: 0, End: 3, Word: "Bob"}},
		sample.NERPrediction{Label: "LOC", Span: sample.Span{Start: 12, End: 25, Word: "United States"}},
	)))

	pass, err := Invariance(s, Config{})
	require.NoError(t, err)
	assert.True(t, pass)

	// Strict span matching also holds because alignment moved the
	// expected span onto the replacement.
	pass, err = Invariance(s, Config{Params: map[string]any{"strict_spans": true}})
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestInvarianceNERLabelDrift(t *testing.T) {
	s := newRunSample(t, sample.TaskNER,
		sample.EntitiesOutput(sample.NERPrediction{Label: "PER", Span: sample.Span{Start: 0, End: 4, Word: "John"}}),
		sample.EntitiesOutput(sample.NERPrediction{Label: "ORG", Span: sample.Span{Start: 0, End: 4, Word: "JOHN"}}),
	)
	pass, err := Invariance(s, Config{})
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestInvarianceTextThreshold(t *testing.T) {
	s := newRunSample(t, sample.TaskQuestionAnswering,
		sample.TextOutput("William Shakespeare wrote Hamlet"),
		sample.TextOutput("Shakespeare wrote Hamlet"))

	// Three shared tokens out of 3 and 4 give F1 ~0.86, above the
	// default tolerance.
	pass, err := Invariance(s, Config{})
	require.NoError(t, err)
	assert.True(t, pass)

	// A strict threshold fails the same pair.
	pass, err = Invariance(s, Config{Threshold: 0.99})
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestInvarianceShapeMismatch(t *testing.T) {
	s := newRunSample(t, sample.TaskNER,
		sample.EntitiesOutput(sample.NERPrediction{Label: "PER", Span: sample.Span{Start: 0, End: 4, Word: "John"}}),
		sample.TextOutput("not a ner output"))
	_, err := Invariance(s, Config{})
	assert.Error(t, err)
}

func TestTokenF1(t *testing.T) {
	assert.Equal(t, 1.0, TokenF1("Paris", "paris."))
	assert.Equal(t, 0.0, TokenF1("Paris", "London"))
	assert.Equal(t, 1.0, TokenF1("", ""))
	// 3 shared tokens: precision 1.0, recall 0.75 -> F1 ~ 0.857.
	assert.InDelta(t, 0.857, TokenF1("the capital of France", "capital of France"), 0.001)
}

func TestExactMatch(t *testing.T) {
	s := newRunSample(t, sample.TaskQuestionAnswering,
		sample.TextOutput("William Shakespeare"), sample.TextOutput("william shakespeare."))
	pass, err := ExactMatch(s, Config{})
	require.NoError(t, err)
	assert.True(t, pass)

	s2 := newRunSample(t, sample.TaskQuestionAnswering,
		sample.TextOutput("William Shakespeare"), sample.TextOutput("Francis Bacon"))
	pass, err = ExactMatch(s2, Config{})
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestSpanF1(t *testing.T) {
	gold := sample.NEROutput{Predictions: []sample.NERPrediction{
		{Label: "PER", Span: sample.Span{Start: 0, End: 4}},
		{Label: "LOC", Span: sample.Span{Start: 14, End: 20}},
	}}
	pred := sample.NEROutput{Predictions: []sample.NERPrediction{
		{Label: "PER", Span: sample.Span{Start: 0, End: 4}},
	}}
	// 1 hit, precision 1.0, recall 0.5 -> F1 = 2/3.
	assert.InDelta(t, 0.6667, SpanF1(gold, pred), 0.001)
	assert.Equal(t, 1.0, SpanF1(gold, gold))
	assert.Equal(t, 1.0, SpanF1(sample.NEROutput{}, sample.NEROutput{}))
}

func TestF1MatchNER(t *testing.T) {
	s := newRunSample(t, sample.TaskNER,
		sample.EntitiesOutput(
			sample.NERPrediction{Label: "PER", Span: sample.Span{Start: 0, End: 4, Word: "John"}},
			sample.NERPrediction{Label: "LOC", Span: sample.Span{Start: 14, End: 20, Word: "Berlin"}},
		),
		sample.EntitiesOutput(
			sample.NERPrediction{Label: "PER", Span: sample.Span{Start: 0, End: 4, Word: "JOHN"}},
		))

	pass, err := F1Match(s, Config{Threshold: 0.5})
	require.NoError(t, err)
	assert.True(t, pass)

	pass, err = F1Match(s, Config{Threshold: 0.9})
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestMinCount(t *testing.T) {
	s := sample.New(sample.TaskTextClassification, "representation", "min_label_representation_count", 0, "")
	s.Metadata = map[string]any{
		"label_counts": map[string]int{"positive": 10, "negative": 3},
	}
	require.NoError(t, s.MarkGenerated("", nil))
	require.NoError(t, s.MarkRun(sample.Output{}))

	eval := MinCount("label_counts")

	pass, err := eval(s, Config{Threshold: 3})
	require.NoError(t, err)
	assert.True(t, pass)

	pass, err = eval(s, Config{Threshold: 5})
	require.NoError(t, err)
	assert.False(t, pass)

	_, err = eval(s, Config{})
	require.NoError(t, err)
}

func TestMinCountMissingMetadata(t *testing.T) {
	s := sample.New(sample.TaskTextClassification, "representation", "min_label_representation_count", 0, "")
	require.NoError(t, s.MarkGenerated("", nil))
	require.NoError(t, s.MarkRun(sample.Output{}))

	_, err := MinCount("label_counts")(s, Config{})
	assert.Error(t, err)
}

func TestNewCEL(t *testing.T) {
	eval, err := NewCEL(`actual == expected && !actual.matches('(?i)as an ai')`)
	require.NoError(t, err)

	s := newRunSample(t, sample.TaskQuestionAnswering,
		sample.TextOutput("Paris"), sample.TextOutput("Paris"))
	pass, err := eval(s, Config{})
	require.NoError(t, err)
	assert.True(t, pass)

	s2 := newRunSample(t, sample.TaskQuestionAnswering,
		sample.TextOutput("Paris"), sample.TextOutput("As an AI, I cannot say"))
	pass, err = eval(s2, Config{})
	require.NoError(t, err)
	assert.False(t, pass)
}

func TestNewCELCompileErrors(t *testing.T) {
	_, err := NewCEL(`actual ==`)
	assert.Error(t, err)

	// Non-bool result is rejected at compile time.
	_, err = NewCEL(`size(actual)`)
	assert.Error(t, err)
}
