package sample

import (
	"fmt"
	"sort"
	"strings"
)

// Span marks a contiguous character range in an input text.
type Span struct {
	// Start is the inclusive character offset where the span begins.
	Start int `json:"start" yaml:"start"`

	// End is the exclusive character offset where the span ends.
	End int `json:"end" yaml:"end"`

	// Word is the surface form covered by the span.
	Word string `json:"word" yaml:"word"`
}

// Shift returns a copy of the span moved by delta characters.
func (s Span) Shift(delta int) Span {
	return Span{Start: s.Start + delta, End: s.End + delta, Word: s.Word}
}

// String renders the span for diagnostics.
func (s Span) String() string {
	return fmt.Sprintf("%q[%d:%d]", s.Word, s.Start, s.End)
}

// Transformation records how a perturbation rewrote one region of the
// original text. Evaluators use the original/new span pair to realign
// expected entity offsets before comparing label sequences.
type Transformation struct {
	// OriginalSpan is the replaced region in the original text.
	OriginalSpan Span `json:"original_span" yaml:"original_span"`

	// NewSpan is the replacement region in the perturbed text.
	NewSpan Span `json:"new_span" yaml:"new_span"`

	// Ignore marks transformations that add or remove filler (context
	// sentences, trailing punctuation) rather than rewriting an entity.
	// Ignored regions are skipped during alignment instead of matched.
	Ignore bool `json:"ignore" yaml:"ignore"`
}

// NERPrediction is a single labeled entity in a NER output.
type NERPrediction struct {
	// Label is the entity type (e.g. "PER", "LOC", "ORG").
	Label string `json:"label" yaml:"label"`

	// Span locates the entity in the text the prediction was made on.
	Span Span `json:"span" yaml:"span"`
}

// NEROutput is the task output for span labeling: an ordered set of
// entity predictions.
type NEROutput struct {
	Predictions []NERPrediction `json:"predictions" yaml:"predictions"`
}

// Sorted returns the predictions ordered by start offset. The receiver
// is not modified.
func (o NEROutput) Sorted() []NERPrediction {
	out := append([]NERPrediction(nil), o.Predictions...)
	sort.Slice(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return out
}

// Labels returns the label sequence in offset order.
func (o NEROutput) Labels() []string {
	sorted := o.Sorted()
	labels := make([]string, len(sorted))
	for i, p := range sorted {
		labels[i] = p.Label
	}
	return labels
}

// String renders the output as "LABEL(word) ..." for diagnostics.
func (o NEROutput) String() string {
	parts := make([]string, 0, len(o.Predictions))
	for _, p := range o.Sorted() {
		parts = append(parts, fmt.Sprintf("%s(%s)", p.Label, p.Span.Word))
	}
	return strings.Join(parts, " ")
}

// ClassificationOutput is the task output for sequence classification.
type ClassificationOutput struct {
	// Label is the predicted class.
	Label string `json:"label" yaml:"label"`

	// Score is the model confidence, when the backend reports one.
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// Output is the task-polymorphic result of a model invocation or a
// dataset label. Exactly one field is set depending on the task.
type Output struct {
	// NER holds entity predictions for span-labeling tasks.
	NER *NEROutput `json:"ner,omitempty" yaml:"ner,omitempty"`

	// Classification holds the predicted label for classification tasks.
	Classification *ClassificationOutput `json:"classification,omitempty" yaml:"classification,omitempty"`

	// Text holds free-text output for QA, summarization and generation.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// TextOutput wraps a free-text result.
func TextOutput(s string) Output {
	return Output{Text: s}
}

// LabelOutput wraps a classification label.
func LabelOutput(label string) Output {
	return Output{Classification: &ClassificationOutput{Label: label}}
}

// EntitiesOutput wraps NER predictions.
func EntitiesOutput(preds ...NERPrediction) Output {
	return Output{NER: &NEROutput{Predictions: preds}}
}

// IsZero reports whether no output has been recorded.
func (o Output) IsZero() bool {
	return o.NER == nil && o.Classification == nil && o.Text == ""
}

// String renders whichever variant is populated.
func (o Output) String() string {
	switch {
	case o.NER != nil:
		return o.NER.String()
	case o.Classification != nil:
		return o.Classification.Label
	default:
		return o.Text
	}
}
