package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignSpansNoTransformations(t *testing.T) {
	spans := []Span{{Start: 0, End: 4, Word: "John"}}
	assert.Equal(t, spans, AlignSpans(spans, nil))
}

func TestAlignSpansShiftAfterRewrite(t *testing.T) {
	// "the USA" -> "the United States": rewrite at [4:7] grows by 10.
	tr := []Transformation{{
		OriginalSpan: Span{Start: 4, End: 7, Word: "USA"},
		NewSpan:      Span{Start: 4, End: 17, Word: "United States"},
	}}

	// Span after the rewrite shifts right by 10.
	after := AlignSpans([]Span{{Start: 8, End: 13, Word: "today"}}, tr)
	assert.Equal(t, Span{Start: 18, End: 23, Word: "today"}, after[0])

	// Span before the rewrite is untouched.
	before := AlignSpans([]Span{{Start: 0, End: 3, Word: "the"}}, tr)
	assert.Equal(t, Span{Start: 0, End: 3, Word: "the"}, before[0])
}

func TestAlignSpansExactRewriteAdoptsNewSpan(t *testing.T) {
	tr := []Transformation{{
		OriginalSpan: Span{Start: 14, End: 20, Word: "Berlin"},
		NewSpan:      Span{Start: 14, End: 19, Word: "Paris"},
	}}

	got := AlignSpans([]Span{{Start: 14, End: 20, Word: "Berlin"}}, tr)
	assert.Equal(t, Span{Start: 14, End: 19, Word: "Paris"}, got[0])
}

func TestAlignSpansIgnoredInsertionOnlyShifts(t *testing.T) {
	// Trailing punctuation added at the end: ignore=true, nothing to realign
	// for spans inside the text.
	tr := []Transformation{{
		OriginalSpan: Span{Start: 20, End: 20, Word: ""},
		NewSpan:      Span{Start: 20, End: 21, Word: "!"},
		Ignore:       true,
	}}

	got := AlignSpans([]Span{{Start: 14, End: 20, Word: "Berlin"}}, tr)
	assert.Equal(t, Span{Start: 14, End: 20, Word: "Berlin"}, got[0])
}

func TestAlignSpansLeadingContextShiftsEverything(t *testing.T) {
	// "Attention please, " prepended: 18 characters inserted at offset 0.
	tr := []Transformation{{
		OriginalSpan: Span{Start: 0, End: 0, Word: ""},
		NewSpan:      Span{Start: 0, End: 18, Word: "Attention please, "},
		Ignore:       true,
	}}

	got := AlignSpans([]Span{{Start: 0, End: 4, Word: "John"}, {Start: 14, End: 20, Word: "Berlin"}}, tr)
	assert.Equal(t, Span{Start: 18, End: 22, Word: "John"}, got[0])
	assert.Equal(t, Span{Start: 32, End: 38, Word: "Berlin"}, got[1])
}

func TestAlignOutput(t *testing.T) {
	out := NEROutput{Predictions: []NERPrediction{
		{Label: "PER", Span: Span{Start: 0, End: 4, Word: "John"}},
		{Label: "LOC", Span: Span{Start: 14, End: 20, Word: "Berlin"}},
	}}
	tr := []Transformation{{
		OriginalSpan: Span{Start: 0, End: 4, Word: "John"},
		NewSpan:      Span{Start: 0, End: 7, Word: "Johnnie"},
	}}

	aligned := AlignOutput(out, tr)
	assert.Equal(t, Span{Start: 0, End: 7, Word: "Johnnie"}, aligned.Predictions[0].Span)
	assert.Equal(t, "PER", aligned.Predictions[0].Label)
	// Second entity shifted by +3.
	assert.Equal(t, Span{Start: 17, End: 23, Word: "Berlin"}, aligned.Predictions[1].Span)
}
