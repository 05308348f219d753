package evaluate

import (
	"fmt"

	"github.com/techthiyanes/langtest/sample"
)

// defaultTextTolerance is the minimum similarity for free-text
// invariance when no threshold is configured. Generative backends
// rarely reproduce output verbatim, so "unchanged within tolerance" is
// the default reading.
const defaultTextTolerance = 0.65

// Invariance is the behavioral-invariance comparator used by the
// robustness and bias catalogs: the sample's expected output is the
// model's output on the ORIGINAL input (captured during the run stage),
// and the test passes when the perturbed-input output is unchanged
// within tolerance.
//
// For NER the expected predictions live in original-text coordinates
// and are realigned through the sample's transformations before the
// label sequences are compared. For classification the labels must
// match exactly. For free-text tasks the similarity score must reach
// the configured threshold.
func Invariance(s *sample.Sample, cfg Config) (bool, error) {
	expected, actual := s.ExpectedOutput, s.ActualOutput
	if actual.IsZero() && !expected.IsZero() {
		return false, nil
	}

	switch {
	case expected.NER != nil:
		if actual.NER == nil {
			return false, fmt.Errorf("expected NER output, got %T shape", s.ActualOutput)
		}
		aligned := sample.AlignOutput(*expected.NER, s.Transformations)
		if strict, _ := cfg.Params["strict_spans"].(bool); strict {
			return strictSpansEqual(aligned, *actual.NER), nil
		}
		return labelSequencesEqual(aligned, *actual.NER), nil

	case expected.Classification != nil:
		if actual.Classification == nil {
			return false, fmt.Errorf("expected classification output, got text")
		}
		return expected.Classification.Label == actual.Classification.Label, nil

	default:
		score, err := similarity(cfg, expected.Text, actual.Text)
		if err != nil {
			return false, err
		}
		return score >= cfg.threshold(defaultTextTolerance), nil
	}
}

// labelSequencesEqual compares entity label sequences in offset order.
// Surface forms and raw offsets are not compared; the perturbation may
// have rewritten both. When the strict_spans parameter is set the
// realigned start offsets must also agree.
func labelSequencesEqual(expected, actual sample.NEROutput) bool {
	exp := expected.Sorted()
	act := actual.Sorted()
	if len(exp) != len(act) {
		return false
	}
	for i := range exp {
		if exp[i].Label != act[i].Label {
			return false
		}
	}
	return true
}

// strictSpansEqual additionally requires matching realigned offsets.
// Used by evaluators configured with strict_spans.
func strictSpansEqual(expected, actual sample.NEROutput) bool {
	exp := expected.Sorted()
	act := actual.Sorted()
	if len(exp) != len(act) {
		return false
	}
	for i := range exp {
		if exp[i].Label != act[i].Label || exp[i].Span.Start != act[i].Span.Start {
			return false
		}
	}
	return true
}
