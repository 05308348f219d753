package evaluate

import (
	"strings"

	"github.com/techthiyanes/langtest/sample"
)

// ExactMatch passes when the actual output reproduces the dataset label
// exactly: identical entity label sequence for NER, identical class for
// classification, and case/punctuation-normalized string equality for
// free-text tasks.
func ExactMatch(s *sample.Sample, cfg Config) (bool, error) {
	expected, actual := s.ExpectedOutput, s.ActualOutput

	switch {
	case expected.NER != nil:
		if actual.NER == nil {
			return false, nil
		}
		aligned := sample.AlignOutput(*expected.NER, s.Transformations)
		return strictSpansEqual(aligned, *actual.NER), nil

	case expected.Classification != nil:
		return actual.Classification != nil &&
			expected.Classification.Label == actual.Classification.Label, nil

	default:
		return normalizeText(expected.Text) == normalizeText(actual.Text), nil
	}
}

// F1Match passes when the per-sample F1 against the dataset label
// reaches the configured threshold: span-level F1 for NER, token-level
// F1 for free-text tasks, exact equality for classification (where
// per-sample F1 degenerates to 0 or 1).
func F1Match(s *sample.Sample, cfg Config) (bool, error) {
	expected, actual := s.ExpectedOutput, s.ActualOutput
	threshold := cfg.threshold(defaultTextTolerance)

	switch {
	case expected.NER != nil:
		if actual.NER == nil {
			return false, nil
		}
		aligned := sample.AlignOutput(*expected.NER, s.Transformations)
		return SpanF1(aligned, *actual.NER) >= threshold, nil

	case expected.Classification != nil:
		return actual.Classification != nil &&
			expected.Classification.Label == actual.Classification.Label, nil

	default:
		score, err := similarity(cfg, expected.Text, actual.Text)
		if err != nil {
			return false, err
		}
		return score >= threshold, nil
	}
}

// SpanF1 computes entity-level F1 between two NER outputs. A predicted
// entity counts as a hit when its label and start offset both match an
// unconsumed expected entity.
func SpanF1(expected, actual sample.NEROutput) float64 {
	exp := expected.Sorted()
	act := actual.Sorted()
	if len(exp) == 0 && len(act) == 0 {
		return 1.0
	}
	if len(exp) == 0 || len(act) == 0 {
		return 0.0
	}

	used := make([]bool, len(exp))
	hits := 0
	for _, pred := range act {
		for i, gold := range exp {
			if !used[i] && gold.Label == pred.Label && gold.Span.Start == pred.Span.Start {
				used[i] = true
				hits++
				break
			}
		}
	}
	if hits == 0 {
		return 0.0
	}
	precision := float64(hits) / float64(len(act))
	recall := float64(hits) / float64(len(exp))
	return 2 * precision * recall / (precision + recall)
}

func normalizeText(text string) string {
	return strings.Join(normalizeTokens(text), " ")
}
