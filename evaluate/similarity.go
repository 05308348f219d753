package evaluate

import (
	"strings"
)

// Embedder scores semantic similarity between two texts in [0, 1].
// Implementations typically wrap an embedding model and return cosine
// similarity; the default token-overlap scorer is used when none is
// configured.
type Embedder interface {
	Similarity(a, b string) (float64, error)
}

// TokenF1 computes the harmonic mean of token precision and recall
// between two texts, the lexical-overlap score used as the default
// similarity measure for QA and summarization outputs. Comparison is
// case-insensitive with trailing punctuation stripped per token.
func TokenF1(expected, actual string) float64 {
	exp := normalizeTokens(expected)
	act := normalizeTokens(actual)
	if len(exp) == 0 && len(act) == 0 {
		return 1.0
	}
	if len(exp) == 0 || len(act) == 0 {
		return 0.0
	}

	counts := make(map[string]int, len(exp))
	for _, tok := range exp {
		counts[tok]++
	}
	overlap := 0
	for _, tok := range act {
		if counts[tok] > 0 {
			counts[tok]--
			overlap++
		}
	}
	if overlap == 0 {
		return 0.0
	}
	precision := float64(overlap) / float64(len(act))
	recall := float64(overlap) / float64(len(exp))
	return 2 * precision * recall / (precision + recall)
}

func normalizeTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimRight(f, ".,!?;:")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// similarity scores two texts with the configured embedder if present,
// falling back to token F1.
func similarity(cfg Config, a, b string) (float64, error) {
	if emb, ok := cfg.Params["embedder"].(Embedder); ok && emb != nil {
		return emb.Similarity(a, b)
	}
	return TokenF1(a, b), nil
}
