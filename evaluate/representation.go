package evaluate

import (
	"fmt"

	"github.com/techthiyanes/langtest/sample"
)

// MinCount builds a representation evaluator over a counts map stored
// in the sample's metadata under metaKey. The test passes when every
// group's count reaches the configured minimum.
//
// Representation samples are dataset-statistics checks: the counts are
// computed at generation time over the whole reference dataset and the
// model is never invoked.
func MinCount(metaKey string) Func {
	return func(s *sample.Sample, cfg Config) (bool, error) {
		raw, ok := s.Metadata[metaKey]
		if !ok {
			return false, fmt.Errorf("sample %s: metadata %q missing", s.ID, metaKey)
		}
		counts, err := countsFromMetadata(raw)
		if err != nil {
			return false, fmt.Errorf("sample %s: %w", s.ID, err)
		}

		min := int(cfg.threshold(1))
		for _, n := range counts {
			if n < min {
				return false, nil
			}
		}
		return len(counts) > 0, nil
	}
}

// countsFromMetadata accepts the map shapes metadata can arrive in:
// the native map[string]int, or map[string]any after a JSON round trip.
func countsFromMetadata(raw any) (map[string]int, error) {
	switch v := raw.(type) {
	case map[string]int:
		return v, nil
	case map[string]any:
		out := make(map[string]int, len(v))
		for k, n := range v {
			switch num := n.(type) {
			case int:
				out[k] = num
			case float64:
				out[k] = int(num)
			default:
				return nil, fmt.Errorf("count %q has unsupported type %T", k, n)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("counts metadata has unsupported type %T", raw)
	}
}
