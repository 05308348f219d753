package langtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techthiyanes/langtest/sample"
)

const testConfigYAML = `
tests:
  defaults:
    min_pass_rate: 0.75
    seed: 42
  robustness:
    uppercase: {}
    add_typo:
      prob: 0.5
      min_pass_rate: 0.6
    add_context:
      starting_context: ["Note:"]
  accuracy:
    min_f1_score:
      threshold: 0.7
  representation:
    min_label_representation_count:
      threshold: 10
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.75, cfg.Tests.Defaults.MinPassRate)
	assert.Equal(t, int64(42), cfg.Tests.Defaults.Seed)
	require.Len(t, cfg.Tests.Categories, 3)

	typo := cfg.Tests.Categories["robustness"]["add_typo"]
	assert.Equal(t, 0.5, typo.Prob)
	require.NotNil(t, typo.MinPassRate)
	assert.Equal(t, 0.6, *typo.MinPassRate)

	// Unmatched keys land in Params for the perturbation to read.
	ctxTest := cfg.Tests.Categories["robustness"]["add_context"]
	assert.Contains(t, ctxTest.Params, "starting_context")

	assert.Equal(t, 0.7, cfg.Tests.Categories["accuracy"]["min_f1_score"].Threshold)
}

func TestParseConfigRejectsEmpty(t *testing.T) {
	_, err := ParseConfig([]byte("tests: {}\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("tests: [not, a, map]\n"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Tests.Defaults.Seed)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSpecsResolveDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfigYAML))
	require.NoError(t, err)

	specs := cfg.specs(sample.TaskTextClassification)
	require.Len(t, specs, 5)

	byName := map[string]TestSpec{}
	for _, spec := range specs {
		byName[spec.Name] = spec
	}

	assert.Equal(t, 0.75, byName["uppercase"].MinPassRate)
	assert.Equal(t, 0.6, byName["add_typo"].MinPassRate)
	assert.Equal(t, 0.5, byName["add_typo"].Perturb.Prob)
	assert.Equal(t, 0.7, byName["min_f1_score"].Evaluate.Threshold)

	assert.True(t, byName["uppercase"].NeedsModel)
	assert.False(t, byName["min_label_representation_count"].NeedsModel)

	// Deterministic order: categories then tests, both sorted.
	assert.Equal(t, "min_f1_score", specs[0].Name)
	assert.Equal(t, "min_label_representation_count", specs[1].Name)
	assert.Equal(t, "add_context", specs[2].Name)
}
