package langtest

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/techthiyanes/langtest/evaluate"
	"github.com/techthiyanes/langtest/perturb"
	"github.com/techthiyanes/langtest/sample"
)

// defaultMinPassRate applies to tests whose configuration does not set
// one, directly or through defaults.
const defaultMinPassRate = 0.65

// Config is the test-suite configuration, usually loaded from YAML:
//
//	tests:
//	  defaults:
//	    min_pass_rate: 0.75
//	    seed: 42
//	  robustness:
//	    uppercase: {}
//	    add_typo:
//	      prob: 0.5
//	      min_pass_rate: 0.6
//	  accuracy:
//	    min_f1_score:
//	      threshold: 0.7
type Config struct {
	Tests TestsConfig `yaml:"tests"`
}

// TestsConfig holds the defaults block plus one map of tests per
// category.
type TestsConfig struct {
	// Defaults apply to every test that does not override them.
	Defaults Defaults

	// Categories maps category name to its enabled tests.
	Categories map[string]map[string]TestConfig
}

// Defaults is the `tests.defaults` block.
type Defaults struct {
	// MinPassRate is the fallback minimum pass rate.
	MinPassRate float64 `yaml:"min_pass_rate"`

	// Seed seeds all perturbation randomness. Runs with equal seeds and
	// configs produce identical test cases.
	Seed int64 `yaml:"seed"`
}

// TestConfig configures one enabled test.
type TestConfig struct {
	// MinPassRate overrides the default minimum pass rate.
	MinPassRate *float64 `yaml:"min_pass_rate"`

	// Threshold is the evaluator threshold for similarity and F1 tests.
	Threshold float64 `yaml:"threshold"`

	// Prob is the per-token application probability for perturbations
	// that support it. Zero means the perturbation's default.
	Prob float64 `yaml:"prob"`

	// Expression holds a CEL criteria expression. A test with an
	// expression is a custom test: it uses the identity perturbation
	// and the compiled expression as its evaluator.
	Expression string `yaml:"expression"`

	// Params carries any remaining test-specific keys.
	Params map[string]any `yaml:",inline"`
}

// UnmarshalYAML splits the `defaults` block from category blocks.
func (tc *TestsConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]yaml.Node
	if err := node.Decode(&raw); err != nil {
		return err
	}

	tc.Categories = make(map[string]map[string]TestConfig)
	for name, child := range raw {
		if name == "defaults" {
			if err := child.Decode(&tc.Defaults); err != nil {
				return fmt.Errorf("decode defaults: %w", err)
			}
			continue
		}

		var tests map[string]TestConfig
		if child.Kind != yaml.ScalarNode || child.Value != "" {
			if err := child.Decode(&tests); err != nil {
				return fmt.Errorf("decode category %s: %w", name, err)
			}
		}
		if tests == nil {
			tests = map[string]TestConfig{}
		}
		tc.Categories[name] = tests
	}
	return nil
}

// LoadConfig reads and parses a YAML test-suite configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, NewConfigurationError("LoadConfig", fmt.Errorf("read %s: %w", path, err))
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML test-suite configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, NewConfigurationError("ParseConfig", err)
	}
	if len(cfg.Tests.Categories) == 0 {
		return Config{}, NewConfigurationError("ParseConfig",
			fmt.Errorf("%w: no test categories enabled", ErrInvalidConfig))
	}
	return cfg, nil
}

// TestSpec is one enabled test resolved against the defaults, ready for
// registry lookup and execution.
type TestSpec struct {
	// Task is the run's task.
	Task sample.Task

	// Category and Name key the test in both registries.
	Category string
	Name     string

	// MinPassRate is the resolved minimum pass rate.
	MinPassRate float64

	// Perturb configures the test's perturbation.
	Perturb perturb.Config

	// Evaluate configures the test's evaluator.
	Evaluate evaluate.Config

	// Expression is the CEL criteria for custom tests, empty otherwise.
	Expression string

	// NeedsModel is false for tests judged from dataset statistics
	// alone; their samples skip the invocation stage.
	NeedsModel bool
}

// specs resolves the configured tests for a task. Order is stable so
// runs are reproducible.
func (c Config) specs(task sample.Task) []TestSpec {
	categories := sortedKeys(c.Tests.Categories)

	var specs []TestSpec
	for _, category := range categories {
		tests := c.Tests.Categories[category]
		for _, name := range sortedKeys(tests) {
			tc := tests[name]

			minRate := c.Tests.Defaults.MinPassRate
			if minRate == 0 {
				minRate = defaultMinPassRate
			}
			if tc.MinPassRate != nil {
				minRate = *tc.MinPassRate
			}

			specs = append(specs, TestSpec{
				Task:        task,
				Category:    category,
				Name:        name,
				MinPassRate: minRate,
				Perturb:     perturb.Config{Prob: tc.Prob, Params: tc.Params},
				Evaluate:    evaluate.Config{Threshold: tc.Threshold, Params: tc.Params},
				Expression:  tc.Expression,
				NeedsModel:  category != "representation",
			})
		}
	}
	return specs
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
