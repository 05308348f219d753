// Package evaluate implements the pass/fail side of the harness: a
// registry of comparator functions keyed by (task, category, test
// name) covering the structural, similarity-threshold and
// behavioral-invariance families, plus CEL-based custom criteria.
//
// Evaluators are pure functions of the sample's expected output, actual
// output, perturbed input and the per-test configuration. They hold no
// hidden state, which keeps them independently testable.
package evaluate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/techthiyanes/langtest/sample"
)

// Config carries the per-test evaluation parameters.
type Config struct {
	// Threshold is the minimum similarity (or count, for representation
	// tests) required to pass. Zero means the evaluator's default.
	Threshold float64

	// Params holds test-specific parameters.
	Params map[string]any
}

// threshold returns the effective threshold, falling back to def.
func (c Config) threshold(def float64) float64 {
	if c.Threshold <= 0 {
		return def
	}
	return c.Threshold
}

// Func decides pass/fail for an evaluated sample. Implementations must
// not mutate the sample.
type Func func(s *sample.Sample, cfg Config) (bool, error)

// Key identifies one registered evaluator.
type Key struct {
	Task     sample.Task
	Category string
	Test     string
}

// String renders the key for error messages.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Task, k.Category, k.Test)
}

// Registry maps (task, category, test) keys to evaluators.
type Registry struct {
	mu    sync.RWMutex
	funcs map[Key]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[Key]Func)}
}

// Register binds fn to (task, category, test), rejecting duplicates.
func (r *Registry) Register(task sample.Task, category, test string, fn Func) error {
	key := Key{Task: task, Category: category, Test: test}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[key]; exists {
		return fmt.Errorf("evaluator already registered: %s", key)
	}
	r.funcs[key] = fn
	return nil
}

func (r *Registry) registerAll(tasks []sample.Task, category, test string, fn Func) {
	for _, task := range tasks {
		if err := r.Register(task, category, test, fn); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the evaluator for the key.
func (r *Registry) Lookup(task sample.Task, category, test string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[Key{Task: task, Category: category, Test: test}]
	return fn, ok
}

// Clone returns an independent copy for run-specific registration.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewRegistry()
	for key, fn := range r.funcs {
		out.funcs[key] = fn
	}
	return out
}

// Tests returns the registered test names for a task and category,
// sorted for stable iteration.
func (r *Registry) Tests(task sample.Task, category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for key := range r.funcs {
		if key.Task == task && key.Category == category {
			names = append(names, key.Test)
		}
	}
	sort.Strings(names)
	return names
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry populated with evaluators for the
// built-in catalog. The robustness and bias tests share the invariance
// family; accuracy and fairness compare against dataset labels;
// representation checks dataset statistics.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerInvariance(defaultRegistry)
		registerAccuracy(defaultRegistry)
		registerRepresentation(defaultRegistry)
	})
	return defaultRegistry
}

// sequenceTasks mirrors the perturbation catalog's task coverage.
var sequenceTasks = []sample.Task{
	sample.TaskNER,
	sample.TaskTextClassification,
	sample.TaskQuestionAnswering,
	sample.TaskSummarization,
	sample.TaskTextGeneration,
}

// robustnessTests lists the text-level robustness catalog; every entry
// shares the invariance comparator for its task.
var robustnessTests = []string{
	"uppercase", "lowercase", "titlecase",
	"add_punctuation", "strip_punctuation",
	"add_typo", "add_context", "add_contraction",
	"american_to_british", "british_to_american",
	"number_to_word", "add_ocr_typo", "dyslexia_word_swap",
	"add_abbreviation", "add_speech_to_text_typo", "add_slangs",
	"add_whitespace",
}

var biasTests = []string{
	"replace_to_male_pronouns", "replace_to_female_pronouns",
	"replace_to_neutral_pronouns",
	"replace_to_high_income_country", "replace_to_low_income_country",
	"replace_to_interracial_names",
}

func registerInvariance(r *Registry) {
	for _, test := range robustnessTests {
		r.registerAll(sequenceTasks, "robustness", test, Invariance)
	}
	r.registerAll([]sample.Task{sample.TaskNER}, "robustness", "swap_entities", Invariance)
	for _, test := range biasTests {
		r.registerAll(sequenceTasks, "bias", test, Invariance)
	}
}

func registerAccuracy(r *Registry) {
	seqTasks := []sample.Task{
		sample.TaskNER,
		sample.TaskTextClassification,
		sample.TaskQuestionAnswering,
		sample.TaskSummarization,
	}
	r.registerAll(seqTasks, "accuracy", "min_exact_match_score", ExactMatch)
	r.registerAll(seqTasks, "accuracy", "min_f1_score", F1Match)
	r.registerAll(seqTasks, "fairness", "min_gender_f1_score", F1Match)
}

func registerRepresentation(r *Registry) {
	seqTasks := []sample.Task{
		sample.TaskNER,
		sample.TaskTextClassification,
		sample.TaskQuestionAnswering,
		sample.TaskSummarization,
	}
	r.registerAll(seqTasks, "representation", "min_gender_representation_count", MinCount("gender_counts"))
	r.registerAll(seqTasks, "representation", "min_label_representation_count", MinCount("label_counts"))
}
