// Package perturb implements the test-generation side of the harness: a
// registry of perturbation functions keyed by (task, category, test
// name) and the robustness and bias catalogs that populate it.
//
// Perturbation functions never mutate their input; they return the
// perturbed text together with the span transformations needed to
// realign entity offsets for span-labeling tasks. All randomness flows
// through an explicit *rand.Rand so generation is reproducible for a
// given seed.
package perturb

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/techthiyanes/langtest/sample"
)

// Input is the material a perturbation works on.
type Input struct {
	// Text is the original input text.
	Text string

	// Task selects span-tracking behavior for span-labeling tasks.
	Task sample.Task

	// Entities are the gold entity spans, needed by label-aware
	// perturbations such as swap_entities. Nil for sequence tasks.
	Entities []sample.NERPrediction
}

// Config carries the per-test generation parameters from the harness
// configuration.
type Config struct {
	// Prob is the probability of applying the perturbation to each
	// eligible token or sample. Zero means the configured default of 1.0.
	Prob float64

	// Params holds test-specific parameters such as punctuation
	// whitelists, context phrases or entity terminology.
	Params map[string]any
}

// prob returns the effective application probability.
func (c Config) prob() float64 {
	if c.Prob <= 0 {
		return 1.0
	}
	return c.Prob
}

// Result is a perturbation outcome. Text equals the input text when the
// perturbation could not apply; that is a valid result, not an error.
type Result struct {
	Text            string
	Transformations []sample.Transformation
}

// unchanged is the Result for inputs a perturbation cannot touch.
func unchanged(in Input) Result {
	return Result{Text: in.Text}
}

// Func generates a perturbed variant of the input. Implementations must
// be pure: same rng state, input and config produce the same result.
type Func func(rng *rand.Rand, in Input, cfg Config) (Result, error)

// Key identifies one registered perturbation.
type Key struct {
	Task     sample.Task
	Category string
	Test     string
}

// String renders the key for error messages.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Task, k.Category, k.Test)
}

// Registry maps (task, category, test) keys to perturbation functions.
// The zero value is not usable; construct with NewRegistry or use
// Default.
type Registry struct {
	mu    sync.RWMutex
	funcs map[Key]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[Key]Func)}
}

// Register binds fn to (task, category, test). Registering the same key
// twice is a programming error and returns an error so duplicate test
// definitions surface at startup.
func (r *Registry) Register(task sample.Task, category, test string, fn Func) error {
	key := Key{Task: task, Category: category, Test: test}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[key]; exists {
		return fmt.Errorf("perturbation already registered: %s", key)
	}
	r.funcs[key] = fn
	return nil
}

// registerAll binds fn for every listed task, panicking on duplicates.
// Used by the built-in catalog where duplicates mean a bad build.
func (r *Registry) registerAll(tasks []sample.Task, category, test string, fn Func) {
	for _, task := range tasks {
		if err := r.Register(task, category, test, fn); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the perturbation for the key.
func (r *Registry) Lookup(task sample.Task, category, test string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[Key{Task: task, Category: category, Test: test}]
	return fn, ok
}

// Clone returns an independent copy of the registry. Harnesses clone
// the default catalog before registering run-specific custom tests so
// concurrent runs never share mutable registry state.
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

// Default returns the registry populated with the built-in robustness,
// bias, accuracy, fairness and representation catalogs.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		registerRobustness(defaultRegistry)
		registerBias(defaultRegistry)
		registerIdentityCategories(defaultRegistry)
	})
	return defaultRegistry
}

// NewRand derives a deterministic RNG for one (test, record) pair. The
// derivation keys on the test name and record index rather than call
// order, so generation is reproducible regardless of worker scheduling.
func NewRand(seed int64, test string, recordIndex int) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(test))
	fmt.Fprintf(h, "/%d", recordIndex)
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}

// Identity returns the input untouched. Accuracy and representation
// tests evaluate the model on the reference inputs themselves.
func Identity(_ *rand.Rand, in Input, _ Config) (Result, error) {
	return unchanged(in), nil
}

// registerIdentityCategories wires the identity perturbation for the
// categories whose tests do not rewrite inputs.
func registerIdentityCategories(r *Registry) {
	seqTasks := []sample.Task{
		sample.TaskNER,
		sample.TaskTextClassification,
		sample.TaskQuestionAnswering,
		sample.TaskSummarization,
	}
	for _, test := range []string{"min_exact_match_score", "min_f1_score"} {
		r.registerAll(seqTasks, "accuracy", test, Identity)
	}
	for _, test := range []string{"min_gender_representation_count", "min_label_representation_count"} {
		r.registerAll(seqTasks, "representation", test, Identity)
	}
	for _, test := range []string{"min_gender_f1_score"} {
		r.registerAll(seqTasks, "fairness", test, Identity)
	}
}

// token is a whitespace-delimited word with its character offsets.
type token struct {
	text       string
	start, end int
}

// tokenize splits on spaces, preserving offsets. Empty parts from runs
// of spaces yield no tokens; rebuilders copy the text between token
// boundaries verbatim so those runs survive a perturbation untouched.
func tokenize(text string) []token {
	var tokens []token
	offset := 0
	for _, part := range strings.Split(text, " ") {
		if part != "" {
			tokens = append(tokens, token{text: part, start: offset, end: offset + len(part)})
		}
		offset += len(part) + 1
	}
	return tokens
}

// wordMapper rewrites individual tokens. It returns the replacement and
// whether the token matched.
type wordMapper func(word string) (string, bool)

// replaceWords applies mapper to each token with probability prob,
// rebuilding the text and recording a transformation per rewritten
// token. Offsets in the recorded transformations account for earlier
// rewrites in the same pass.
func replaceWords(rng *rand.Rand, text string, prob float64, mapper wordMapper) Result {
	tokens := tokenize(text)
	var b strings.Builder
	var transformations []sample.Transformation

	delta := 0
	last := 0
	for _, tok := range tokens {
		b.WriteString(text[last:tok.start])
		replacement, ok := mapper(tok.text)
		if ok && replacement != tok.text && rng.Float64() < prob {
			b.WriteString(replacement)
			transformations = append(transformations, sample.Transformation{
				OriginalSpan: sample.Span{Start: tok.start, End: tok.end, Word: tok.text},
				NewSpan: sample.Span{
					Start: tok.start + delta,
					End:   tok.start + delta + len(replacement),
					Word:  replacement,
				},
			})
			delta += len(replacement) - len(tok.text)
		} else {
			b.WriteString(tok.text)
		}
		last = tok.end
	}
	b.WriteString(text[last:])
	return Result{Text: b.String(), Transformations: transformations}
}

// mapWithCasePreserved looks word up in mapping after lowercasing and
// stripping one trailing punctuation mark, restoring both on the
// replacement. This keeps dictionary-based perturbations effective on
// sentence-cased and punctuated tokens.
func mapWithCasePreserved(mapping map[string]string) wordMapper {
	return func(word string) (string, bool) {
		core := word
		suffix := ""
		if len(core) > 0 && strings.ContainsRune(".,!?;:", rune(core[len(core)-1])) {
			suffix = core[len(core)-1:]
			core = core[:len(core)-1]
		}
		if core == "" {
			return "", false
		}
		replacement, ok := mapping[strings.ToLower(core)]
		if !ok {
			return "", false
		}
		if isTitleCase(core) {
			replacement = titleWord(replacement)
		} else if core == strings.ToUpper(core) && len(core) > 1 {
			replacement = strings.ToUpper(replacement)
		}
		return replacement + suffix, true
	}
}

func isTitleCase(word string) bool {
	if word == "" {
		return false
	}
	first := word[:1]
	return first == strings.ToUpper(first) && first != strings.ToLower(first)
}

func titleWord(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
