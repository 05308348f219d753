package perturb

import (
	"math/rand"
	"strings"

	"github.com/techthiyanes/langtest/sample"
)

// sequenceTasks are the tasks the text-level robustness tests apply to.
var sequenceTasks = []sample.Task{
	sample.TaskNER,
	sample.TaskTextClassification,
	sample.TaskQuestionAnswering,
	sample.TaskSummarization,
	sample.TaskTextGeneration,
}

// registerRobustness wires the robustness catalog into the registry.
func registerRobustness(r *Registry) {
	r.registerAll(sequenceTasks, "robustness", "uppercase", caseTransform(strings.ToUpper))
	r.registerAll(sequenceTasks, "robustness", "lowercase", caseTransform(strings.ToLower))
	r.registerAll(sequenceTasks, "robustness", "titlecase", caseTransform(titleWord))
	r.registerAll(sequenceTasks, "robustness", "add_punctuation", AddPunctuation)
	r.registerAll(sequenceTasks, "robustness", "strip_punctuation", StripPunctuation)
	r.registerAll(sequenceTasks, "robustness", "add_typo", AddTypo)
	r.registerAll(sequenceTasks, "robustness", "add_context", AddContext)
	r.registerAll(sequenceTasks, "robustness", "add_contraction", AddContraction)
	r.registerAll(sequenceTasks, "robustness", "american_to_british", dictionaryTransform(americanToBritish))
	r.registerAll(sequenceTasks, "robustness", "british_to_american", dictionaryTransform(britishToAmerican))
	r.registerAll(sequenceTasks, "robustness", "number_to_word", dictionaryTransform(numberWords))
	r.registerAll(sequenceTasks, "robustness", "add_ocr_typo", dictionaryTransform(ocrTypoMap))
	r.registerAll(sequenceTasks, "robustness", "dyslexia_word_swap", dictionaryTransform(dyslexiaMap))
	r.registerAll(sequenceTasks, "robustness", "add_abbreviation", dictionaryTransform(abbreviationMap))
	r.registerAll(sequenceTasks, "robustness", "add_speech_to_text_typo", dictionaryTransform(speechToTextMap))
	r.registerAll(sequenceTasks, "robustness", "add_slangs", dictionaryTransform(slangMap))
	r.registerAll(sequenceTasks, "robustness", "add_whitespace", AddWhitespace)
	r.registerAll([]sample.Task{sample.TaskNER}, "robustness", "swap_entities", SwapEntities)
}

// caseTransform builds a per-word case perturbation. Case changes keep
// character offsets intact, so no transformations are recorded. Text
// between tokens, including runs of whitespace, passes through as is.
func caseTransform(apply func(string) string) Func {
	return func(rng *rand.Rand, in Input, cfg Config) (Result, error) {
		tokens := tokenize(in.Text)
		if len(tokens) == 0 {
			return unchanged(in), nil
		}
		var b strings.Builder
		last := 0
		for _, tok := range tokens {
			b.WriteString(in.Text[last:tok.start])
			if rng.Float64() < cfg.prob() {
				b.WriteString(apply(tok.text))
			} else {
				b.WriteString(tok.text)
			}
			last = tok.end
		}
		b.WriteString(in.Text[last:])
		return Result{Text: b.String()}, nil
	}
}

// dictionaryTransform builds a word-substitution perturbation from a
// lowercase lookup table, preserving casing and trailing punctuation.
func dictionaryTransform(mapping map[string]string) Func {
	return func(rng *rand.Rand, in Input, cfg Config) (Result, error) {
		return replaceWords(rng, in.Text, cfg.prob(), mapWithCasePreserved(mapping)), nil
	}
}

// AddPunctuation appends a random whitelist character when the text
// does not already end with one. The insertion is recorded as an
// ignored transformation so NER alignment skips it.
func AddPunctuation(rng *rand.Rand, in Input, cfg Config) (Result, error) {
	whitelist := stringsParam(cfg, "whitelist", punctuationWhitelist)
	if in.Text == "" || endsWithAny(in.Text, whitelist) || rng.Float64() >= cfg.prob() {
		return unchanged(in), nil
	}
	chosen := whitelist[rng.Intn(len(whitelist))]
	n := len(in.Text)
	return Result{
		Text: in.Text + chosen,
		Transformations: []sample.Transformation{{
			OriginalSpan: sample.Span{Start: n, End: n, Word: ""},
			NewSpan:      sample.Span{Start: n, End: n + len(chosen), Word: chosen},
			Ignore:       true,
		}},
	}, nil
}

// StripPunctuation removes a trailing whitelist character.
func StripPunctuation(rng *rand.Rand, in Input, cfg Config) (Result, error) {
	whitelist := stringsParam(cfg, "whitelist", punctuationWhitelist)
	if in.Text == "" || !endsWithAny(in.Text, whitelist) || rng.Float64() >= cfg.prob() {
		return unchanged(in), nil
	}
	n := len(in.Text)
	return Result{
		Text: in.Text[:n-1],
		Transformations: []sample.Transformation{{
			OriginalSpan: sample.Span{Start: n - 1, End: n, Word: in.Text[n-1:]},
			NewSpan:      sample.Span{Start: n - 1, End: n - 1, Word: ""},
			Ignore:       true,
		}},
	}, nil
}

// AddTypo introduces keyboard-adjacency typos. Each word of five or
// more letters is eligible; a random inner character is replaced with a
// QWERTY neighbor. Substitution keeps offsets stable so no
// transformations are needed.
func AddTypo(rng *rand.Rand, in Input, cfg Config) (Result, error) {
	tokens := tokenize(in.Text)
	if len(tokens) == 0 {
		return unchanged(in), nil
	}
	var out strings.Builder
	last := 0
	for _, tok := range tokens {
		out.WriteString(in.Text[last:tok.start])
		last = tok.end
		word := tok.text
		if len(word) >= 5 && rng.Float64() < cfg.prob() {
			idx := 1 + rng.Intn(len(word)-2)
			c := word[idx] | 0x20 // lowercase for lookup
			if neighbors, ok := keyboardNeighbors[c]; ok {
				b := []byte(word)
				b[idx] = neighbors[rng.Intn(len(neighbors))]
				word = string(b)
			}
		}
		out.WriteString(word)
	}
	out.WriteString(in.Text[last:])
	return Result{Text: out.String()}, nil
}

// AddContext attaches filler sentences before or after the input,
// recorded as ignored transformations. The strategy parameter accepts
// "start", "end" or "combined"; the default picks one at random.
func AddContext(rng *rand.Rand, in Input, cfg Config) (Result, error) {
	if in.Text == "" || rng.Float64() >= cfg.prob() {
		return unchanged(in), nil
	}
	starting := stringsParam(cfg, "starting_context", defaultStartingContext)
	ending := stringsParam(cfg, "ending_context", defaultEndingContext)

	strategy, _ := cfg.Params["strategy"].(string)
	if strategy == "" {
		strategy = []string{"start", "end", "combined"}[rng.Intn(3)]
	}

	text := in.Text
	var transformations []sample.Transformation

	if strategy == "start" || strategy == "combined" {
		prefix := starting[rng.Intn(len(starting))] + " "
		transformations = append(transformations, sample.Transformation{
			OriginalSpan: sample.Span{Start: 0, End: 0, Word: ""},
			NewSpan:      sample.Span{Start: 0, End: len(prefix), Word: prefix},
			Ignore:       true,
		})
		text = prefix + text
	}
	if strategy == "end" || strategy == "combined" {
		suffix := " " + ending[rng.Intn(len(ending))]
		n := len(in.Text)
		transformations = append(transformations, sample.Transformation{
			OriginalSpan: sample.Span{Start: n, End: n, Word: ""},
			NewSpan:      sample.Span{Start: n, End: n + len(suffix), Word: suffix},
			Ignore:       true,
		})
		text = text + suffix
	}
	return Result{Text: text, Transformations: transformations}, nil
}

// AddContraction joins expanded auxiliary pairs into contractions
// ("do not" becomes "don't"), recording the span rewrite.
func AddContraction(rng *rand.Rand, in Input, cfg Config) (Result, error) {
	tokens := tokenize(in.Text)
	if len(tokens) < 2 {
		return unchanged(in), nil
	}

	var b strings.Builder
	var transformations []sample.Transformation
	delta := 0
	last := 0

	for i := 0; i < len(tokens); i++ {
		b.WriteString(in.Text[last:tokens[i].start])
		if i+1 < len(tokens) {
			phrase := strings.ToLower(tokens[i].text + " " + tokens[i+1].text)
			if contraction, ok := contractionMap[phrase]; ok && rng.Float64() < cfg.prob() {
				if isTitleCase(tokens[i].text) {
					contraction = titleWord(contraction)
				}
				start, end := tokens[i].start, tokens[i+1].end
				original := in.Text[start:end]
				transformations = append(transformations, sample.Transformation{
					OriginalSpan: sample.Span{Start: start, End: end, Word: original},
					NewSpan: sample.Span{
						Start: start + delta,
						End:   start + delta + len(contraction),
						Word:  contraction,
					},
				})
				delta += len(contraction) - len(original)
				b.WriteString(contraction)
				last = end
				i++ // consume the second word
				continue
			}
		}
		b.WriteString(tokens[i].text)
		last = tokens[i].end
	}
	b.WriteString(in.Text[last:])
	return Result{Text: b.String(), Transformations: transformations}, nil
}

// AddWhitespace appends trailing whitespace, an insertion tolerant
// models should shrug off. Recorded as ignored.
func AddWhitespace(rng *rand.Rand, in Input, cfg Config) (Result, error) {
	if in.Text == "" || rng.Float64() >= cfg.prob() {
		return unchanged(in), nil
	}
	n := len(in.Text)
	pad := strings.Repeat(" ", 1+rng.Intn(3))
	return Result{
		Text: in.Text + pad,
		Transformations: []sample.Transformation{{
			OriginalSpan: sample.Span{Start: n, End: n, Word: ""},
			NewSpan:      sample.Span{Start: n, End: n + len(pad), Word: pad},
			Ignore:       true,
		}},
	}, nil
}

// SwapEntities replaces one gold entity with a same-type surface form
// from the terminology map. Records a real (non-ignored) transformation
// so the expected label realigns onto the replacement. Inputs without
// entities come back unchanged.
func SwapEntities(rng *rand.Rand, in Input, cfg Config) (Result, error) {
	if len(in.Entities) == 0 {
		return unchanged(in), nil
	}
	terminology := terminologyParam(cfg)

	// Entities whose label has replacement candidates.
	var eligible []sample.NERPrediction
	for _, ent := range in.Entities {
		if len(terminology[ent.Label]) > 0 {
			eligible = append(eligible, ent)
		}
	}
	if len(eligible) == 0 || rng.Float64() >= cfg.prob() {
		return unchanged(in), nil
	}

	target := eligible[rng.Intn(len(eligible))]
	candidates := terminology[target.Label]
	replacement := candidates[rng.Intn(len(candidates))]
	if replacement == target.Span.Word {
		return unchanged(in), nil
	}

	text := in.Text[:target.Span.Start] + replacement + in.Text[target.Span.End:]
	return Result{
		Text: text,
		Transformations: []sample.Transformation{{
			OriginalSpan: target.Span,
			NewSpan: sample.Span{
				Start: target.Span.Start,
				End:   target.Span.Start + len(replacement),
				Word:  replacement,
			},
		}},
	}, nil
}

func endsWithAny(text string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(text, s) {
			return true
		}
	}
	return false
}

// stringsParam reads a []string parameter, accepting []any from YAML.
func stringsParam(cfg Config, name string, fallback []string) []string {
	raw, ok := cfg.Params[name]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case []string:
		if len(v) > 0 {
			return v
		}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}

// terminologyParam reads the swap_entities terminology map, accepting
// the map[string]any shape YAML produces.
func terminologyParam(cfg Config) map[string][]string {
	raw, ok := cfg.Params["terminology"]
	if !ok {
		return defaultTerminology
	}
	switch v := raw.(type) {
	case map[string][]string:
		return v
	case map[string]any:
		out := make(map[string][]string, len(v))
		for label, items := range v {
			if list, ok := items.([]any); ok {
				for _, item := range list {
					if s, ok := item.(string); ok {
						out[label] = append(out[label], s)
					}
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultTerminology
}
