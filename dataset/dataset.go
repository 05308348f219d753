// Package dataset defines the reference records the harness evaluates
// against and loaders for the common on-disk formats (CoNLL for NER,
// CSV for classification, JSONL for question answering and
// summarization). The harness itself accepts any []Record; the loaders
// are a convenience for the formats the original datasets ship in.
package dataset

import (
	"fmt"
	"strings"

	"github.com/techthiyanes/langtest/sample"
)

// Record is one reference example. Which fields are populated depends
// on the task:
//
//   - NER: Text plus Entities (and usually Tokens/Labels from CoNLL)
//   - text-classification: Text plus Label
//   - question-answering: Question, Context and Answer
//   - summarization: Document and Summary
//   - text-generation: Text only
type Record struct {
	// Text is the input sentence for NER and classification.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Tokens and Labels are the aligned BIO-tagged token sequence for
	// NER records loaded from CoNLL files.
	Tokens []string `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Entities are the gold entity spans for NER records.
	Entities []sample.NERPrediction `json:"entities,omitempty" yaml:"entities,omitempty"`

	// Label is the gold class for classification records.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Question and Context form the input for QA records; Answer is the
	// gold answer.
	Question string `json:"question,omitempty" yaml:"question,omitempty"`
	Context  string `json:"context,omitempty" yaml:"context,omitempty"`
	Answer   string `json:"answer,omitempty" yaml:"answer,omitempty"`

	// Document is the input for summarization records; Summary is the
	// gold summary.
	Document string `json:"document,omitempty" yaml:"document,omitempty"`
	Summary  string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// Input returns the text the model is invoked on for the given task.
// QA inputs join question and context on a newline so the adapter
// receives a single string, matching the Predict contract.
func (r Record) Input(task sample.Task) string {
	switch task {
	case sample.TaskQuestionAnswering:
		if r.Context == "" {
			return r.Question
		}
		return r.Question + "\n" + r.Context
	case sample.TaskSummarization:
		return r.Document
	default:
		return r.Text
	}
}

// Expected returns the gold output for the given task, used by accuracy
// and structural evaluators. Invariance tests ignore it in favor of the
// model's original-input output.
func (r Record) Expected(task sample.Task) sample.Output {
	switch task {
	case sample.TaskNER:
		return sample.Output{NER: &sample.NEROutput{Predictions: append([]sample.NERPrediction(nil), r.Entities...)}}
	case sample.TaskTextClassification:
		return sample.LabelOutput(r.Label)
	case sample.TaskQuestionAnswering:
		return sample.TextOutput(r.Answer)
	case sample.TaskSummarization:
		return sample.TextOutput(r.Summary)
	default:
		return sample.Output{}
	}
}

// Validate checks that the record carries the fields its task needs.
func (r Record) Validate(task sample.Task) error {
	switch task {
	case sample.TaskNER:
		if r.Text == "" {
			return fmt.Errorf("ner record requires text")
		}
	case sample.TaskTextClassification:
		if r.Text == "" || r.Label == "" {
			return fmt.Errorf("classification record requires text and label")
		}
	case sample.TaskQuestionAnswering:
		if r.Question == "" {
			return fmt.Errorf("question-answering record requires a question")
		}
	case sample.TaskSummarization:
		if r.Document == "" {
			return fmt.Errorf("summarization record requires a document")
		}
	case sample.TaskTextGeneration:
		if r.Text == "" {
			return fmt.Errorf("text-generation record requires text")
		}
	}
	return nil
}

// entitiesFromBIO converts an aligned token/BIO-label sequence into
// entity spans over the space-joined sentence.
func entitiesFromBIO(tokens, labels []string) ([]sample.NERPrediction, error) {
	if len(tokens) != len(labels) {
		return nil, fmt.Errorf("tokens and labels length mismatch: %d vs %d", len(tokens), len(labels))
	}

	var entities []sample.NERPrediction
	offset := 0
	var cur *sample.NERPrediction

	flush := func() {
		if cur != nil {
			entities = append(entities, *cur)
			cur = nil
		}
	}

	for i, tok := range tokens {
		start := offset
		end := offset + len(tok)
		label := labels[i]

		switch {
		case strings.HasPrefix(label, "B-"):
			flush()
			cur = &sample.NERPrediction{
				Label: strings.TrimPrefix(label, "B-"),
				Span:  sample.Span{Start: start, End: end, Word: tok},
			}
		case strings.HasPrefix(label, "I-") && cur != nil && cur.Label == strings.TrimPrefix(label, "I-"):
			cur.Span.End = end
			cur.Span.Word = cur.Span.Word + " " + tok
		case label == "O":
			flush()
		default:
			// An I- tag without a matching B- opens a new entity, the
			// lenient reading most CoNLL tooling applies.
			flush()
			if strings.HasPrefix(label, "I-") {
				cur = &sample.NERPrediction{
					Label: strings.TrimPrefix(label, "I-"),
					Span:  sample.Span{Start: start, End: end, Word: tok},
				}
			}
		}
		offset = end + 1 // single space join
	}
	flush()
	return entities, nil
}
