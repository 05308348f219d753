package sample

import "fmt"

// Task identifies the NLP task a sample belongs to. The task determines
// how inputs are perturbed and how outputs are compared.
type Task string

const (
	// TaskNER is token-level named entity recognition. Outputs are label
	// sequences over character spans, and perturbations must track offset
	// shifts so expected spans can be realigned.
	TaskNER Task = "ner"

	// TaskTextClassification is sequence-level classification with a single
	// label per input.
	TaskTextClassification Task = "text-classification"

	// TaskQuestionAnswering is extractive or generative question answering
	// over a question plus context.
	TaskQuestionAnswering Task = "question-answering"

	// TaskSummarization condenses a document into a short summary.
	TaskSummarization Task = "summarization"

	// TaskTextGeneration is free-form text generation from a prompt.
	TaskTextGeneration Task = "text-generation"
)

// ParseTask converts a task name into a Task, returning an error for
// unknown names. Matching is exact; task names are lowercase kebab-case.
func ParseTask(s string) (Task, error) {
	switch Task(s) {
	case TaskNER, TaskTextClassification, TaskQuestionAnswering, TaskSummarization, TaskTextGeneration:
		return Task(s), nil
	}
	return "", fmt.Errorf("unknown task: %q", s)
}

// SpanLabeling reports whether the task labels character spans, which
// requires perturbations to record offset transformations.
func (t Task) SpanLabeling() bool {
	return t == TaskNER
}

// String returns the task name.
func (t Task) String() string {
	return string(t)
}
