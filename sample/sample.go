// Package sample defines the unit of work for the evaluation harness: a
// reference record paired with one test, carrying its perturbed input,
// the model's actual output and the evaluation outcome through the
// generate → run → evaluate pipeline.
package sample

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State tracks a sample's position in the pipeline.
//
// The legal transitions are:
//
//	CREATED -(generate)-> GENERATED -(run)-> RUN -(evaluate)-> EVALUATED
//
// plus a side transition to FAILED from any stage. FAILED is terminal
// for a run but an explicit retry may move a run-stage failure back
// through RUN.
type State string

const (
	// StateCreated is the initial state before perturbation.
	StateCreated State = "created"

	// StateGenerated means the perturbed input has been produced.
	StateGenerated State = "generated"

	// StateRun means the model has produced an actual output.
	StateRun State = "run"

	// StateEvaluated means pass/fail has been decided. Terminal.
	StateEvaluated State = "evaluated"

	// StateFailed means a stage error was recorded for this sample.
	// The failure never aborts sibling samples.
	StateFailed State = "failed"
)

// Sample is one (record, test) pair flowing through the harness.
//
// ActualOutput is only set after the perturbed input (or the original
// input when no perturbation applies) has been sent to the model, and
// Pass is only set once ActualOutput exists. Both invariants are
// enforced by the Mark transitions.
type Sample struct {
	// ID uniquely identifies the sample within a run.
	ID string `json:"id" yaml:"id"`

	// Task is the NLP task this sample exercises.
	Task Task `json:"task" yaml:"task"`

	// Category is the test category (robustness, bias, fairness,
	// representation, accuracy).
	Category string `json:"category" yaml:"category"`

	// TestName identifies the test within its category (e.g. "uppercase").
	TestName string `json:"test_name" yaml:"test_name"`

	// RecordIndex is the position of the source record in the reference
	// dataset; together with TestName it keys the sample in a run.
	RecordIndex int `json:"record_index" yaml:"record_index"`

	// Original is the untouched reference input.
	Original string `json:"original" yaml:"original"`

	// Perturbed is the test case text. Equal to Original when the
	// perturbation could not apply to this record.
	Perturbed string `json:"perturbed,omitempty" yaml:"perturbed,omitempty"`

	// Transformations records the span rewrites the perturbation made,
	// used to realign expected NER offsets during evaluation.
	Transformations []Transformation `json:"transformations,omitempty" yaml:"transformations,omitempty"`

	// ExpectedOutput is the reference output the actual output is judged
	// against. For invariance tests it is captured from the model's
	// original-input run rather than the dataset label.
	ExpectedOutput Output `json:"expected_output,omitempty" yaml:"expected_output,omitempty"`

	// ActualOutput is the model's output on the perturbed input.
	ActualOutput Output `json:"actual_output,omitempty" yaml:"actual_output,omitempty"`

	// Pass is nil until the sample is evaluated.
	Pass *bool `json:"pass,omitempty" yaml:"pass,omitempty"`

	// State is the sample's pipeline state.
	State State `json:"state" yaml:"state"`

	// FailedStage records which stage a FAILED sample failed in
	// ("generate", "run" or "evaluate").
	FailedStage string `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`

	// Error describes the failure cause for FAILED samples.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Metadata stores test-specific values such as representation counts.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// CreatedAt is when the sample was generated.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// New creates a sample in StateCreated for the given record and test.
func New(task Task, category, testName string, recordIndex int, original string) *Sample {
	return &Sample{
		ID:          uuid.New().String(),
		Task:        task,
		Category:    category,
		TestName:    testName,
		RecordIndex: recordIndex,
		Original:    original,
		State:       StateCreated,
		CreatedAt:   time.Now().UTC(),
	}
}

// Key returns the (test_name, record_index) identity of the sample
// within a run.
func (s *Sample) Key() string {
	return fmt.Sprintf("%s/%d", s.TestName, s.RecordIndex)
}

// MarkGenerated records the perturbed input and moves the sample to
// StateGenerated. Only legal from StateCreated.
func (s *Sample) MarkGenerated(perturbed string, transformations []Transformation) error {
	if s.State != StateCreated {
		return fmt.Errorf("sample %s: cannot generate from state %q", s.ID, s.State)
	}
	s.Perturbed = perturbed
	s.Transformations = transformations
	s.State = StateGenerated
	return nil
}

// MarkRun records the model output and moves the sample to StateRun.
// Legal from StateGenerated, and from StateFailed when retrying a
// run-stage failure.
func (s *Sample) MarkRun(actual Output) error {
	switch {
	case s.State == StateGenerated:
	case s.State == StateFailed && s.FailedStage == "run":
		s.Error = ""
		s.FailedStage = ""
	default:
		return fmt.Errorf("sample %s: cannot run from state %q", s.ID, s.State)
	}
	s.ActualOutput = actual
	s.State = StateRun
	return nil
}

// MarkEvaluated records the verdict and moves the sample to
// StateEvaluated. Only legal from StateRun; evaluation never reads a
// sample that has not produced an actual output.
func (s *Sample) MarkEvaluated(pass bool) error {
	if s.State != StateRun {
		return fmt.Errorf("sample %s: cannot evaluate from state %q", s.ID, s.State)
	}
	s.Pass = &pass
	s.State = StateEvaluated
	return nil
}

// MarkFailed records a stage failure. The sample keeps whatever outputs
// it had; the error text is surfaced in the report so operators can
// tell infrastructure failures apart from model failures.
func (s *Sample) MarkFailed(stage string, err error) {
	s.State = StateFailed
	s.FailedStage = stage
	if err != nil {
		s.Error = err.Error()
	}
}

// Passed reports whether the sample was evaluated and passed.
func (s *Sample) Passed() bool {
	return s.State == StateEvaluated && s.Pass != nil && *s.Pass
}

// Unchanged reports whether the perturbation left the input as-is.
func (s *Sample) Unchanged() bool {
	return s.Perturbed == s.Original
}
