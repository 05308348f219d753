package langtest

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common harness error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrTestNotFound indicates an enabled test has no registered
	// perturbation or evaluator for its (task, category, test) key.
	ErrTestNotFound = errors.New("test not found")

	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotGenerated indicates a stage was requested before the stage
	// it depends on has produced its samples.
	ErrNotGenerated = errors.New("samples not generated")

	// ErrNotEvaluated indicates a report was requested before the
	// evaluate stage completed.
	ErrNotEvaluated = errors.New("samples not evaluated")

	// ErrModelUnavailable indicates the model adapter could not be
	// constructed or reached.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Error kinds categorize errors by their type.
const (
	// KindConfiguration represents errors in harness or test configuration.
	KindConfiguration = "configuration"

	// KindGeneration represents errors raised while producing test cases.
	KindGeneration = "generation"

	// KindInvocation represents errors raised while calling the model.
	KindInvocation = "invocation"

	// KindEvaluation represents errors raised while judging outputs.
	KindEvaluation = "evaluation"

	// KindNotFound represents errors where a resource was not found.
	KindNotFound = "not_found"

	// KindStore represents errors from the persistence layer.
	KindStore = "store"

	// KindUnavailable represents errors from unreachable backing services.
	KindUnavailable = "unavailable"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category
// of error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
//
// Example usage:
//
//	err := &Error{
//		Op:   "Harness.Run",
//		Kind: KindInvocation,
//		Err:  ErrModelUnavailable,
//	}
type Error struct {
	// Op is the operation that failed (e.g., "Harness.Generate").
	Op string

	// Kind categorizes the error (e.g., KindConfiguration, KindInvocation).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// This can include test names, record indices, or other debugging
	// information.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error
// message that includes the operation, kind, and underlying error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("langtest: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("langtest: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("langtest: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and
// errors.As() to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error, allowing comparison based on
// the underlying error or on a target Error's Kind and Op.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a copy of the error with the provided context
// added.
//
// Example:
//
//	err = err.WithContext(map[string]any{
//		"test":         "uppercase",
//		"record_index": 12,
//	})
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	newErr.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		newErr.Context[k] = v
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewConfigurationError creates a new Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewGenerationError creates a new Error with KindGeneration.
func NewGenerationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindGeneration, Err: err}
}

// NewInvocationError creates a new Error with KindInvocation.
func NewInvocationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInvocation, Err: err}
}

// NewEvaluationError creates a new Error with KindEvaluation.
func NewEvaluationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindEvaluation, Err: err}
}

// NewNotFoundError creates a new Error with KindNotFound.
func NewNotFoundError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

// NewStoreError creates a new Error with KindStore.
func NewStoreError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindStore, Err: err}
}

// CloseWithLog closes the closer and logs any error instead of
// returning it, for use in defers where the error cannot propagate.
func CloseWithLog(logger *slog.Logger, name string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil && logger != nil {
		logger.Warn("close failed", "component", name, "error", err)
	}
}
