// Package model defines the invocation contract between the harness
// and a model backend. The core sees exactly one capability: Predict.
// Batching, retries and timeouts are the adapter's concern; the harness
// treats a non-response as a per-sample failure, never a batch abort.
package model

import (
	"context"
	"sync"

	"github.com/techthiyanes/langtest/sample"
)

// Adapter invokes a model on one input and returns its output.
//
// Implementations must be safe for concurrent use; the harness runs
// invocations from a bounded worker pool. An adapter that cannot serve
// concurrent calls should wrap itself with Serialize.
type Adapter interface {
	// Predict runs the model on the input for the given task. The
	// returned output's shape must match the task (entity predictions
	// for NER, a label for classification, text otherwise).
	Predict(ctx context.Context, task sample.Task, input string) (sample.Output, error)
}

// PredictFunc adapts a plain function to the Adapter interface, the
// usual shape for test doubles and small wrappers.
type PredictFunc func(ctx context.Context, task sample.Task, input string) (sample.Output, error)

// Predict implements Adapter.
func (f PredictFunc) Predict(ctx context.Context, task sample.Task, input string) (sample.Output, error) {
	return f(ctx, task, input)
}

// Serialize wraps an adapter that is not safe for concurrent use,
// admitting one Predict call at a time. The harness's worker pool then
// degrades to sequential invocation instead of corrupting the backend.
func Serialize(a Adapter) Adapter {
	return &serialized{inner: a}
}

type serialized struct {
	mu    sync.Mutex
	inner Adapter
}

func (s *serialized) Predict(ctx context.Context, task sample.Task, input string) (sample.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Predict(ctx, task, input)
}
