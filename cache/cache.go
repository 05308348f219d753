// Package cache provides the prediction cache used to deduplicate model
// calls. Many test cases share the same underlying input, most visibly
// the original text that every invariance test re-runs; caching those
// predictions keeps a run's model-call count close to the number of
// distinct inputs instead of the number of samples.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/techthiyanes/langtest/sample"
)

// Cache stores model outputs keyed by (task, input). Implementations
// must be safe for concurrent use.
type Cache interface {
	// Get returns the cached output for the key and whether it was
	// present. A miss is not an error.
	Get(ctx context.Context, key string) (sample.Output, bool, error)

	// Set stores the output under the key.
	Set(ctx context.Context, key string, out sample.Output) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key builds a cache key from the model identity, task and input text.
// The input is hashed so arbitrary text never appears in backend keys.
func Key(model string, task sample.Task, input string) string {
	sum := sha256.Sum256([]byte(input))
	return "langtest:predict:" + model + ":" + task.String() + ":" + hex.EncodeToString(sum[:16])
}

// Memory is an in-process Cache for single-run harnesses and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]sample.Output
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]sample.Output)}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (sample.Output, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, ok := m.entries[key]
	return out, ok, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, out sample.Output) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = out
	return nil
}

// Close implements Cache.
func (m *Memory) Close() error { return nil }

// Len reports the number of cached predictions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
