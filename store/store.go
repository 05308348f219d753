// Package store persists harness runs, their reports and per-sample
// outcomes to Postgres. Persistence is optional; harnesses without a
// store keep results in memory only.
package store

import (
	"context"
	"time"

	"github.com/techthiyanes/langtest/report"
	"github.com/techthiyanes/langtest/sample"
)

// RunStatus tracks a persisted run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// RunRecord is the persisted metadata for one harness run.
type RunRecord struct {
	// ID is the run's UUID.
	ID string `json:"id"`

	// Model names the model under test.
	Model string `json:"model"`

	// Task is the task the run tested.
	Task sample.Task `json:"task"`

	// Status is the run lifecycle state.
	Status RunStatus `json:"status"`

	// Seed is the RNG seed the run used, kept for reproduction.
	Seed int64 `json:"seed"`

	// Error describes why a failed run failed.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store is the persistence interface the harness writes through.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateRun records a new run in RunStatusRunning.
	CreateRun(ctx context.Context, run RunRecord) error

	// FinishRun moves a run to its terminal status. The error text is
	// stored for failed runs.
	FinishRun(ctx context.Context, runID string, status RunStatus, runErr string) error

	// SaveReport stores the run's report entries, replacing any earlier
	// entries for the same run.
	SaveReport(ctx context.Context, runID string, entries []report.Entry) error

	// SaveSamples stores the run's samples, replacing any earlier
	// samples for the same run.
	SaveSamples(ctx context.Context, runID string, samples []*sample.Sample) error

	// GetRun returns a run by ID.
	GetRun(ctx context.Context, runID string) (RunRecord, error)

	// ListRuns returns the most recent runs for a model, newest first.
	ListRuns(ctx context.Context, model string, limit int) ([]RunRecord, error)

	// GetReport returns a run's report entries.
	GetReport(ctx context.Context, runID string) ([]report.Entry, error)

	// FailedSamples returns a run's samples that failed evaluation for
	// one test, the feed for data-augmentation workflows.
	FailedSamples(ctx context.Context, runID, testName string) ([]*sample.Sample, error)

	// Close releases the connection pool.
	Close() error
}
