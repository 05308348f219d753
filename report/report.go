// Package report aggregates evaluated samples into per-test pass rates
// and verdicts against configured minimum pass rates.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/techthiyanes/langtest/sample"
)

// Entry is the aggregated outcome for one (category, test) pair.
type Entry struct {
	// Category is the test category (robustness, bias, ...).
	Category string `json:"category" yaml:"category"`

	// TestName is the test within the category.
	TestName string `json:"test_name" yaml:"test_name"`

	// SampleCount is the number of samples generated for the test.
	SampleCount int `json:"sample_count" yaml:"sample_count"`

	// PassCount is the number of samples whose evaluation passed.
	PassCount int `json:"pass_count" yaml:"pass_count"`

	// FailCount is the number of samples whose evaluation failed.
	FailCount int `json:"fail_count" yaml:"fail_count"`

	// ErrorCount is the number of samples that never reached a verdict
	// because a pipeline stage failed. Errored samples are reported
	// separately from failed evaluations so a flaky endpoint does not
	// masquerade as model regressions.
	ErrorCount int `json:"error_count" yaml:"error_count"`

	// PassRate is PassCount over the denominator, which includes
	// errored samples unless the aggregation excludes them.
	PassRate float64 `json:"pass_rate" yaml:"pass_rate"`

	// MinPassRate is the configured minimum for the test.
	MinPassRate float64 `json:"min_pass_rate" yaml:"min_pass_rate"`

	// Pass reports whether PassRate reached MinPassRate.
	Pass bool `json:"pass" yaml:"pass"`
}

// Report is the outcome of one harness run.
type Report struct {
	// RunID identifies the harness run that produced the report.
	RunID uuid.UUID `json:"run_id" yaml:"run_id"`

	// Model names the model under test.
	Model string `json:"model" yaml:"model"`

	// Task is the task the run tested.
	Task sample.Task `json:"task" yaml:"task"`

	// Entries holds one row per (category, test), ordered by category
	// then test name.
	Entries []Entry `json:"entries" yaml:"entries"`

	// CreatedAt is when the report was built.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Passed reports whether every entry met its minimum pass rate.
func (r Report) Passed() bool {
	for _, e := range r.Entries {
		if !e.Pass {
			return false
		}
	}
	return true
}

// Entry returns the entry for a test name, if present.
func (r Report) Entry(testName string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.TestName == testName {
			return e, true
		}
	}
	return Entry{}, false
}

// Options controls aggregation.
type Options struct {
	// MinPassRates maps test name to its minimum pass rate. Tests
	// without an explicit minimum use DefaultMinPassRate.
	MinPassRates map[string]float64

	// DefaultMinPassRate applies when a test has no explicit minimum.
	// Zero means any pass rate passes.
	DefaultMinPassRate float64

	// ExcludeErrors drops errored samples from the pass-rate
	// denominator. By default an errored sample counts as a failure;
	// excluding them keeps infrastructure flakiness out of the rate
	// while ErrorCount still reports it.
	ExcludeErrors bool
}

func (o Options) minFor(testName string) float64 {
	if min, ok := o.MinPassRates[testName]; ok {
		return min
	}
	return o.DefaultMinPassRate
}

// Aggregate groups evaluated samples by (category, test) and computes
// pass rates. Samples still mid-pipeline are an error: aggregation runs
// only after the evaluate stage.
func Aggregate(samples []*sample.Sample, opts Options) ([]Entry, error) {
	type key struct{ category, test string }
	buckets := make(map[key]*Entry)
	order := make([]key, 0)

	for _, s := range samples {
		if s.State != sample.StateEvaluated && s.State != sample.StateFailed {
			return nil, fmt.Errorf("sample %s is %s, not evaluated", s.ID, s.State)
		}

		k := key{s.Category, s.TestName}
		e, ok := buckets[k]
		if !ok {
			e = &Entry{Category: s.Category, TestName: s.TestName, MinPassRate: opts.minFor(s.TestName)}
			buckets[k] = e
			order = append(order, k)
		}

		e.SampleCount++
		switch {
		case s.State == sample.StateFailed:
			e.ErrorCount++
		case s.Passed():
			e.PassCount++
		default:
			e.FailCount++
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].category != order[j].category {
			return order[i].category < order[j].category
		}
		return order[i].test < order[j].test
	})

	entries := make([]Entry, 0, len(buckets))
	for _, k := range order {
		e := buckets[k]
		denom := e.PassCount + e.FailCount
		if !opts.ExcludeErrors {
			denom += e.ErrorCount
		}
		if denom > 0 {
			e.PassRate = float64(e.PassCount) / float64(denom)
		}
		e.Pass = e.PassRate >= e.MinPassRate && denom > 0
		entries = append(entries, *e)
	}
	return entries, nil
}
