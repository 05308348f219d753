package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techthiyanes/langtest/sample"
)

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch v := r.values[i].(type) {
		case string:
			switch p := d.(type) {
			case *string:
				*p = v
			case *RunStatus:
				*p = RunStatus(v)
			}
		case int64:
			*d.(*int64) = v
		case time.Time:
			*d.(*time.Time) = v
		case *time.Time:
			*d.(**time.Time) = v
		}
	}
	return nil
}

func TestScanRun(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		"run-1", "ner-bert-base", "ner", "finished", int64(42), "", created, (*time.Time)(nil),
	}}

	run, err := scanRun(row)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, sample.TaskNER, run.Task)
	assert.Equal(t, RunStatusFinished, run.Status)
	assert.Equal(t, int64(42), run.Seed)
	assert.Nil(t, run.FinishedAt)
}

func TestScanRunRejectsUnknownTask(t *testing.T) {
	row := fakeRow{values: []any{
		"run-1", "m", "not-a-task", "running", int64(0), "", time.Time{}, (*time.Time)(nil),
	}}
	_, err := scanRun(row)
	assert.Error(t, err)
}
