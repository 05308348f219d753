package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/techthiyanes/langtest/report"
	"github.com/techthiyanes/langtest/sample"
)

// ErrRunNotFound is returned when a run ID has no persisted record.
var ErrRunNotFound = errors.New("run not found")

// schema is applied by Migrate. Statements are idempotent so repeated
// startups are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		model       TEXT NOT NULL,
		task        TEXT NOT NULL,
		status      TEXT NOT NULL,
		seed        BIGINT NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS runs_model_created_idx ON runs (model, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS report_entries (
		run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		category      TEXT NOT NULL,
		test_name     TEXT NOT NULL,
		sample_count  INT NOT NULL,
		pass_count    INT NOT NULL,
		fail_count    INT NOT NULL,
		error_count   INT NOT NULL,
		pass_rate     DOUBLE PRECISION NOT NULL,
		min_pass_rate DOUBLE PRECISION NOT NULL,
		pass          BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, category, test_name)
	)`,
	`CREATE TABLE IF NOT EXISTS samples (
		run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		id           TEXT NOT NULL,
		category     TEXT NOT NULL,
		test_name    TEXT NOT NULL,
		record_index INT NOT NULL,
		state        TEXT NOT NULL,
		pass         BOOLEAN,
		data         JSONB NOT NULL,
		PRIMARY KEY (run_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS samples_run_test_idx ON samples (run_id, test_name)`,
}

// PG implements Store on a pgx connection pool.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a Postgres store over an existing pool and applies the
// schema.
func NewPG(ctx context.Context, pool *pgxpool.Pool) (*PG, error) {
	s := &PG{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Open connects to Postgres with the given DSN and returns a migrated
// store.
func Open(ctx context.Context, dsn string) (*PG, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s, err := NewPG(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PG) migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// CreateRun implements Store.
func (s *PG) CreateRun(ctx context.Context, run RunRecord) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, model, task, status, seed, error, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		run.ID, run.Model, run.Task.String(), string(run.Status), run.Seed, run.Error, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun implements Store.
func (s *PG) FinishRun(ctx context.Context, runID string, status RunStatus, runErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status=$1, error=$2, finished_at=$3 WHERE id=$4`,
		string(status), runErr, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// SaveReport implements Store.
func (s *PG) SaveReport(ctx context.Context, runID string, entries []report.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin report tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM report_entries WHERE run_id=$1`, runID); err != nil {
		return fmt.Errorf("clear report for run %s: %w", runID, err)
	}
	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO report_entries
			 (run_id, category, test_name, sample_count, pass_count, fail_count, error_count, pass_rate, min_pass_rate, pass)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			runID, e.Category, e.TestName, e.SampleCount, e.PassCount, e.FailCount,
			e.ErrorCount, e.PassRate, e.MinPassRate, e.Pass)
		if err != nil {
			return fmt.Errorf("insert report entry %s/%s: %w", e.Category, e.TestName, err)
		}
	}
	return tx.Commit(ctx)
}

// SaveSamples implements Store. Sample bodies are stored as JSONB so
// schema churn in sample fields never needs a migration.
func (s *PG) SaveSamples(ctx context.Context, runID string, samples []*sample.Sample) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin samples tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM samples WHERE run_id=$1`, runID); err != nil {
		return fmt.Errorf("clear samples for run %s: %w", runID, err)
	}
	for _, sm := range samples {
		data, err := json.Marshal(sm)
		if err != nil {
			return fmt.Errorf("marshal sample %s: %w", sm.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO samples (run_id, id, category, test_name, record_index, state, pass, data)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			runID, sm.ID, sm.Category, sm.TestName, sm.RecordIndex, string(sm.State), sm.Pass, data)
		if err != nil {
			return fmt.Errorf("insert sample %s: %w", sm.ID, err)
		}
	}
	return tx.Commit(ctx)
}

// GetRun implements Store.
func (s *PG) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, model, task, status, seed, error, created_at, finished_at
		 FROM runs WHERE id=$1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns implements Store.
func (s *PG) ListRuns(ctx context.Context, model string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, model, task, status, seed, error, created_at, finished_at
		 FROM runs WHERE model=$1 ORDER BY created_at DESC LIMIT $2`, model, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for model %s: %w", model, err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetReport implements Store.
func (s *PG) GetReport(ctx context.Context, runID string) ([]report.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, test_name, sample_count, pass_count, fail_count, error_count, pass_rate, min_pass_rate, pass
		 FROM report_entries WHERE run_id=$1 ORDER BY category, test_name`, runID)
	if err != nil {
		return nil, fmt.Errorf("get report for run %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []report.Entry
	for rows.Next() {
		var e report.Entry
		if err := rows.Scan(&e.Category, &e.TestName, &e.SampleCount, &e.PassCount,
			&e.FailCount, &e.ErrorCount, &e.PassRate, &e.MinPassRate, &e.Pass); err != nil {
			return nil, fmt.Errorf("scan report entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FailedSamples implements Store.
func (s *PG) FailedSamples(ctx context.Context, runID, testName string) ([]*sample.Sample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM samples
		 WHERE run_id=$1 AND test_name=$2 AND state=$3 AND pass=FALSE
		 ORDER BY record_index`, runID, testName, string(sample.StateEvaluated))
	if err != nil {
		return nil, fmt.Errorf("list failed samples for run %s test %s: %w", runID, testName, err)
	}
	defer rows.Close()

	var out []*sample.Sample
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		var sm sample.Sample
		if err := json.Unmarshal(data, &sm); err != nil {
			return nil, fmt.Errorf("unmarshal sample: %w", err)
		}
		out = append(out, &sm)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *PG) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		run  RunRecord
		task string
	)
	err := row.Scan(&run.ID, &run.Model, &task, &run.Status, &run.Seed,
		&run.Error, &run.CreatedAt, &run.FinishedAt)
	if err != nil {
		return RunRecord{}, err
	}
	parsed, err := sample.ParseTask(task)
	if err != nil {
		return RunRecord{}, err
	}
	run.Task = parsed
	return run, nil
}
