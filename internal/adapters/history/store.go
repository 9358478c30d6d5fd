// Package history persists task results in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

var _ ports.ResultHistory = (*Store)(nil)

// Store implements ports.ResultHistory over SQLite in WAL mode.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the history database at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(fmt.Errorf("%w: %w", domain.ErrHistoryOpenFailed, err), "path", path)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, zerr.With(fmt.Errorf("%w: %w", domain.ErrHistoryOpenFailed, err), "path", path)
	}

	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, zerr.With(fmt.Errorf("%w: %w", domain.ErrHistoryOpenFailed, err), "path", path)
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL UNIQUE,
			started_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			task_key     TEXT NOT NULL,
			task_id      TEXT NOT NULL,
			state        TEXT NOT NULL,
			output       TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			started_at   INTEGER NOT NULL DEFAULT 0,
			completed_at INTEGER NOT NULL DEFAULT 0,
			UNIQUE (run_id, task_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_key ON results(task_key, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Record stores one row per task key of a scheduler run.
func (s *Store) Record(ctx context.Context, runID string, results domain.Results) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queryFailed(err, "run_id", runID)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`,
		runID, s.now().UnixNano(),
	); err != nil {
		return queryFailed(err, "run_id", runID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
		(run_id, task_key, task_id, state, output, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return queryFailed(err, "run_id", runID)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range results.Unique() {
		output, err := encodeOutput(r.Output)
		if err != nil {
			return zerr.With(queryFailed(err, "run_id", runID), "task", r.Key.String())
		}
		var errText string
		if r.Err != nil {
			errText = r.Err.Error()
		}

		if _, err := stmt.ExecContext(ctx,
			runID, string(r.Key), string(r.ID), string(r.State), output, errText,
			unixNano(r.StartedAt), unixNano(r.CompletedAt),
		); err != nil {
			return zerr.With(queryFailed(err, "run_id", runID), "task", r.Key.String())
		}
	}

	if err := tx.Commit(); err != nil {
		return queryFailed(err, "run_id", runID)
	}
	return nil
}

// Latest returns the most recently recorded result for key.
func (s *Store) Latest(ctx context.Context, key domain.TaskKey) (*domain.StoredResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT run_id, task_key, task_id, state, output, error, started_at, completed_at
		FROM results WHERE task_key = ? ORDER BY seq DESC LIMIT 1`, string(key))

	var (
		r                     domain.StoredResult
		k, id, state          string
		startedAt, completeAt int64
	)
	err := row.Scan(&r.RunID, &k, &id, &state, &r.Output, &r.Error, &startedAt, &completeAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, zerr.With(zerr.Wrap(domain.ErrResultNotFound, "lookup result"), "task", key.String())
	}
	if err != nil {
		return nil, queryFailed(err, "task", key.String())
	}

	r.Key = domain.TaskKey(k)
	r.ID = domain.TaskID(id)
	r.State = domain.TaskState(state)
	r.StartedAt = fromUnixNano(startedAt)
	r.CompletedAt = fromUnixNano(completeAt)
	return &r, nil
}

// Runs lists the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.run_id, r.started_at,
			COUNT(res.seq),
			COALESCE(SUM(CASE WHEN res.state IN (?, ?) THEN 1 ELSE 0 END), 0)
		FROM runs r LEFT JOIN results res ON res.run_id = r.run_id
		GROUP BY r.seq ORDER BY r.seq DESC LIMIT ?`,
		string(domain.TaskStateFailed), string(domain.TaskStateFailedByPropagation), limit)
	if err != nil {
		return nil, queryFailed(err, "limit", limit)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.RunSummary
	for rows.Next() {
		var (
			sum       domain.RunSummary
			startedAt int64
		)
		if err := rows.Scan(&sum.RunID, &startedAt, &sum.Tasks, &sum.Failed); err != nil {
			return nil, queryFailed(err, "limit", limit)
		}
		sum.StartedAt = fromUnixNano(startedAt)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err, "limit", limit)
	}
	return out, nil
}

// Prune deletes every run except the newest keep.
func (s *Store) Prune(ctx context.Context, keep int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queryFailed(err, "keep", keep)
	}
	defer func() { _ = tx.Rollback() }()

	const stale = `SELECT run_id FROM runs ORDER BY seq DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return queryFailed(err, "keep", keep)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return queryFailed(err, "keep", keep)
	}
	if err := tx.Commit(); err != nil {
		return queryFailed(err, "keep", keep)
	}
	return nil
}

func queryFailed(err error, key string, value any) error {
	return zerr.With(fmt.Errorf("%w: %w", domain.ErrHistoryQueryFailed, err), key, value)
}

// encodeOutput renders a task output as JSON. Nil outputs are stored as an empty string.
func encodeOutput(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
