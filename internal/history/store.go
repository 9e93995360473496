// Package history persists build run records in a SQLite database so past
// runs can be inspected after the fact. Recording history is optional; runs
// proceed unchanged when no database path is configured.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one orchestration run.
type Run struct {
	ID         string
	Version    string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  bool
	Error      string
}

// DependencyResult is the recorded outcome of one dependency within a run.
// Error holds run-fatal failures only; a non-fatal publication failure on a
// successful build lands in PublishError.
type DependencyResult struct {
	RunID        string
	Key          string
	Name         string
	OK           bool
	Skipped      bool
	Version      string
	Branch       string
	Error        string
	PublishError string
	Duration     time.Duration
}

// Store persists runs and their per-dependency results.
type Store interface {
	RecordRun(ctx context.Context, run Run, results []DependencyResult) error
	GetRun(ctx context.Context, runID string) (*Run, []DependencyResult, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		error TEXT
	);
	CREATE TABLE IF NOT EXISTS dependency_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		key TEXT NOT NULL,
		name TEXT NOT NULL,
		ok INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		version TEXT,
		branch TEXT,
		error TEXT,
		publish_error TEXT,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_run_id ON dependency_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a run and its results in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run, results []DependencyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, version, started_at, finished_at, succeeded, error) VALUES (?, ?, ?, ?, ?, ?)",
		run.ID, run.Version, run.StartedAt.Unix(), run.FinishedAt.Unix(), boolInt(run.Succeeded), run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, r := range results {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO dependency_results (run_id, key, name, ok, skipped, version, branch, error, publish_error, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			run.ID, r.Key, r.Name, boolInt(r.OK), boolInt(r.Skipped), r.Version, r.Branch, r.Error, r.PublishError, r.Duration.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert result for %s: %w", r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetRun retrieves one run and its results by run ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, []DependencyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var run Run
	var started, finished int64
	var succeeded int
	err := s.db.QueryRowContext(ctx,
		"SELECT id, version, started_at, finished_at, succeeded, error FROM runs WHERE id = ?",
		runID,
	).Scan(&run.ID, &run.Version, &started, &finished, &succeeded, &run.Error)
	if err != nil {
		return nil, nil, fmt.Errorf("query run: %w", err)
	}
	run.StartedAt = time.Unix(started, 0)
	run.FinishedAt = time.Unix(finished, 0)
	run.Succeeded = succeeded != 0

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, key, name, ok, skipped, version, branch, error, publish_error, duration_ms FROM dependency_results WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []DependencyResult
	for rows.Next() {
		var r DependencyResult
		var ok, skipped int
		var durationMS int64
		if err := rows.Scan(&r.RunID, &r.Key, &r.Name, &ok, &skipped, &r.Version, &r.Branch, &r.Error, &r.PublishError, &durationMS); err != nil {
			return nil, nil, fmt.Errorf("scan result: %w", err)
		}
		r.OK = ok != 0
		r.Skipped = skipped != 0
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &run, results, nil
}

// ListRuns retrieves the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, version, started_at, finished_at, succeeded, error FROM runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished int64
		var succeeded int
		if err := rows.Scan(&run.ID, &run.Version, &started, &finished, &succeeded, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0)
		run.FinishedAt = time.Unix(finished, 0)
		run.Succeeded = succeeded != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
