// Package results persists executed and imported plan runs in a local
// SQLite database, independent of whether the outcomes were uploaded.
package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS plan_runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      INTEGER NOT NULL,
    plan_id     INTEGER NOT NULL,
    plan_name   TEXT NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    stopped_at  TIMESTAMP,
    summary     TEXT NOT NULL DEFAULT '',
    uploaded    BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS case_results (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    plan_run     INTEGER NOT NULL REFERENCES plan_runs(id),
    execution_id INTEGER NOT NULL,
    case_id      INTEGER NOT NULL,
    case_name    TEXT NOT NULL,
    status       TEXT NOT NULL,
    started_at   TIMESTAMP NOT NULL,
    stopped_at   TIMESTAMP,
    comment      TEXT NOT NULL DEFAULT '',
    output_file  TEXT NOT NULL DEFAULT ''
);
`

// PlanRun is one recorded plan execution.
type PlanRun struct {
	ID        int64
	RunID     int64
	PlanID    int64
	PlanName  string
	StartedAt time.Time
	StoppedAt time.Time
	Summary   string
	Uploaded  bool
}

// CaseResult is one recorded case execution within a plan run.
type CaseResult struct {
	ID          int64
	PlanRun     int64
	ExecutionID int64
	CaseID      int64
	CaseName    string
	Status      string
	StartedAt   time.Time
	StoppedAt   time.Time
	Comment     string
	OutputFile  string
}

// Store is the local result history, backed by SQLite in WAL mode.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the result database at dbPath, enables WAL mode
// and creates the schema tables if they do not exist.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("results: open database: %w", err)
	}

	// One connection: SQLite has a single writer, and a single pooled
	// connection avoids SQLITE_BUSY contention between connections that
	// each need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("results: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a plan run and returns its row id.
func (s *Store) RecordRun(ctx context.Context, r PlanRun) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO plan_runs (run_id, plan_id, plan_name, started_at, stopped_at, summary, uploaded)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.PlanID, r.PlanName, r.StartedAt, r.StoppedAt, r.Summary, r.Uploaded)
	if err != nil {
		return 0, fmt.Errorf("results: record run for plan %d: %w", r.PlanID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("results: record run for plan %d: %w", r.PlanID, err)
	}
	return id, nil
}

// RecordCaseResult inserts one case result belonging to a recorded run.
func (s *Store) RecordCaseResult(ctx context.Context, r CaseResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO case_results (plan_run, execution_id, case_id, case_name, status, started_at, stopped_at, comment, output_file)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PlanRun, r.ExecutionID, r.CaseID, r.CaseName, r.Status, r.StartedAt, r.StoppedAt, r.Comment, r.OutputFile)
	if err != nil {
		return fmt.Errorf("results: record case %d: %w", r.CaseID, err)
	}
	return nil
}

// MarkUploaded flags a recorded run as pushed to the server.
func (s *Store) MarkUploaded(ctx context.Context, planRunID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE plan_runs SET uploaded = TRUE WHERE id = ?`, planRunID)
	if err != nil {
		return fmt.Errorf("results: mark run %d uploaded: %w", planRunID, err)
	}
	return nil
}

// ListRuns returns recorded runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]PlanRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, plan_id, plan_name, started_at, stopped_at, summary, uploaded
		 FROM plan_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("results: list runs: %w", err)
	}
	defer rows.Close()

	var runs []PlanRun
	for rows.Next() {
		var r PlanRun
		var stopped sql.NullTime
		if err := rows.Scan(&r.ID, &r.RunID, &r.PlanID, &r.PlanName, &r.StartedAt, &stopped, &r.Summary, &r.Uploaded); err != nil {
			return nil, fmt.Errorf("results: scan run: %w", err)
		}
		if stopped.Valid {
			r.StoppedAt = stopped.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CaseResults returns the case results of one recorded run, in insertion
// order.
func (s *Store) CaseResults(ctx context.Context, planRunID int64) ([]CaseResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_run, execution_id, case_id, case_name, status, started_at, stopped_at, comment, output_file
		 FROM case_results WHERE plan_run = ? ORDER BY id`, planRunID)
	if err != nil {
		return nil, fmt.Errorf("results: list case results: %w", err)
	}
	defer rows.Close()

	var out []CaseResult
	for rows.Next() {
		var r CaseResult
		var stopped sql.NullTime
		if err := rows.Scan(&r.ID, &r.PlanRun, &r.ExecutionID, &r.CaseID, &r.CaseName, &r.Status, &r.StartedAt, &stopped, &r.Comment, &r.OutputFile); err != nil {
			return nil, fmt.Errorf("results: scan case result: %w", err)
		}
		if stopped.Valid {
			r.StoppedAt = stopped.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
