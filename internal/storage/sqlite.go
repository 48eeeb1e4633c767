package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ruiji/internal/models"
)

// SQLiteStorage implements RunLog using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" gives a private
// in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		policy TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		total INTEGER NOT NULL,
		indexed INTEGER NOT NULL,
		aborted BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON ingest_runs(started_at);

	CREATE TABLE IF NOT EXISTS ingest_failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		document_ref TEXT NOT NULL,
		stage TEXT NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES ingest_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_failures_run_id ON ingest_failures(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRun stores run and its failures in one transaction.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *models.IngestRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, policy, started_at, finished_at, total, indexed, aborted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Policy, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Total, run.Indexed, run.Aborted,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ingest_failures (run_id, document_ref, stage, message) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range run.Failures {
		if _, err := stmt.ExecContext(ctx, run.ID, f.DocumentRef, f.Stage, f.Message); err != nil {
			return fmt.Errorf("failed to insert failure for %s: %w", f.DocumentRef, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, policy, started_at, finished_at, total, indexed, aborted`

// GetRun returns the run with the given ID, failures included.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.IngestRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingest_runs WHERE id = ?`, id)
	return s.scanRunWithFailures(ctx, row, id)
}

// LatestRun returns the most recently started run, failures included.
func (s *SQLiteStorage) LatestRun(ctx context.Context) (*models.IngestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	return s.scanRunWithFailures(ctx, row, "latest")
}

// ListRuns returns up to limit runs, newest first, failures included.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*models.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var runs []*models.IngestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// The single connection is free again once rows is closed.
	for _, run := range runs {
		if run.Failures, err = s.failures(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// PruneRuns deletes all but the keep most recent runs and returns how many were removed.
func (s *SQLiteStorage) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM ingest_runs WHERE id NOT IN (
			SELECT id FROM ingest_runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.IngestRun, error) {
	var run models.IngestRun
	if err := sc.Scan(&run.ID, &run.Policy, &run.StartedAt, &run.FinishedAt, &run.Total, &run.Indexed, &run.Aborted); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SQLiteStorage) scanRunWithFailures(ctx context.Context, row *sql.Row, what string) (*models.IngestRun, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, what)
	}
	if err != nil {
		return nil, err
	}
	if run.Failures, err = s.failures(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStorage) failures(ctx context.Context, runID string) ([]*models.IngestFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_ref, stage, message FROM ingest_failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.IngestFailure
	for rows.Next() {
		var f models.IngestFailure
		if err := rows.Scan(&f.DocumentRef, &f.Stage, &f.Message); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// Path returns the database path the storage was opened with.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// DiskUsage returns the bytes used by the database file and its WAL side files.
func (s *SQLiteStorage) DiskUsage() (int64, error) {
	if s.path == ":memory:" {
		return 0, nil
	}
	return DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
