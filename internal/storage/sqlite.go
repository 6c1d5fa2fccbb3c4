package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docagent/internal/endpoint"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			project TEXT NOT NULL,
			output TEXT,
			new_count INTEGER NOT NULL DEFAULT 0,
			stale_count INTEGER NOT NULL DEFAULT 0,
			unchanged_count INTEGER NOT NULL DEFAULT 0,
			orphaned_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			generator_calls INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS endpoints (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			key TEXT NOT NULL,
			hash TEXT NOT NULL,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			file TEXT,
			line INTEGER,
			signature JSON NOT NULL,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project, id);`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_key ON endpoints(key);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRecord, sigs []endpoint.Signature) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (started_at, project, output, new_count, stale_count, unchanged_count, orphaned_count, failed_count, generator_calls)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, startedAt.UTC().Format(time.RFC3339Nano), run.Project, run.Output,
		run.New, run.Stale, run.Unchanged, run.Orphaned, run.Failed, run.GeneratorCalls)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO endpoints (run_id, position, key, hash, method, path, file, line, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, sig := range sigs {
		raw, err := json.Marshal(sig)
		if err != nil {
			return 0, fmt.Errorf("failed to encode signature %s: %w", sig.Key(), err)
		}
		if _, err := stmt.ExecContext(ctx, runID, i, sig.Key(), sig.ContentHash(),
			sig.Method, sig.Path, sig.File, sig.Line, string(raw)); err != nil {
			return 0, fmt.Errorf("failed to insert endpoint %s: %w", sig.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, project string) ([]endpoint.Signature, error) {
	var runID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE project = ? ORDER BY id DESC LIMIT 1`, project).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT signature FROM endpoints WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sigs := []endpoint.Signature{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var sig endpoint.Signature
		if err := json.Unmarshal([]byte(raw), &sig); err != nil {
			return nil, fmt.Errorf("failed to decode stored signature: %w", err)
		}
		sig.Normalize()
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.project, COALESCE(r.output, ''),
			r.new_count, r.stale_count, r.unchanged_count, r.orphaned_count, r.failed_count, r.generator_calls,
			(SELECT COUNT(*) FROM endpoints e WHERE e.run_id = r.id)
		FROM runs r
		ORDER BY r.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedAt string
		if err := rows.Scan(&r.ID, &startedAt, &r.Project, &r.Output,
			&r.New, &r.Stale, &r.Unchanged, &r.Orphaned, &r.Failed, &r.GeneratorCalls, &r.Endpoints); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			r.StartedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
