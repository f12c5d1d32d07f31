// Package storage persists evaluation history in a local SQLite database so
// repeated runs against a repository can be compared over time.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	repo_path        TEXT NOT NULL,
	mode             TEXT NOT NULL,
	score            REAL NOT NULL,
	grade            TEXT NOT NULL,
	issue_count      INTEGER NOT NULL,
	error_count      INTEGER NOT NULL,
	suggestion_count INTEGER NOT NULL,
	removed_count    INTEGER NOT NULL,
	cost_usd         REAL NOT NULL,
	duration_ms      INTEGER NOT NULL,
	breakdown        TEXT,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_repo_path ON runs(repo_path, created_at DESC);
`

// RunRecord is one persisted evaluation run.
type RunRecord struct {
	ID              string        `json:"id"`
	RepoPath        string        `json:"repoPath"`
	Mode            string        `json:"mode"`
	Score           float64       `json:"score"`
	Grade           string        `json:"grade"`
	IssueCount      int           `json:"issueCount"`
	ErrorCount      int           `json:"errorCount"`
	SuggestionCount int           `json:"suggestionCount"`
	RemovedCount    int           `json:"removedCount"`
	CostUSD         float64       `json:"cost_usd"`
	Duration        time.Duration `json:"duration_ms"`
	// Breakdown is the JSON-encoded score breakdown, stored opaquely.
	Breakdown json.RawMessage `json:"breakdown,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store is the SQLite-backed history store.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the history database location: CTXEVAL_DB_PATH if set,
// else ~/.ctxeval/history.db.
func DefaultPath() (string, error) {
	if path := os.Getenv("CTXEVAL_DB_PATH"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ctxeval", "history.db"), nil
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveRun persists one evaluation run. A missing ID is assigned.
func (s *Store) SaveRun(ctx context.Context, record *RunRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, repo_path, mode, score, grade, issue_count,
			error_count, suggestion_count, removed_count, cost_usd, duration_ms,
			breakdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.RepoPath, record.Mode, record.Score, record.Grade,
		record.IssueCount, record.ErrorCount, record.SuggestionCount,
		record.RemovedCount, record.CostUSD, record.Duration.Milliseconds(),
		nullableJSON(record.Breakdown), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs for a repository, newest first.
// An empty repoPath lists runs across all repositories.
func (s *Store) ListRuns(ctx context.Context, repoPath string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, repo_path, mode, score, grade, issue_count, error_count,
			suggestion_count, removed_count, cost_usd, duration_ms, breakdown,
			created_at
		FROM runs`
	args := []any{}
	if repoPath != "" {
		query += ` WHERE repo_path = ?`
		args = append(args, repoPath)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// LatestRun returns the most recent run for a repository, or nil if none.
func (s *Store) LatestRun(ctx context.Context, repoPath string) (*RunRecord, error) {
	records, err := s.ListRuns(ctx, repoPath, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRun(rows *sql.Rows) (*RunRecord, error) {
	var record RunRecord
	var durationMs int64
	var breakdown sql.NullString
	if err := rows.Scan(&record.ID, &record.RepoPath, &record.Mode,
		&record.Score, &record.Grade, &record.IssueCount, &record.ErrorCount,
		&record.SuggestionCount, &record.RemovedCount, &record.CostUSD,
		&durationMs, &breakdown, &record.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	record.Duration = time.Duration(durationMs) * time.Millisecond
	if breakdown.Valid && breakdown.String != "" {
		record.Breakdown = json.RawMessage(breakdown.String)
	}
	return &record, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
