// Package archive keeps an unbounded SQLite copy of every recorded
// observation next to the capped JSON history.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/doridoridoriand/holdwatch/internal/history"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		status TEXT NOT NULL,
		holders INTEGER,
		recorded_at INTEGER NOT NULL,
		message TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_recorded_at ON observations(recorded_at)`,
}

// Entry is an archived observation.
type Entry struct {
	ID          int64
	RunID       string
	Observation history.Observation
}

// Archive appends observations to an SQLite database.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path and applies pending migrations.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	a, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.path = path
	return a, nil
}

// New wraps an open database and migrates it.
func New(db *sql.DB) (*Archive, error) {
	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return a, nil
}

func (a *Archive) migrate() error {
	if _, err := a.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := a.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := a.db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// Path returns the database file path, empty when built with New.
func (a *Archive) Path() string { return a.path }

// Close closes the database.
func (a *Archive) Close() error { return a.db.Close() }

// Append stores one observation.
func (a *Archive) Append(ctx context.Context, runID string, o history.Observation) error {
	var holders sql.NullInt64
	if v, ok := o.Holders(); ok {
		holders = sql.NullInt64{Int64: v, Valid: true}
	}
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO observations (run_id, status, holders, recorded_at, message) VALUES (?, ?, ?, ?, ?)",
		runID, string(o.Status), holders, o.Timestamp.UnixMilli(), o.Message)
	if err != nil {
		return fmt.Errorf("archiving observation: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (a *Archive) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT id, run_id, status, holders, recorded_at, message FROM observations ORDER BY recorded_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			status  string
			holders sql.NullInt64
			at      int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &status, &holders, &at, &e.Observation.Message); err != nil {
			return nil, fmt.Errorf("scanning archive row: %w", err)
		}
		e.Observation.Status = history.Status(status)
		e.Observation.Timestamp = time.UnixMilli(at).UTC()
		if holders.Valid {
			e.Observation.Value = holders.Int64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of archived observations.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting archive: %w", err)
	}
	return n, nil
}
