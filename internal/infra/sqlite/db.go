// Package sqlite persists run summaries and final account snapshots.
//
// The store is write-mostly: a run appends one row to runs and one row per
// account to account_snapshots. Nothing here is read back as pipeline input.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultFileName is used when Open is given a directory.
const DefaultFileName = "txp.db"

// DB wraps the SQLite handle.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and applies migrations.
// If path is an existing directory, DefaultFileName is created inside it.
func Open(path string) (*DB, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB, path: path}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the database.
func (db *DB) Close() error { return db.db.Close() }

func (db *DB) migrate(ctx context.Context) error {
	for i, stmt := range Migrations() {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migration %d: %w", i, err)
		}
	}
	return nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per string
// (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// One row per successful run
		`CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			sources        TEXT NOT NULL DEFAULT '',
			records        INTEGER NOT NULL DEFAULT 0,
			applied        INTEGER NOT NULL DEFAULT 0,
			skipped        INTEGER NOT NULL DEFAULT 0,
			accounts       INTEGER NOT NULL DEFAULT 0,
			queue_capacity INTEGER NOT NULL DEFAULT 0,
			started_at     TEXT NOT NULL,
			finished_at    TEXT NOT NULL,
			created_at     TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Final account balances; amounts kept as fixed-scale decimal text
		`CREATE TABLE IF NOT EXISTS account_snapshots (
			run_id    TEXT NOT NULL,
			client    INTEGER NOT NULL,
			available TEXT NOT NULL,
			held      TEXT NOT NULL,
			total     TEXT NOT NULL,
			locked    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, client)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_locked ON account_snapshots(run_id, locked)`,
	}
}
