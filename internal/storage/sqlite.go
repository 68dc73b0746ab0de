package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != MemoryPath {
		if err := requireLocalDisk(path); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == MemoryPath {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plugin_runs (
  id            TEXT PRIMARY KEY,
  plugin        TEXT NOT NULL,
  task          TEXT NOT NULL,
  manifest_hash TEXT,
  args          JSON NOT NULL DEFAULT '{}',
  status        TEXT NOT NULL,
  progress      REAL NOT NULL DEFAULT 0,
  exit_code     INTEGER,
  output        TEXT,
  error         TEXT,
  stderr        TEXT,
  created_at    TEXT NOT NULL,
  completed_at  TEXT
);`,
		`CREATE TABLE IF NOT EXISTS run_logs (
  run_id    TEXT NOT NULL REFERENCES plugin_runs(id) ON DELETE CASCADE,
  seq       INTEGER NOT NULL,
  level     TEXT NOT NULL,
  message   TEXT NOT NULL,
  logged_at TEXT NOT NULL,
  PRIMARY KEY (run_id, seq)
);`,
		`CREATE INDEX IF NOT EXISTS plugin_runs_created_at_idx ON plugin_runs(created_at);`,
		`CREATE INDEX IF NOT EXISTS plugin_runs_plugin_status_idx ON plugin_runs(plugin, status);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
