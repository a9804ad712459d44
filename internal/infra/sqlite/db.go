// Package sqlite provides SQLite-based persistent storage for studyquest.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.ProgressStore, domain.SnapshotScanner and
// domain.HistoryLog.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// One JSON document per user; the document is the whole snapshot.
		`CREATE TABLE IF NOT EXISTS progress_snapshots (
			user_id    TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			points     INTEGER NOT NULL DEFAULT 0,
			level      INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_points ON progress_snapshots(points)`,

		// Append-only history log
		`CREATE TABLE IF NOT EXISTS history (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			kind             TEXT NOT NULL,
			occurred_at      INTEGER NOT NULL,
			duration_minutes INTEGER NOT NULL DEFAULT 0,
			correct          INTEGER NOT NULL DEFAULT 0,
			incorrect        INTEGER NOT NULL DEFAULT 0,
			revealed         INTEGER NOT NULL DEFAULT 0,
			score            REAL NOT NULL DEFAULT 0,
			points_delta     INTEGER NOT NULL DEFAULT 0,
			detail           TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user_time ON history(user_id, occurred_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
