// Package sqlite provides SQLite-based storage implementations for
// docdex metadata: sites, the crawl queue, indexed chunks, and the
// indexer heartbeat.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/docdex/docdex"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set busy timeout to wait 5 seconds before failing on lock contention.
	// This prevents immediate "database is locked" errors.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable WAL mode for file-based databases for better write performance.
	// WAL allows concurrent reads during writes. Not supported in-memory.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Enable foreign key constraints so queue entries and chunks cascade
	// with their site.
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.db = conn

	// Create schema
	if err := db.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows, retrying
// briefly on lock contention.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := db.withBusyRetry(ctx, func() error {
		var execErr error
		res, execErr = db.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// Stats returns database statistics.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// busyRetryDelays bounds the exponential backoff applied on top of the
// driver's busy timeout when another process holds the write lock.
var busyRetryDelays = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
}

// withBusyRetry runs fn, retrying on SQLITE_BUSY/SQLITE_LOCKED errors
// with exponential backoff. Non-contention errors are returned as-is.
func (db *DB) withBusyRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isBusyErr(err) || attempt >= len(busyRetryDelays) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(busyRetryDelays[attempt]):
		}
	}
}

// isBusyErr reports whether err is a lock-contention error.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}

// isConstraintErr reports whether err is a uniqueness violation.
func isConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed")
}

// isCorruptionErr reports whether err indicates file corruption.
func isCorruptionErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") ||
		strings.Contains(msg, "corrupt") ||
		strings.Contains(msg, "not a database")
}

// mapError converts driver errors into typed application errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case isConstraintErr(err):
		return docdex.Errorf(docdex.ECONFLICT, "record already exists: %v", err)
	case isCorruptionErr(err):
		return docdex.Errorf(docdex.ECORRUPT, "metadata store corrupted: %v", err)
	default:
		return err
	}
}

// createSchema creates the database tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			index_url TEXT NOT NULL UNIQUE,
			base_url TEXT NOT NULL,
			name TEXT NOT NULL,
			version TEXT NOT NULL DEFAULT '',
			indexed_date TEXT,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'indexing', 'completed', 'failed')),
			progress_percent INTEGER NOT NULL DEFAULT 0
				CHECK (progress_percent BETWEEN 0 AND 100),
			total_pages INTEGER NOT NULL DEFAULT 0,
			indexed_pages INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_date TEXT NOT NULL,
			last_heartbeat TEXT,
			UNIQUE (name, version)
		);

		CREATE TABLE IF NOT EXISTS crawl_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
			retry_count INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_date TEXT NOT NULL,
			UNIQUE (site_id, url)
		);

		CREATE INDEX IF NOT EXISTS idx_crawl_queue_site_status
			ON crawl_queue(site_id, status);

		CREATE TABLE IF NOT EXISTS indexed_chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			page_title TEXT,
			heading_path TEXT,
			chunk_content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL CHECK (chunk_index >= 0),
			vector_id TEXT NOT NULL UNIQUE,
			content_hash TEXT NOT NULL DEFAULT '',
			indexed_date TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_indexed_chunks_site
			ON indexed_chunks(site_id);

		CREATE TABLE IF NOT EXISTS indexer_heartbeat (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_heartbeat TEXT NOT NULL,
			process_id INTEGER,
			status TEXT NOT NULL DEFAULT 'idle'
				CHECK (status IN ('idle', 'indexing', 'failed'))
		);
	`

	_, err := db.db.Exec(schema)
	return err
}
