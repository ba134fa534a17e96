// Package store provides SQLite persistence for all durable govclaw state:
// session history, the audit log, capability statuses, namespaced memory,
// and cron jobs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrIntervalTooShort is returned when a cron job interval is below the floor.
var ErrIntervalTooShort = errors.New("store: job interval below configured floor")

// Schema creates all tables. Times are stored as unix seconds.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_key TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	tool_calls TEXT,
	tool_call_id TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_key);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id TEXT UNIQUE NOT NULL,
	session_key TEXT,
	trace_id TEXT,
	capability TEXT NOT NULL,
	arguments TEXT,
	verdict TEXT NOT NULL,
	reason TEXT,
	result TEXT,
	error_text TEXT,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	decided_at INTEGER NOT NULL,
	finalized_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_key);

CREATE TABLE IF NOT EXISTS capabilities (
	name TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memory (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);

CREATE TABLE IF NOT EXISTS cron_jobs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	message TEXT NOT NULL,
	interval_seconds INTEGER NOT NULL,
	channel TEXT NOT NULL,
	chat_id TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	next_run_at INTEGER NOT NULL,
	last_run_at INTEGER,
	last_status TEXT,
	last_error TEXT,
	created_at INTEGER NOT NULL
);
`

// Store wraps the SQLite database.
type Store struct {
	db            *sql.DB
	intervalFloor time.Duration
}

// Open opens (or creates) the database at dbPath and applies the schema.
// intervalFloor is the minimum allowed cron job interval.
func Open(dbPath string, intervalFloor time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	if intervalFloor <= 0 {
		intervalFloor = time.Minute
	}

	return &Store{db: db, intervalFloor: intervalFloor}, nil
}

// IntervalFloor returns the minimum allowed cron job interval.
func (s *Store) IntervalFloor() time.Duration {
	return s.intervalFloor
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func unixOrZero(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}
