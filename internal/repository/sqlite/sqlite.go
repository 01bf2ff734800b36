// Package sqlite implements the confirmation ledger on top of SQLite.
//
// WHY SQLITE?
// The ledger is a single small table written a handful of times per day. An embedded
// database gives us a real UNIQUE constraint (the only safe way to enforce
// one-confirmation-per-user-per-day under concurrency) without running a server.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds without
// a C toolchain.
//
// CONNECTION POOL:
// sql.DB is a pool. Every repository call borrows a connection for the duration of one
// statement and returns it, so no handle outlives the operation that needed it.
// PRAGMAs are passed in the DSN (`_pragma=...`) because a PRAGMA run with Exec only
// configures whichever pooled connection happened to execute it.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// busyTimeout is how long a writer waits for the database lock before failing with
// SQLITE_BUSY. Concurrent confirmations queue on this lock instead of erroring.
const busyTimeout = 5 * time.Second

// DB wraps a sql.DB connection pool and implements repository.ConfirmationRepository.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/confirmations.db" → file-based database (persistent)
//   - ":memory:"              → in-memory database, pinned to one connection
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each new connection to ":memory:" would get its own empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn, logger: logger}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	logger.Debug("sqlite ledger opened", slog.String("path", dbPath))
	return db, nil
}

// dsn builds a modernc DSN applying our pragmas to every pooled connection.
//
// WAL lets readers proceed while a confirmation is being written; busy_timeout
// makes concurrent writers wait instead of failing immediately.
func dsn(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + dbPath + "?" + q.Encode()
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the confirmations table.
//
// The UNIQUE(day, user_id) constraint is the ledger's core invariant. recorded_at is
// stored as Unix nanoseconds so ORDER BY compares integers, not formatted strings.
// History is retained: reads always filter by day, so rollover needs no reset step.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS confirmations (
			id          TEXT PRIMARY KEY,
			day         TEXT NOT NULL,
			user_id     TEXT NOT NULL,
			user_name   TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			UNIQUE (day, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_confirmations_day_recorded
			ON confirmations(day, recorded_at);
	`)
	if err != nil {
		return fmt.Errorf("creating confirmations table: %w", err)
	}
	return nil
}
