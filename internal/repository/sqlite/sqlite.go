// Package sqlite implements the repository interfaces on top of SQLite.
//
// WHY A SINGLE CONNECTION?
// The matching rules (at most one match per pair, at most one thread per
// pair, likes that turn into matches) are enforced inside transactions.
// SQLite allows one writer at a time anyway, so we cap the pool at one
// connection and open every transaction with BEGIN IMMEDIATE (the _txlock DSN
// parameter). Two concurrent likes are therefore strictly serialised: the
// second one sees the first one's rows.
//
// The cost of this is a rule every method in this package follows:
//
//	NEVER run a query on db.conn while holding a *sql.Tx or an open *sql.Rows.
//
// With one connection in the pool that query would wait forever for the
// connection it is itself holding.
//
// DSN PARAMETERS (modernc.org/sqlite):
//   - _pragma=foreign_keys(1)   referential integrity on every connection
//   - _pragma=busy_timeout(5000) wait for file locks held by other processes
//   - _time_format=sqlite       store time.Time as sortable text
//   - _txlock=immediate         BEGIN IMMEDIATE for every transaction
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const dsnParams = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite&_txlock=immediate"

// DB wraps a sql.DB and implements every repository interface.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens the database without touching the schema. Use New unless you
// are the migrate command.
//
// dbPath examples:
//   - "data/buildermatch.db" → file-based database
//   - ":memory:"             → in-memory database (tests)
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers in other processes (the sqlite3 shell, backups) work
	// while we write. Not available for in-memory databases.
	if dbPath != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	return &DB{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// New opens the database and applies all pending migrations.
func New(dbPath string) (*DB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// withTx runs fn inside a transaction and commits when fn returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

func newID() string {
	return xid.New().String()
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// Set-valued profile fields are stored as JSON arrays.
func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func decodeList(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("sqlite: decoding list %q: %w", raw, err)
	}
	return values, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
