package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configures the database connection.
type Options struct {
	Driver       string // sqlite or postgres
	DSN          string // file path for sqlite, connection string for postgres
	MaxOpenConns int
}

// Open opens a database connection and verifies it is reachable.
// Queries use $N placeholders, which both drivers accept.
func Open(opts Options) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		dsn := opts.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
		}
		db, err = sql.Open("sqlite3", dsn)
		if err == nil {
			// SQLite serializes writers; a single connection avoids
			// SQLITE_BUSY churn under concurrent tasks.
			conns := opts.MaxOpenConns
			if conns <= 0 {
				conns = 1
			}
			db.SetMaxOpenConns(conns)
		}
	case DriverPostgres:
		db, err = sql.Open("postgres", opts.DSN)
		if err == nil {
			conns := opts.MaxOpenConns
			if conns <= 0 {
				conns = 25
			}
			db.SetMaxOpenConns(conns)
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return db, nil
}

// isUniqueViolation reports whether err is a uniqueness constraint
// failure on either driver.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// isMissingTable reports whether err means the queried table does not
// exist yet (fresh database before migrations).
func isMissingTable(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "42P01"
	}
	return err != nil && strings.Contains(err.Error(), "no such table")
}
