// Package storagetest provides SQLite fixtures for repository and
// engine tests.
package storagetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/saaqdata/regularizer/internal/storage"
)

// New opens a fresh temp-file SQLite database with all migrations
// applied. The database is closed and removed when the test ends.
func New(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "regularizer-test.db")
	db, err := storage.Open(storage.Options{Driver: storage.DriverSQLite, DSN: path})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	migrator := storage.NewMigrator(db, migrationsDir(t), storage.DriverSQLite)
	if err := migrator.Apply(context.Background()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

// migrationsDir locates the module's migrations directory relative to
// this source file, so fixtures work from any package.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate storagetest source file")
	}
	// internal/storage/storagetest/storagetest.go -> module root
	root := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(file))))
	return filepath.Join(root, "migrations")
}

// CountingDB wraps a storage.DB and records every statement it
// executes. Tests use it to assert cache hits avoid requerying.
type CountingDB struct {
	inner storage.DB

	mu      sync.Mutex
	queries []string
}

// NewCountingDB wraps db with statement recording.
func NewCountingDB(db storage.DB) *CountingDB {
	return &CountingDB{inner: db}
}

// QueryContext implements storage.DB.
func (c *CountingDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	c.record(query)
	return c.inner.QueryContext(ctx, query, args...)
}

// QueryRowContext implements storage.DB.
func (c *CountingDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	c.record(query)
	return c.inner.QueryRowContext(ctx, query, args...)
}

// ExecContext implements storage.DB.
func (c *CountingDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	c.record(query)
	return c.inner.ExecContext(ctx, query, args...)
}

// BeginTx implements storage.DB. Statements inside the transaction are
// not recorded.
func (c *CountingDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.inner.BeginTx(ctx, opts)
}

func (c *CountingDB) record(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
}

// Reset clears the recorded statements.
func (c *CountingDB) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = nil
}

// CountContaining returns how many recorded statements contain substr.
func (c *CountingDB) CountContaining(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, q := range c.queries {
		if strings.Contains(q, substr) {
			n++
		}
	}
	return n
}
