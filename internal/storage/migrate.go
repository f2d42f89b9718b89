package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migrator applies versioned .sql migrations from a directory. Files
// named NNNN_name.sql apply to both dialects; an NNNN_name_sqlite.sql
// variant, when present, replaces it for the sqlite driver. Applied
// versions are recorded in schema_migrations.
type Migrator struct {
	db     *sql.DB
	dir    string
	driver string
}

// NewMigrator creates a migrator for the given directory and driver.
func NewMigrator(db *sql.DB, dir, driver string) *Migrator {
	return &Migrator{db: db, dir: dir, driver: driver}
}

// Pending returns the migration files not yet applied, in order.
func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	files, err := m.listFiles()
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool)
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pending []string
	for _, f := range files {
		if !applied[f] {
			pending = append(pending, f)
		}
	}
	sort.Strings(pending)
	return pending, nil
}

// Apply runs all pending migrations.
func (m *Migrator) Apply(ctx context.Context) error {
	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}

	for _, name := range pending {
		data, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := m.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := m.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	var query string
	if m.driver == DriverPostgres {
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`
	} else {
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMP NOT NULL DEFAULT (datetime('now'))
			)`
	}
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// listFiles resolves the migration set for the configured driver,
// preferring _sqlite variants on sqlite.
func (m *Migrator) listFiles() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	sqliteVariant := make(map[string]string)
	plain := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.HasSuffix(name, "_sqlite.sql") {
			sqliteVariant[strings.TrimSuffix(name, "_sqlite.sql")] = name
		} else {
			plain[strings.TrimSuffix(name, ".sql")] = name
		}
	}

	bases := make(map[string]bool)
	for b := range sqliteVariant {
		bases[b] = true
	}
	for b := range plain {
		bases[b] = true
	}

	var files []string
	for base := range bases {
		if m.driver == DriverPostgres {
			if f, ok := plain[base]; ok {
				files = append(files, f)
			}
			continue
		}
		if f, ok := sqliteVariant[base]; ok {
			files = append(files, f)
		} else if f, ok := plain[base]; ok {
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files, nil
}
