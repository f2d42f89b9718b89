package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// validEnumTables guards against interpolating an arbitrary table name.
var validEnumTables = map[string]bool{
	EnumMake:        true,
	EnumModel:       true,
	EnumFuelType:    true,
	EnumVehicleType: true,
}

// EnumRepository manages the categorical string tables. Values are
// created and never deleted. Identity is the row ID, not the string:
// yearly imports mint their own rows, so equal strings can exist under
// several IDs. Intern collapses to the oldest identity for callers that
// want string semantics; Insert deliberately does not.
type EnumRepository struct {
	db DB
}

// NewEnumRepository creates a new enum repository.
func NewEnumRepository(db DB) *EnumRepository {
	return &EnumRepository{db: db}
}

// Intern returns the oldest ID carrying value in the given enum table,
// creating a row if none exists yet.
func (r *EnumRepository) Intern(ctx context.Context, table, value string) (int64, error) {
	id, err := r.Lookup(ctx, table, value)
	if errors.Is(err, ErrNotFound) {
		return r.Insert(ctx, table, value)
	}
	return id, err
}

// Insert creates a new identity for value even when the string already
// exists. Import paths use it: a value re-encoded by a later year's
// file must not silently collapse into the earlier identity.
func (r *EnumRepository) Insert(ctx context.Context, table, value string) (int64, error) {
	if !validEnumTables[table] {
		return 0, fmt.Errorf("unknown enum table: %s", table)
	}

	var id int64
	insert := fmt.Sprintf(`INSERT INTO %s (value) VALUES ($1) RETURNING id`, table)
	if err := r.db.QueryRowContext(ctx, insert, value).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s value: %w", table, err)
	}
	return id, nil
}

// Lookup returns the oldest ID for an existing value, or ErrNotFound.
func (r *EnumRepository) Lookup(ctx context.Context, table, value string) (int64, error) {
	if !validEnumTables[table] {
		return 0, fmt.Errorf("unknown enum table: %s", table)
	}

	var id int64
	query := fmt.Sprintf(`SELECT id FROM %s WHERE value = $1 ORDER BY id LIMIT 1`, table)
	err := r.db.QueryRowContext(ctx, query, value).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup %s value: %w", table, err)
	}
	return id, nil
}

// Value returns the string for an ID, or ErrNotFound.
func (r *EnumRepository) Value(ctx context.Context, table string, id int64) (string, error) {
	if !validEnumTables[table] {
		return "", fmt.Errorf("unknown enum table: %s", table)
	}

	var value string
	query := fmt.Sprintf(`SELECT value FROM %s WHERE id = $1`, table)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("enum %s value: %w", table, err)
	}
	return value, nil
}

// All returns every value in an enum table, keyed by ID.
func (r *EnumRepository) All(ctx context.Context, table string) (map[int64]string, error) {
	if !validEnumTables[table] {
		return nil, fmt.Errorf("unknown enum table: %s", table)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, value FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	values := make(map[int64]string)
	for rows.Next() {
		var ev EnumValue
		if err := rows.Scan(&ev.ID, &ev.Value); err != nil {
			return nil, err
		}
		values[ev.ID] = ev.Value
	}
	return values, rows.Err()
}
