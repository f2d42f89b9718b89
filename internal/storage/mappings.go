package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MappingRepository is the mapping store: the one piece of durable user
// state this engine owns. It has no derivation path and is never
// regenerated; writes that collide with an existing row fail with
// ErrConflict instead of overwriting.
type MappingRepository struct {
	db DB
}

// NewMappingRepository creates a new mapping repository.
func NewMappingRepository(db DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// SavePair inserts a pair-level mapping. At most one row may exist per
// uncurated (make, model); a duplicate insert returns ErrConflict.
func (r *MappingRepository) SavePair(ctx context.Context, m *Mapping) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO make_model_regularizations
			(uncurated_make_id, uncurated_model_id, canonical_make_id, canonical_model_id,
			 vehicle_type_id, fuel_type_id, record_count, year_range_start, year_range_end, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		m.UncuratedMakeID, m.UncuratedModelID, m.CanonicalMakeID, m.CanonicalModelID,
		m.VehicleTypeID, m.FuelTypeID, m.RecordCount, m.YearRangeStart, m.YearRangeEnd, m.CreatedAt,
	).Scan(&m.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: pair mapping already exists for uncurated (%d, %d)",
			ErrConflict, m.UncuratedMakeID, m.UncuratedModelID)
	}
	if err != nil {
		return fmt.Errorf("save pair mapping: %w", err)
	}
	return nil
}

// UpdatePair rewrites the assignable fields of an existing pair-level
// mapping. Returns ErrNotFound if the row does not exist.
func (r *MappingRepository) UpdatePair(ctx context.Context, m *Mapping) error {
	query := `
		UPDATE make_model_regularizations SET
			canonical_make_id = $1, canonical_model_id = $2,
			vehicle_type_id = $3, fuel_type_id = $4
		WHERE id = $5
	`
	res, err := r.db.ExecContext(ctx, query,
		m.CanonicalMakeID, m.CanonicalModelID, m.VehicleTypeID, m.FuelTypeID, m.ID,
	)
	if err != nil {
		return fmt.Errorf("update pair mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveTriplet inserts a triplet-level mapping. At most one row may
// exist per uncurated (make, model, model year); duplicates return
// ErrConflict.
func (r *MappingRepository) SaveTriplet(ctx context.Context, t *YearMapping) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO make_model_year_regularizations
			(uncurated_make_id, uncurated_model_id, model_year,
			 canonical_make_id, canonical_model_id, fuel_type_id, created_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		t.UncuratedMakeID, t.UncuratedModelID, t.ModelYear,
		t.CanonicalMakeID, t.CanonicalModelID, t.FuelTypeID, t.CreatedAt,
	).Scan(&t.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: year mapping already exists for uncurated (%d, %d) model year %d",
			ErrConflict, t.UncuratedMakeID, t.UncuratedModelID, t.ModelYear)
	}
	if err != nil {
		return fmt.Errorf("save year mapping: %w", err)
	}
	return nil
}

// DeletePair removes one pair-level row by ID. Triplet rows for the
// same pair are left untouched.
func (r *MappingRepository) DeletePair(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM make_model_regularizations WHERE id = $1`, id)
}

// DeleteTriplet removes one triplet-level row by ID.
func (r *MappingRepository) DeleteTriplet(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, `DELETE FROM make_model_year_regularizations WHERE id = $1`, id)
}

func (r *MappingRepository) deleteByID(ctx context.Context, query string, id int64) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByUncuratedPair returns the pair-level mapping for an uncurated
// (make, model), or ErrNotFound.
func (r *MappingRepository) GetByUncuratedPair(ctx context.Context, makeID, modelID int64) (*Mapping, error) {
	query := selectMapping + ` WHERE uncurated_make_id = $1 AND uncurated_model_id = $2`
	m := &Mapping{}
	err := r.db.QueryRowContext(ctx, query, makeID, modelID).Scan(
		&m.ID, &m.UncuratedMakeID, &m.UncuratedModelID,
		&m.CanonicalMakeID, &m.CanonicalModelID,
		&m.VehicleTypeID, &m.FuelTypeID,
		&m.RecordCount, &m.YearRangeStart, &m.YearRangeEnd, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pair mapping: %w", err)
	}
	return m, nil
}

const selectMapping = `
	SELECT id, uncurated_make_id, uncurated_model_id,
		canonical_make_id, canonical_model_id,
		vehicle_type_id, fuel_type_id,
		record_count, year_range_start, year_range_end, created_date
	FROM make_model_regularizations`

// GetAll returns every pair-level mapping. A fresh database (table not
// yet migrated) yields an empty result, not an error.
func (r *MappingRepository) GetAll(ctx context.Context) ([]Mapping, error) {
	rows, err := r.db.QueryContext(ctx, selectMapping+` ORDER BY id`)
	if isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list pair mappings: %w", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

// TripletsByPair returns the triplet-level rows for one uncurated pair,
// ordered by model year.
func (r *MappingRepository) TripletsByPair(ctx context.Context, makeID, modelID int64) ([]YearMapping, error) {
	query := selectYearMapping + `
		WHERE uncurated_make_id = $1 AND uncurated_model_id = $2
		ORDER BY model_year`
	rows, err := r.db.QueryContext(ctx, query, makeID, modelID)
	if isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list year mappings: %w", err)
	}
	defer rows.Close()
	return scanYearMappings(rows)
}

const selectYearMapping = `
	SELECT id, uncurated_make_id, uncurated_model_id, model_year,
		canonical_make_id, canonical_model_id, fuel_type_id, created_date
	FROM make_model_year_regularizations`

// GetAllTriplets returns every triplet-level mapping.
func (r *MappingRepository) GetAllTriplets(ctx context.Context) ([]YearMapping, error) {
	rows, err := r.db.QueryContext(ctx, selectYearMapping+` ORDER BY id`)
	if isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list year mappings: %w", err)
	}
	defer rows.Close()
	return scanYearMappings(rows)
}

// PairLink is the ID correspondence of one mapping, used by query-time
// ID expansion.
type PairLink struct {
	UncuratedMakeID  int64
	UncuratedModelID int64
	CanonicalMakeID  int64
	CanonicalModelID int64
}

// LinksByCanonical returns the links whose canonical side matches the
// given ID sets. Either side may be empty, meaning that dimension is
// unconstrained; both empty yields no links. The query runs against
// the canonical-side index; it never scans vehicle records.
func (r *MappingRepository) LinksByCanonical(ctx context.Context, makeIDs, modelIDs []int64) ([]PairLink, error) {
	return r.links(ctx, "canonical_make_id", "canonical_model_id", makeIDs, modelIDs)
}

// LinksByUncurated is the inverse direction: links whose uncurated side
// matches the given IDs.
func (r *MappingRepository) LinksByUncurated(ctx context.Context, makeIDs, modelIDs []int64) ([]PairLink, error) {
	return r.links(ctx, "uncurated_make_id", "uncurated_model_id", makeIDs, modelIDs)
}

func (r *MappingRepository) links(ctx context.Context, makeCol, modelCol string, makeIDs, modelIDs []int64) ([]PairLink, error) {
	if len(makeIDs) == 0 && len(modelIDs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(makeIDs)+len(modelIDs))
	var conds []string
	if len(makeIDs) > 0 {
		for _, id := range makeIDs {
			args = append(args, id)
		}
		conds = append(conds, fmt.Sprintf(`%s IN (%s)`, makeCol, placeholders(1, len(makeIDs))))
	}
	if len(modelIDs) > 0 {
		start := len(args) + 1
		for _, id := range modelIDs {
			args = append(args, id)
		}
		conds = append(conds, fmt.Sprintf(`%s IN (%s)`, modelCol, placeholders(start, len(modelIDs))))
	}
	query := fmt.Sprintf(`
		SELECT uncurated_make_id, uncurated_model_id, canonical_make_id, canonical_model_id
		FROM make_model_regularizations
		WHERE %s
	`, strings.Join(conds, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mapping links: %w", err)
	}
	defer rows.Close()

	var links []PairLink
	for rows.Next() {
		var l PairLink
		if err := rows.Scan(&l.UncuratedMakeID, &l.UncuratedModelID, &l.CanonicalMakeID, &l.CanonicalModelID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanMappings(rows *sql.Rows) ([]Mapping, error) {
	var mappings []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(
			&m.ID, &m.UncuratedMakeID, &m.UncuratedModelID,
			&m.CanonicalMakeID, &m.CanonicalModelID,
			&m.VehicleTypeID, &m.FuelTypeID,
			&m.RecordCount, &m.YearRangeStart, &m.YearRangeEnd, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func scanYearMappings(rows *sql.Rows) ([]YearMapping, error) {
	var mappings []YearMapping
	for rows.Next() {
		var t YearMapping
		if err := rows.Scan(
			&t.ID, &t.UncuratedMakeID, &t.UncuratedModelID, &t.ModelYear,
			&t.CanonicalMakeID, &t.CanonicalModelID, &t.FuelTypeID, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		mappings = append(mappings, t)
	}
	return mappings, rows.Err()
}
