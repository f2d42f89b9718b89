package storage

import (
	"context"
	"fmt"
	"strings"
)

// RecordRepository reads the vehicle record source. Records are
// immutable once imported; this repository never updates them.
type RecordRepository struct {
	db DB
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Insert adds one vehicle record. Used by seeding and tests; bulk CSV
// import lives outside this module.
func (r *RecordRepository) Insert(ctx context.Context, rec *VehicleRecord) error {
	query := `
		INSERT INTO vehicle_records (make_id, model_id, year, model_year, fuel_type_id, vehicle_type_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.MakeID, rec.ModelID, rec.Year, rec.ModelYear, rec.FuelTypeID, rec.VehicleTypeID,
	)
	if err != nil {
		return fmt.Errorf("insert vehicle record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// CuratedCombinations returns the distinct (make, model, fuel type,
// vehicle type, model year) tuples observed in the given curated years,
// with make and model names resolved. An empty year set yields no rows.
func (r *RecordRepository) CuratedCombinations(ctx context.Context, years []int) ([]CuratedCombination, error) {
	if len(years) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(years))
	for _, y := range years {
		args = append(args, y)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT v.make_id, mk.value, v.model_id, md.value,
			v.fuel_type_id, v.vehicle_type_id, v.model_year
		FROM vehicle_records v
		JOIN make_enum mk ON mk.id = v.make_id
		JOIN model_enum md ON md.id = v.model_id
		WHERE v.year IN (%s)
	`, placeholders(1, len(years)))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("curated combinations: %w", err)
	}
	defer rows.Close()

	var combos []CuratedCombination
	for rows.Next() {
		var c CuratedCombination
		if err := rows.Scan(
			&c.MakeID, &c.MakeName, &c.ModelID, &c.ModelName,
			&c.FuelTypeID, &c.VehicleTypeID, &c.ModelYear,
		); err != nil {
			return nil, err
		}
		combos = append(combos, c)
	}
	return combos, rows.Err()
}

// UncuratedPairs computes every (make, model) combination that appears
// in the uncurated years and never appears in any curated year. The
// curated-side check is NOT EXISTS on the exact pair: a model spanning
// both partitions is not uncurated, no matter how many uncurated-year
// records it has. IsExactMatch is left false; the detector annotates it
// against the canonical hierarchy.
func (r *RecordRepository) UncuratedPairs(ctx context.Context, uncuratedYears, curatedYears []int) ([]UncuratedPair, error) {
	if len(uncuratedYears) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(uncuratedYears)+len(curatedYears))
	for _, y := range uncuratedYears {
		args = append(args, y)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
		SELECT v.make_id, mk.value, v.model_id, md.value,
			COUNT(*), MIN(v.year), MAX(v.year)
		FROM vehicle_records v
		JOIN make_enum mk ON mk.id = v.make_id
		JOIN model_enum md ON md.id = v.model_id
		WHERE v.year IN (%s)
	`, placeholders(1, len(uncuratedYears)))

	if len(curatedYears) > 0 {
		for _, y := range curatedYears {
			args = append(args, y)
		}
		fmt.Fprintf(&b, `
			AND NOT EXISTS (
				SELECT 1 FROM vehicle_records c
				WHERE c.make_id = v.make_id
				  AND c.model_id = v.model_id
				  AND c.year IN (%s)
			)
		`, placeholders(len(uncuratedYears)+1, len(curatedYears)))
	}

	b.WriteString(`
		GROUP BY v.make_id, mk.value, v.model_id, md.value
		ORDER BY mk.value, md.value
	`)

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("uncurated pairs: %w", err)
	}
	defer rows.Close()

	var pairs []UncuratedPair
	for rows.Next() {
		var p UncuratedPair
		if err := rows.Scan(
			&p.MakeID, &p.MakeName, &p.ModelID, &p.ModelName,
			&p.RecordCount, &p.EarliestYear, &p.LatestYear,
		); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ModelYears returns the distinct model years observed for a pair
// within the given data-collection years, sorted ascending.
func (r *RecordRepository) ModelYears(ctx context.Context, makeID, modelID int64, years []int) ([]int, error) {
	if len(years) == 0 {
		return nil, nil
	}

	args := []interface{}{makeID, modelID}
	for _, y := range years {
		args = append(args, y)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT model_year FROM vehicle_records
		WHERE make_id = $1 AND model_id = $2 AND model_year IS NOT NULL
		  AND year IN (%s)
		ORDER BY model_year
	`, placeholders(3, len(years)))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("model years: %w", err)
	}
	defer rows.Close()

	var modelYears []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		modelYears = append(modelYears, y)
	}
	return modelYears, rows.Err()
}

// placeholders renders $start..$start+n-1 separated by commas.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
