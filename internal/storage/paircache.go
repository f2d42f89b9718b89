package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PairCacheRepository manages the persisted uncurated-pair snapshot.
// The cache always holds the complete superset (exact matches
// included); narrower views are sliced in memory by the detector. The
// snapshot is only valid for the year-partition signature recorded in
// its meta row, and it is replaced wholesale, never patched.
type PairCacheRepository struct {
	db DB
}

// NewPairCacheRepository creates a new pair cache repository.
func NewPairCacheRepository(db DB) *PairCacheRepository {
	return &PairCacheRepository{db: db}
}

// Signature returns the year-partition signature the cached snapshot
// was computed for, or "" when no snapshot exists.
func (r *PairCacheRepository) Signature(ctx context.Context) (string, error) {
	var sig string
	err := r.db.QueryRowContext(ctx,
		`SELECT year_set_signature FROM uncurated_pair_cache_meta WHERE id = 1`).Scan(&sig)
	if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pair cache signature: %w", err)
	}
	return sig, nil
}

// Load returns the cached snapshot with make and model names resolved.
func (r *PairCacheRepository) Load(ctx context.Context) ([]UncuratedPair, error) {
	query := `
		SELECT c.make_id, mk.value, c.model_id, md.value,
			c.record_count, c.earliest_year, c.latest_year, c.is_exact_match
		FROM uncurated_pair_cache c
		JOIN make_enum mk ON mk.id = c.make_id
		JOIN model_enum md ON md.id = c.model_id
		ORDER BY mk.value, md.value
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load pair cache: %w", err)
	}
	defer rows.Close()

	var pairs []UncuratedPair
	for rows.Next() {
		var p UncuratedPair
		if err := rows.Scan(
			&p.MakeID, &p.MakeName, &p.ModelID, &p.ModelName,
			&p.RecordCount, &p.EarliestYear, &p.LatestYear, &p.IsExactMatch,
		); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Replace atomically swaps the snapshot for a new one tagged with the
// given signature. All-or-nothing: a cancelled or failed write leaves
// the previous snapshot intact.
func (r *PairCacheRepository) Replace(ctx context.Context, signature string, pairs []UncuratedPair) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pair cache replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM uncurated_pair_cache`); err != nil {
		return fmt.Errorf("clear pair cache: %w", err)
	}

	insert := `
		INSERT INTO uncurated_pair_cache
			(make_id, model_id, record_count, earliest_year, latest_year, is_exact_match)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx, insert,
			p.MakeID, p.ModelID, p.RecordCount, p.EarliestYear, p.LatestYear, p.IsExactMatch,
		); err != nil {
			return fmt.Errorf("write pair cache row: %w", err)
		}
	}

	meta := `
		INSERT INTO uncurated_pair_cache_meta (id, year_set_signature, computed_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET year_set_signature = $1, computed_at = $2
	`
	if _, err := tx.ExecContext(ctx, meta, signature, time.Now()); err != nil {
		return fmt.Errorf("write pair cache meta: %w", err)
	}

	return tx.Commit()
}

// Invalidate clears the signature so the next read recomputes. The
// snapshot rows are left behind; they are unreadable without a matching
// signature.
func (r *PairCacheRepository) Invalidate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM uncurated_pair_cache_meta WHERE id = 1`)
	if isMissingTable(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalidate pair cache: %w", err)
	}
	return nil
}
