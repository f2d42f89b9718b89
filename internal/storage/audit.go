package storage

import (
	"context"
	"fmt"
	"time"
)

// AuditRepository records auto-assignment runs for operational review.
type AuditRepository struct {
	db DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Save writes one run audit row.
func (r *AuditRepository) Save(ctx context.Context, a *RunAudit) error {
	query := `
		INSERT INTO auto_assignment_runs
			(id, started_at, duration_ms, pairs_considered, pairs_assigned, pairs_skipped, pairs_failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.StartedAt, a.Duration.Milliseconds(),
		a.PairsConsidered, a.PairsAssigned, a.PairsSkipped, a.PairsFailed,
	)
	if err != nil {
		return fmt.Errorf("save run audit: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]RunAudit, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, started_at, duration_ms, pairs_considered, pairs_assigned, pairs_skipped, pairs_failed
		FROM auto_assignment_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list run audits: %w", err)
	}
	defer rows.Close()

	var audits []RunAudit
	for rows.Next() {
		var a RunAudit
		var ms int64
		if err := rows.Scan(&a.ID, &a.StartedAt, &ms,
			&a.PairsConsidered, &a.PairsAssigned, &a.PairsSkipped, &a.PairsFailed); err != nil {
			return nil, err
		}
		a.Duration = time.Duration(ms) * time.Millisecond
		audits = append(audits, a)
	}
	return audits, rows.Err()
}
