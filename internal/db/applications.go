package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

// AppendApplications adds records to the caller's history. Records already
// stored are ignored, so retrying an append is safe.
func (db *DB) AppendApplications(ctx context.Context, caller string, records []types.ApplicationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(
			`INSERT INTO applications (id, caller, job_id, title, company, status, applied_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (caller, job_id, applied_at) DO NOTHING`,
			uuid.New(), caller, r.JobID, r.Title, r.Company, r.Status, r.Timestamp,
		)
	}
	if err := db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append applications: %w", err)
	}
	return nil
}

// ListApplications returns the caller's history, newest first.
func (db *DB) ListApplications(ctx context.Context, caller string, limit int) ([]Application, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, title, company, status, applied_at
		 FROM applications WHERE caller = $1 ORDER BY applied_at DESC LIMIT $2`,
		caller, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := []Application{}
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.JobID, &a.Title, &a.Company, &a.Status, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}
