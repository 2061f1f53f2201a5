package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/registry"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// CreateRun inserts a running automation run row.
func (db *DB) CreateRun(ctx context.Context, run AutomationRun) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO automation_runs (id, caller, status, started_at)
		 VALUES ($1, $2, $3, $4)`,
		run.ID, run.Caller, RunStatusRunning, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun records the final status of a run.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, applied int, runErr error) error {
	var msg *string
	if runErr != nil {
		s := runErr.Error()
		msg = &s
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE automation_runs SET status = $1, applied = $2, error = $3, completed_at = NOW() WHERE id = $4`,
		status, applied, msg, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// ListRuns retrieves the caller's most recent runs.
func (db *DB) ListRuns(ctx context.Context, caller string, limit int) ([]AutomationRun, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, caller, status, applied, error, started_at, completed_at
		 FROM automation_runs WHERE caller = $1 ORDER BY started_at DESC LIMIT $2`,
		caller, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []AutomationRun{}
	for rows.Next() {
		var r AutomationRun
		if err := rows.Scan(&r.ID, &r.Caller, &r.Status, &r.Applied, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunStatus maps a run outcome to its stored status.
func RunStatus(err error, stopped bool) string {
	switch {
	case err != nil:
		return RunStatusFailed
	case stopped:
		return RunStatusStopped
	default:
		return RunStatusCompleted
	}
}

// runRecorder persists registry run boundaries.
type runRecorder struct {
	db  *DB
	log logrus.FieldLogger
}

// RunRecorder returns a registry lifecycle that writes automation_runs rows.
// Storage errors are logged; they never affect the run.
func (db *DB) RunRecorder(log logrus.FieldLogger) registry.Lifecycle {
	return &runRecorder{db: db, log: log}
}

func (r *runRecorder) RunStarted(ctx context.Context, h *registry.Handle) {
	err := r.db.CreateRun(ctx, AutomationRun{ID: h.ID, Caller: h.Caller, StartedAt: h.StartedAt})
	if err != nil {
		r.log.WithError(err).WithField("run_id", h.ID).Error("Failed to record run start")
	}
}

func (r *runRecorder) RunFinished(ctx context.Context, h *registry.Handle, result *types.RunResult, runErr error) {
	applied := 0
	if result != nil {
		applied = len(result.Jobs)
	}
	if err := r.db.CompleteRun(ctx, h.ID, RunStatus(runErr, h.Stopping()), applied, runErr); err != nil {
		r.log.WithError(err).WithField("run_id", h.ID).Error("Failed to record run completion")
	}
}
