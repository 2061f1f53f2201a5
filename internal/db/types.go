package db

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses stored in automation_runs.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusStopped   = "stopped"
	RunStatusFailed    = "failed"
)

// AutomationRun represents an automation run record
type AutomationRun struct {
	ID          uuid.UUID  `json:"id"`
	Caller      string     `json:"caller"`
	Status      string     `json:"status"`
	Applied     int        `json:"applied"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Application is a stored application history row.
type Application struct {
	ID        uuid.UUID `json:"id"`
	JobID     string    `json:"job_id"`
	Title     string    `json:"jobTitle"`
	Company   string    `json:"company"`
	Status    string    `json:"status"`
	AppliedAt time.Time `json:"timestamp"`
}
