// Package types provides type definitions for structured data shared across the easy-apply agent.
package types

import (
	"sync"
	"time"
)

// Display fallbacks used when a job card does not expose its metadata.
const (
	UnknownTitle   = "Unknown Position"
	UnknownCompany = "Unknown Company"
)

// StatusApplied is the only status an ApplicationRecord is ever created with.
const StatusApplied = "Applied"

// JobPosting is a single job card discovered on the platform.
// JobID is the identity; Title and Company are best-effort display metadata.
type JobPosting struct {
	JobID   string `json:"job_id"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

// ApplicationRecord is created once per successful submission and never mutated.
type ApplicationRecord struct {
	JobID     string    `json:"job_id"`
	Title     string    `json:"jobTitle"`
	Company   string    `json:"company"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewApplicationRecord builds an Applied record for a job at the given time.
func NewApplicationRecord(job JobPosting, at time.Time) ApplicationRecord {
	return ApplicationRecord{
		JobID:     job.JobID,
		Title:     job.Title,
		Company:   job.Company,
		Status:    StatusApplied,
		Timestamp: at,
	}
}

// RunResult is the ordered set of records produced by one automation run.
type RunResult struct {
	Jobs []ApplicationRecord `json:"jobs"`
}

// Summary is the completion payload reported to status observers.
type Summary struct {
	TotalJobs    int                 `json:"totalJobs"`
	AppliedJobs  int                 `json:"appliedJobs"`
	SuccessRate  int                 `json:"successRate"`
	Applications []ApplicationRecord `json:"applications"`
}

// Summarize converts a run result into the completion payload.
func (r *RunResult) Summarize() Summary {
	jobs := r.Jobs
	if jobs == nil {
		jobs = []ApplicationRecord{}
	}
	rate := 0
	if len(jobs) > 0 {
		rate = 100
	}
	return Summary{
		TotalJobs:    len(jobs),
		AppliedJobs:  len(jobs),
		SuccessRate:  rate,
		Applications: jobs,
	}
}

// SeenSet tracks job IDs encountered during one run. It only grows.
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// Add records id and reports whether it was new.
func (s *SeenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Has reports whether id was already recorded.
func (s *SeenSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of recorded ids.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
