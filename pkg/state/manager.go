// Package state persists migration job snapshots so progress survives
// process restarts. Credentials are never part of a snapshot.
package state

import (
	"time"

	"assetmigration/pkg/models"
)

// JobState is the persisted form of a migration job.
type JobState struct {
	ID                 string             `json:"id"`
	Status             models.JobStatus   `json:"status"`
	DestinationAccount string             `json:"destination_account"`
	Total              int                `json:"total"`
	Copied             int                `json:"copied"`
	Failed             int                `json:"failed"`
	Skipped            int                `json:"skipped"`
	Errors             []models.ItemError `json:"errors"`
	StartedAt          time.Time          `json:"started_at"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Manager is the persistence backend for job state.
type Manager interface {
	SaveJob(job *JobState) error
	LoadJob(jobID string) (*JobState, error)
	// LoadLatest returns the most recently updated job, or nil when none
	// has ever been persisted.
	LoadLatest() (*JobState, error)
	ListJobs() ([]*JobState, error)
	DeleteJob(jobID string) error
	CleanupOldJobs(olderThan time.Duration) error
	Close() error
}
