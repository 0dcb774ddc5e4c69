package models

import "time"

// ResourceType classifies an asset by the delivery pipeline that serves it.
type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
	ResourceRaw   ResourceType = "raw"
)

// AssetRef identifies one migratable object. PublicID is derived
// deterministically from SourceURL; the same URL always yields the same ref.
type AssetRef struct {
	SourceURL    string       `json:"source_url"`
	PublicID     string       `json:"public_id"`
	Folder       string       `json:"folder,omitempty"`
	ResourceType ResourceType `json:"resource_type"`
	Format       string       `json:"format,omitempty"`
	Filename     string       `json:"filename"`
}

// DestinationCredentials authenticate against the destination account.
// Supplied by the caller at start time and never persisted in plaintext.
type DestinationCredentials struct {
	AccountName string `json:"account_name"`
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
}

// JobStatus is the lifecycle state of a migration job.
type JobStatus string

const (
	StatusIdle       JobStatus = "idle"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// ItemError records one per-asset failure for operator inspection.
type ItemError struct {
	Asset   AssetRef  `json:"asset"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// MigrationStatus is a read-only snapshot of the current migration job.
type MigrationStatus struct {
	JobID              string      `json:"job_id"`
	Status             JobStatus   `json:"status"`
	DestinationAccount string      `json:"destination_account"`
	Total              int         `json:"total"`
	Copied             int         `json:"copied"`
	Failed             int         `json:"failed"`
	Skipped            int         `json:"skipped"`
	Percentage         float64     `json:"percentage"`
	RecentErrors       []ItemError `json:"recent_errors"`
	StartedAt          time.Time   `json:"started_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
}

// RetiredAccount describes a storage account no longer used for new writes
// but still referenced by stored URLs.
type RetiredAccount struct {
	AccountName       string    `json:"account_name"`
	Host              string    `json:"host"`
	RetiredAt         time.Time `json:"retired_at"`
	MigratedToAccount string    `json:"migrated_to_account"`
}
