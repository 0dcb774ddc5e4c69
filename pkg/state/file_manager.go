package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"assetmigration/pkg/models"
)

// FileManager persists job state in a single JSON file, written through a
// temporary file and an atomic rename. Suited to single-node deployments
// where no database is available.
type FileManager struct {
	mu   sync.Mutex
	path string
}

// NewFileManager creates a file-backed state manager at the given path.
func NewFileManager(path string) *FileManager {
	return &FileManager{path: path}
}

func (m *FileManager) read() (map[string]*JobState, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*JobState{}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	jobs := map[string]*JobState{}
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	return jobs, nil
}

func (m *FileManager) write(jobs map[string]*JobState) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// SaveJob upserts one job snapshot.
func (m *FileManager) SaveJob(job *JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.read()
	if err != nil {
		return err
	}

	job.UpdatedAt = time.Now()
	jobs[job.ID] = job
	return m.write(jobs)
}

// LoadJob returns one job by id, or nil when it does not exist.
func (m *FileManager) LoadJob(jobID string) (*JobState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.read()
	if err != nil {
		return nil, err
	}
	return jobs[jobID], nil
}

// LoadLatest returns the most recently updated job.
func (m *FileManager) LoadLatest() (*JobState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.read()
	if err != nil {
		return nil, err
	}

	var latest *JobState
	for _, job := range jobs {
		if latest == nil || job.UpdatedAt.After(latest.UpdatedAt) {
			latest = job
		}
	}
	return latest, nil
}

// ListJobs returns all persisted jobs.
func (m *FileManager) ListJobs() ([]*JobState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.read()
	if err != nil {
		return nil, err
	}

	out := make([]*JobState, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job)
	}
	return out, nil
}

// DeleteJob removes one job.
func (m *FileManager) DeleteJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.read()
	if err != nil {
		return err
	}
	delete(jobs, jobID)
	return m.write(jobs)
}

// CleanupOldJobs removes finished jobs not touched within the window.
func (m *FileManager) CleanupOldJobs(olderThan time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs, err := m.read()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-olderThan)
	for id, job := range jobs {
		finished := job.Status == models.StatusCompleted ||
			job.Status == models.StatusFailed ||
			job.Status == models.StatusCancelled
		if finished && job.UpdatedAt.Before(cutoff) {
			delete(jobs, id)
		}
	}
	return m.write(jobs)
}

func (m *FileManager) Close() error {
	return nil
}
