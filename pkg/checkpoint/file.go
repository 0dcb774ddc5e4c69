package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists checkpoints as a single JSON file. Saves go through a
// temporary file followed by an atomic rename, so a crash mid-write leaves
// the previous checkpoint intact.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed checkpoint store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type fileRecord struct {
	DestinationAccount string    `json:"destination_account"`
	CompletedIDs       []string  `json:"completed_ids"`
	LastUpdated        time.Time `json:"last_updated"`
}

// Load reads the checkpoint file and returns the record for the requested
// account. A missing file yields (nil, nil); a record written for another
// account yields ErrAccountMismatch.
func (s *FileStore) Load(destinationAccount string) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var fr fileRecord
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint file: %w", err)
	}

	if fr.DestinationAccount != destinationAccount {
		return nil, fmt.Errorf("%w: have %q, want %q",
			ErrAccountMismatch, fr.DestinationAccount, destinationAccount)
	}

	record := NewRecord(destinationAccount)
	record.restore(fr.CompletedIDs, fr.LastUpdated)
	return record, nil
}

// Save writes the record to a temporary file and renames it over the
// checkpoint path.
func (s *FileStore) Save(record *Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	fr := fileRecord{
		DestinationAccount: record.DestinationAccount(),
		CompletedIDs:       record.CompletedIDs(),
		LastUpdated:        record.LastUpdated(),
	}

	data, err := json.MarshalIndent(fr, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

func (s *FileStore) Close() error {
	return nil
}
