package checkpoint

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists checkpoints in an SQLite database, one row per
// (destination account, public id). Rows are naturally scoped by account,
// so loading a never-seen account simply yields no checkpoint. Saves run in
// a single transaction, which gives the same all-or-nothing guarantee as
// the file store's rename.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// NewSQLiteStore opens (and if needed initializes) the checkpoint database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS completed_assets (
		destination_account TEXT NOT NULL,
		public_id TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (destination_account, public_id)
	);

	CREATE INDEX IF NOT EXISTS idx_completed_assets_account
		ON completed_assets(destination_account);
	`

	_, err := s.db.Exec(query)
	return err
}

// Load returns the record for the requested account, or (nil, nil) when no
// rows exist for it.
func (s *SQLiteStore) Load(destinationAccount string) (*Record, error) {
	query := `
	SELECT public_id, updated_at FROM completed_assets
	WHERE destination_account = ?
	`

	rows, err := s.db.Query(query, destinationAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	defer rows.Close()

	var ids []string
	var lastUpdated time.Time
	for rows.Next() {
		var id string
		var updatedAt time.Time
		if err := rows.Scan(&id, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		ids = append(ids, id)
		if updatedAt.After(lastUpdated) {
			lastUpdated = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	record := NewRecord(destinationAccount)
	record.restore(ids, lastUpdated)
	return record, nil
}

// Save upserts every completed id for the record's account in one
// transaction.
func (s *SQLiteStore) Save(record *Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin checkpoint transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO completed_assets (destination_account, public_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(destination_account, public_id) DO UPDATE SET
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare checkpoint statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	account := record.DestinationAccount()
	for _, id := range record.CompletedIDs() {
		if _, err := stmt.Exec(account, id, now); err != nil {
			return fmt.Errorf("failed to save checkpoint row: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
