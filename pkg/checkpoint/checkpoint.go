// Package checkpoint persists the set of already-migrated asset identifiers
// so an interrupted migration can resume without re-transferring anything.
// A checkpoint is scoped to one destination account: a record written for
// account A is never reused for account B.
package checkpoint

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrAccountMismatch is returned by Load when a persisted record exists but
// belongs to a different destination account. Callers must log it and
// proceed as if no checkpoint exists.
var ErrAccountMismatch = errors.New("checkpoint belongs to a different destination account")

// Record is the in-memory working set of completed public ids for one
// destination account.
type Record struct {
	mu                 sync.RWMutex
	destinationAccount string
	completedIDs       map[string]struct{}
	lastUpdated        time.Time
}

// NewRecord creates an empty record for the given destination account.
func NewRecord(destinationAccount string) *Record {
	return &Record{
		destinationAccount: destinationAccount,
		completedIDs:       make(map[string]struct{}),
	}
}

// DestinationAccount returns the account this record was created for.
func (r *Record) DestinationAccount() string {
	return r.destinationAccount
}

// MarkCompleted adds a public id to the working set. It does not flush;
// durability is the caller's responsibility via Store.Save.
func (r *Record) MarkCompleted(publicID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completedIDs[publicID] = struct{}{}
	r.lastUpdated = time.Now()
}

// Has reports whether a public id has already been migrated.
func (r *Record) Has(publicID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.completedIDs[publicID]
	return ok
}

// Len returns the number of completed ids.
func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.completedIDs)
}

// LastUpdated returns the time of the most recent mutation.
func (r *Record) LastUpdated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastUpdated
}

// CompletedIDs returns a sorted copy of the working set.
func (r *Record) CompletedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.completedIDs))
	for id := range r.completedIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Record) restore(ids []string, lastUpdated time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		r.completedIDs[id] = struct{}{}
	}
	r.lastUpdated = lastUpdated
}

// Store is the durable medium behind Record. Implementations must write
// atomically: a crash mid-save never leaves a partial checkpoint behind.
type Store interface {
	// Load returns the record for the given account, nil when none exists,
	// or ErrAccountMismatch when the persisted record was written for a
	// different account.
	Load(destinationAccount string) (*Record, error)

	// Save atomically overwrites the persisted checkpoint with the record's
	// current working set.
	Save(record *Record) error

	Close() error
}
