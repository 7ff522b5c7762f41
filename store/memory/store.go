// Package memory provides a fully in-memory job.Store.
//
// Safe for concurrent access. Intended for unit testing, development, and
// single-process deployments where records do not need to survive restarts.
package memory

import (
	"context"
	"sync"
	"time"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
)

var _ job.Store = (*Store)(nil)

// Store keeps job records in a mutex-guarded map.
//
// Updates are last-writer-wins: concurrent UpdateJob calls against the same
// record serialize on the lock, and the final stored state is that of
// whichever call acquired the lock last. Callers that need stricter
// coordination must provide it themselves.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*job.Job),
	}
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// CreateJob persists a new job record.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return streamzip.ErrJobExists
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// GetJob returns a copy of the record for the given id.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, streamzip.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJob applies the partial update to the stored record and returns a
// copy of the result. UpdatedAt is bumped even when the update is empty.
func (m *Store) UpdateJob(_ context.Context, jobID id.JobID, u job.Update) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, streamzip.ErrJobNotFound
	}
	u.Apply(j)
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	return &cp, nil
}

// EvictJob removes the record for the given id. Removing an absent record
// is not an error.
func (m *Store) EvictJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.jobs, jobID.String())
	return nil
}

// EvictExpired removes every record created strictly before cutoff and
// returns the number removed.
func (m *Store) EvictExpired(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, j := range m.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(m.jobs, key)
			n++
		}
	}
	return n, nil
}

// Len reports the number of records currently held. Used by tests and the
// sweep loop's debug logging.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}
