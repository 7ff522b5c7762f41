package job

import (
	"context"
	"time"

	"github.com/SpicychieF05/StreamZip/id"
)

// Store defines the persistence contract for jobs. It is the authoritative
// mapping from job identifier to Job record; exactly one record exists per
// identifier and identifiers are never reused.
//
// Every call is a single atomic operation at the storage layer. The store
// hands out copies, so callers never alias its internal state.
type Store interface {
	// CreateJob persists a new job in queued state. Returns
	// streamzip.ErrJobExists if the identifier is already present.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID. Returns streamzip.ErrJobNotFound if
	// the record is absent; whether it never existed or was evicted is
	// not distinguishable.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob merges the given partial update into the existing record
	// and bumps UpdatedAt. Last-writer-wins: there is no optimistic
	// concurrency check. Returns the updated record.
	UpdateJob(ctx context.Context, jobID id.JobID, u Update) (*Job, error)

	// EvictJob unconditionally removes the record. Absent records are a
	// no-op, not an error.
	EvictJob(ctx context.Context, jobID id.JobID) error

	// EvictExpired removes every record created before the cutoff,
	// regardless of status, and reports how many were evicted.
	EvictExpired(ctx context.Context, cutoff time.Time) (int, error)
}
