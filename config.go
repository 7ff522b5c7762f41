package streamzip

import "time"

// Config holds configuration for the StreamZip service.
type Config struct {
	// Concurrency is the maximum number of retrieval tasks processed
	// concurrently by one worker instance.
	Concurrency int

	// Queue is the broker queue name carrying work descriptors.
	Queue string

	// OutputDir is the directory output artifacts are written to. It is
	// shared by all jobs; filenames are made unique per job.
	OutputDir string

	// Retention is how long a job record and its output artifact are kept
	// before eviction. It applies to every record regardless of status.
	Retention time.Duration

	// SweepSchedule is the cron expression for the record eviction sweep.
	// Standard 5-field expressions and descriptors like "@every 10m" are
	// accepted.
	SweepSchedule string

	// TaskTimeout is the maximum duration a single retrieval task may run.
	// Zero disables the timeout.
	TaskTimeout time.Duration

	// MaxRedeliveries is how many times the broker redelivers a message
	// whose task failed. Zero means failed tasks are not redelivered.
	MaxRedeliveries int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     1,
		Queue:           "downloads",
		OutputDir:       "./temp",
		Retention:       1 * time.Hour,
		SweepSchedule:   "@every 10m",
		TaskTimeout:     30 * time.Minute,
		MaxRedeliveries: 0,
		ShutdownTimeout: 30 * time.Second,
	}
}
