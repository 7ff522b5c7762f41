// Package cleanup bounds resource growth: the Janitor sweeps expired job
// records out of the store on a cron schedule, and the Reaper deletes
// downloaded artifacts once their retention window passes. The two run
// independently; records and files age out on their own clocks.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/SpicychieF05/StreamZip/job"
)

// cronParser supports standard 5-field cron and descriptors like
// "@every 10m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithRetention sets how long job records are kept after creation.
func WithRetention(d time.Duration) JanitorOption {
	return func(j *Janitor) { j.retention = d }
}

// Janitor sweeps expired job records on a schedule. Records are evicted by
// creation time regardless of status, so a stuck processing record cannot
// pin memory forever.
type Janitor struct {
	store     job.Store
	schedule  cronlib.Schedule
	retention time.Duration
	logger    *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	once   bool
}

// NewJanitor creates a Janitor. scheduleExpr is a cron expression or
// descriptor; the default retention is one hour.
func NewJanitor(store job.Store, scheduleExpr string, logger *slog.Logger, opts ...JanitorOption) (*Janitor, error) {
	schedule, err := ParseSchedule(scheduleExpr)
	if err != nil {
		return nil, err
	}
	j := &Janitor{
		store:     store,
		schedule:  schedule,
		retention: time.Hour,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Start launches the sweep loop.
func (j *Janitor) Start(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.once {
		return nil
	}
	j.once = true

	j.wg.Add(1)
	go j.sweepLoop()
	j.logger.Info("record janitor started",
		slog.Duration("retention", j.retention),
	)
	return nil
}

// Stop signals the sweep loop to stop and waits for it to finish.
func (j *Janitor) Stop(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.once {
		return nil
	}
	close(j.stopCh)
	j.wg.Wait()
	j.once = false
	j.stopCh = make(chan struct{})
	j.logger.Info("record janitor stopped")
	return nil
}

func (j *Janitor) sweepLoop() {
	defer j.wg.Done()

	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-j.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			j.Sweep(context.Background())
		}
	}
}

// Sweep evicts all records older than the retention window. Exposed so
// operators and tests can force a sweep outside the schedule.
func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)
	n, err := j.store.EvictExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("record sweep failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		j.logger.Info("expired job records evicted",
			slog.Int("count", n),
			slog.Time("cutoff", cutoff),
		)
	}
}
