package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/SpicychieF05/StreamZip/hook"
	"github.com/SpicychieF05/StreamZip/job"
)

// Compile-time interface checks.
var (
	_ hook.Extension    = (*Reaper)(nil)
	_ hook.JobCompleted = (*Reaper)(nil)
	_ hook.Shutdown     = (*Reaper)(nil)
)

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithArtifactRetention sets how long downloaded files are kept.
func WithArtifactRetention(d time.Duration) ReaperOption {
	return func(r *Reaper) { r.retention = d }
}

// Reaper deletes downloaded artifacts after their retention window. It
// hooks JobCompleted to arm a one-shot timer per file; the timer fires
// even after the job record itself has been swept, since the file and the
// record age out independently.
type Reaper struct {
	outputDir string
	retention time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer // keyed by filename
}

// NewReaper creates a Reaper for artifacts in outputDir. The default
// retention is one hour.
func NewReaper(outputDir string, logger *slog.Logger, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		outputDir: outputDir,
		retention: time.Hour,
		logger:    logger,
		timers:    make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name implements hook.Extension.
func (r *Reaper) Name() string { return "artifact-reaper" }

// OnJobCompleted implements hook.JobCompleted. It schedules deletion of
// the job's output file once the retention window passes.
func (r *Reaper) OnJobCompleted(_ context.Context, j *job.Job, _ time.Duration) error {
	if j.Filename == "" {
		return nil
	}
	r.schedule(j.Filename)
	return nil
}

func (r *Reaper) schedule(filename string) {
	r.scheduleAfter(filename, r.retention)
}

func (r *Reaper) scheduleAfter(filename string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[filename]; ok {
		t.Stop()
	}
	r.timers[filename] = time.AfterFunc(d, func() {
		r.reap(filename)
	})
}

func (r *Reaper) reap(filename string) {
	r.mu.Lock()
	delete(r.timers, filename)
	r.mu.Unlock()

	path := filepath.Join(r.outputDir, filename)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return // already gone, nothing to report
		}
		r.logger.Warn("failed to delete expired artifact",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("expired artifact deleted", slog.String("filename", filename))
}

// OnShutdown implements hook.Shutdown. Pending timers are stopped; files
// left behind are picked up by the next process via ReapLeftovers.
func (r *Reaper) OnShutdown(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.timers {
		t.Stop()
		delete(r.timers, name)
	}
	return nil
}

// ReapLeftovers deletes artifacts in the output directory whose
// modification time predates the retention window. Called at startup to
// clear files orphaned by a previous process.
func (r *Reaper) ReapLeftovers(_ context.Context) error {
	entries, err := os.ReadDir(r.outputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-r.retention)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			// Still inside the window: arm a timer for the remainder.
			r.scheduleAfter(entry.Name(), time.Until(info.ModTime().Add(r.retention)))
			continue
		}
		r.reap(entry.Name())
	}
	return nil
}
