package worker_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SpicychieF05/StreamZip/hook"
	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
	"github.com/SpicychieF05/StreamZip/middleware"
	memoryqueue "github.com/SpicychieF05/StreamZip/queue/memory"
	"github.com/SpicychieF05/StreamZip/retrieval"
	memorystore "github.com/SpicychieF05/StreamZip/store/memory"
	"github.com/SpicychieF05/StreamZip/worker"
)

// stubFetcher returns canned metadata and records download targets.
type stubFetcher struct {
	infoErr  error
	mediaErr error
	title    string
}

func (f *stubFetcher) FetchInfo(_ context.Context, url string) (*retrieval.Info, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	title := f.title
	if title == "" {
		title = "Test Video"
	}
	return &retrieval.Info{ID: "abc", Title: title, Author: "tester"}, nil
}

func (f *stubFetcher) FetchMedia(_ context.Context, _, _ string, _ retrieval.MediaKind) error {
	return f.mediaErr
}

type fixture struct {
	store  *memorystore.Store
	broker *memoryqueue.Broker
	pool   *worker.Pool
}

func newFixture(t *testing.T, fetcher retrieval.Fetcher) *fixture {
	t.Helper()

	store := memorystore.New()
	broker := memoryqueue.New()
	logger := slog.Default()
	reg := hook.NewRegistry(logger)

	exec := worker.NewExecutor(store, fetcher, reg, t.TempDir(), logger,
		middleware.Recover(logger),
		middleware.Logging(logger),
	)
	pool := worker.NewPool(broker, exec, reg, logger)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
		_ = broker.Close()
	})

	return &fixture{store: store, broker: broker, pool: pool}
}

// submit creates the record and enqueues its message, mirroring intake.
func (f *fixture) submit(t *testing.T, typ job.Type) *job.Job {
	t.Helper()
	j := job.New(typ, "https://youtube.com/watch?v=abc")
	if err := f.store.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	msg := job.Message{JobID: j.ID, Type: j.Type, URL: j.URL}
	if err := f.broker.Enqueue(context.Background(), msg); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return j
}

// waitForTerminal polls the store until the record reaches a terminal
// status or the deadline passes.
func (f *fixture) waitForTerminal(t *testing.T, jobID id.JobID) *job.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := f.store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if j.Status.Terminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
	return nil
}

func TestPoolCompletesVideoJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{title: "Never Gonna Give You Up"})
	j := f.submit(t, job.TypeVideo)

	done := f.waitForTerminal(t, j.ID)
	if done.Status != job.StatusCompleted {
		t.Fatalf("status = %q (error %q), want completed", done.Status, done.Error)
	}
	if done.Progress != 100 {
		t.Errorf("progress = %d, want 100", done.Progress)
	}
	if !strings.HasPrefix(done.OutputPath, "/files/Never_Gonna_Give_You_Up_") {
		t.Errorf("outputPath = %q, want /files/ prefix with sanitized title", done.OutputPath)
	}
	if !strings.HasSuffix(done.Filename, ".mp4") {
		t.Errorf("filename = %q, want .mp4 suffix", done.Filename)
	}
	if done.Error != "" {
		t.Errorf("error = %q, want empty", done.Error)
	}
}

func TestPoolCompletesAudioJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	j := f.submit(t, job.TypeAudio)

	done := f.waitForTerminal(t, j.ID)
	if done.Status != job.StatusCompleted {
		t.Fatalf("status = %q, want completed", done.Status)
	}
	if !strings.HasSuffix(done.Filename, ".m4a") {
		t.Errorf("filename = %q, want .m4a suffix", done.Filename)
	}
}

func TestPoolMarksPrivateVideoJobFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{
		infoErr: fmt.Errorf("%w: ERROR: Private video. Sign in if you've been granted access", retrieval.ErrPrivate),
	})
	j := f.submit(t, job.TypeVideo)

	done := f.waitForTerminal(t, j.ID)
	if done.Status != job.StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if done.Progress != 0 {
		t.Errorf("progress = %d, want 0", done.Progress)
	}
	if done.Error != "Private video cannot be accessed" {
		t.Errorf("error = %q, want private video message", done.Error)
	}
	if !strings.Contains(strings.ToLower(done.Error), "private") {
		t.Errorf("error = %q carries no private-video indicator", done.Error)
	}
	if done.OutputPath != "" || done.Filename != "" {
		t.Errorf("output fields set on failed job: (%q, %q)", done.OutputPath, done.Filename)
	}
}

func TestPoolMarksAgeRestrictedJobFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{
		infoErr: fmt.Errorf("%w: ERROR: Sign in to confirm your age", retrieval.ErrAgeRestricted),
	})
	j := f.submit(t, job.TypeVideo)

	done := f.waitForTerminal(t, j.ID)
	if done.Status != job.StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if done.Error != "Age-restricted video cannot be downloaded" {
		t.Errorf("error = %q, want age-restricted message", done.Error)
	}
}

func TestPoolMarksForbiddenJobFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{
		infoErr: fmt.Errorf("%w: members only", retrieval.ErrForbidden),
	})
	j := f.submit(t, job.TypeVideo)

	done := f.waitForTerminal(t, j.ID)
	if done.Status != job.StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if done.Error != "Video cannot be accessed" {
		t.Errorf("error = %q, want access message", done.Error)
	}
}

// recordingStore decorates the memory store to capture every progress
// value written through UpdateJob.
type recordingStore struct {
	*memorystore.Store

	mu       sync.Mutex
	progress []int
}

func (s *recordingStore) UpdateJob(ctx context.Context, jobID id.JobID, u job.Update) (*job.Job, error) {
	j, err := s.Store.UpdateJob(ctx, jobID, u)
	if err == nil && u.Progress != nil {
		s.mu.Lock()
		s.progress = append(s.progress, *u.Progress)
		s.mu.Unlock()
	}
	return j, err
}

func (s *recordingStore) snapshot() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.progress...)
}

func TestPoolReportsProgressMilestonesInOrder(t *testing.T) {
	t.Parallel()

	store := &recordingStore{Store: memorystore.New()}
	broker := memoryqueue.New()
	logger := slog.Default()
	reg := hook.NewRegistry(logger)

	exec := worker.NewExecutor(store, &stubFetcher{}, reg, t.TempDir(), logger,
		middleware.Recover(logger),
	)
	pool := worker.NewPool(broker, exec, reg, logger)
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
		_ = broker.Close()
	})

	j := job.New(job.TypeVideo, "https://youtube.com/watch?v=abc")
	if err := store.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := broker.Enqueue(context.Background(), job.Message{JobID: j.ID, Type: j.Type, URL: j.URL}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.GetJob(context.Background(), j.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status.Terminal() {
			if got.Status != job.StatusCompleted {
				t.Fatalf("status = %q (error %q), want completed", got.Status, got.Error)
			}
			want := []int{10, 30, 100}
			if got := store.snapshot(); !slices.Equal(got, want) {
				t.Fatalf("progress sequence = %v, want %v", got, want)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal status")
}

func TestPoolMarksDownloadFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{mediaErr: errors.New("network reset")})
	j := f.submit(t, job.TypeVideo)

	done := f.waitForTerminal(t, j.ID)
	if done.Status != job.StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if done.Error != "network reset" {
		t.Errorf("error = %q, want underlying message", done.Error)
	}
}

func TestPoolSkipsEvictedJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})

	// Message for a record that was never stored (or already swept).
	msg := job.Message{
		JobID: id.NewJobID(),
		Type:  job.TypeVideo,
		URL:   "https://youtube.com/watch?v=abc",
	}
	if err := f.broker.Enqueue(context.Background(), msg); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// A real job submitted afterwards must still be processed, proving the
	// orphan message was settled rather than wedging the worker.
	j := f.submit(t, job.TypeVideo)
	done := f.waitForTerminal(t, j.ID)
	if done.Status != job.StatusCompleted {
		t.Fatalf("status = %q, want completed", done.Status)
	}
}

func TestPoolStopIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := f.pool.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := f.pool.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
