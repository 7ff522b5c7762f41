package engine_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/engine"
	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
	memoryqueue "github.com/SpicychieF05/StreamZip/queue/memory"
	"github.com/SpicychieF05/StreamZip/retrieval"
	memorystore "github.com/SpicychieF05/StreamZip/store/memory"
)

type stubFetcher struct{}

func (stubFetcher) FetchInfo(_ context.Context, _ string) (*retrieval.Info, error) {
	return &retrieval.Info{ID: "abc", Title: "Test Video", Author: "tester"}, nil
}

func (stubFetcher) FetchMedia(_ context.Context, _, _ string, _ retrieval.MediaKind) error {
	return nil
}

func newTestEngine(t *testing.T) (*engine.Engine, *memorystore.Store, *memoryqueue.Broker) {
	t.Helper()

	store := memorystore.New()
	broker := memoryqueue.New()

	cfg := streamzip.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	eng, err := engine.New(store, broker, stubFetcher{}, engine.WithConfig(cfg))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { _ = broker.Close() })
	return eng, store, broker
}

func TestNewRequiresStoreAndBroker(t *testing.T) {
	t.Parallel()

	if _, err := engine.New(nil, memoryqueue.New(), stubFetcher{}); !errors.Is(err, streamzip.ErrNoStore) {
		t.Errorf("error = %v, want ErrNoStore", err)
	}
	if _, err := engine.New(memorystore.New(), nil, stubFetcher{}); !errors.Is(err, streamzip.ErrNoBroker) {
		t.Errorf("error = %v, want ErrNoBroker", err)
	}
}

func TestNewRejectsBadSweepSchedule(t *testing.T) {
	t.Parallel()

	cfg := streamzip.DefaultConfig()
	cfg.SweepSchedule = "bogus"
	_, err := engine.New(memorystore.New(), memoryqueue.New(), stubFetcher{}, engine.WithConfig(cfg))
	if err == nil {
		t.Fatal("expected error for invalid sweep schedule")
	}
}

func TestCreateJob(t *testing.T) {
	t.Parallel()

	eng, store, broker := newTestEngine(t)
	ctx := context.Background()

	j, err := eng.CreateJob(ctx, job.TypeVideo, "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if j.Status != job.StatusQueued || j.Progress != 0 {
		t.Errorf("new record = %+v, want queued at 0", j)
	}

	stored, err := store.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if stored.URL != j.URL {
		t.Errorf("stored url = %q, want %q", stored.URL, j.URL)
	}
	if broker.Len() != 1 {
		t.Errorf("broker holds %d messages, want 1", broker.Len())
	}
}

func TestCreateJobRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	eng, store, _ := newTestEngine(t)

	_, err := eng.CreateJob(context.Background(), job.TypeVideo, "https://vimeo.com/123")
	if !errors.Is(err, retrieval.ErrInvalidURL) {
		t.Fatalf("error = %v, want ErrInvalidURL", err)
	}
	if store.Len() != 0 {
		t.Errorf("record persisted for invalid url")
	}
}

func TestCreateJobConcurrentDistinctIDs(t *testing.T) {
	t.Parallel()

	eng, store, _ := newTestEngine(t)
	ctx := context.Background()

	var (
		mu  sync.Mutex
		ids = make(map[id.JobID]struct{})
		wg  sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			j, err := eng.CreateJob(ctx, job.TypeAudio, fmt.Sprintf("https://youtube.com/watch?v=%d", i))
			if err != nil {
				t.Errorf("CreateJob: %v", err)
				return
			}
			mu.Lock()
			ids[j.ID] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(ids) != 100 {
		t.Errorf("distinct ids = %d, want 100", len(ids))
	}
	if store.Len() != 100 {
		t.Errorf("store holds %d records, want 100", store.Len())
	}
}

func TestGetJobMissing(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t)
	_, err := eng.GetJob(context.Background(), id.NewJobID())
	if !errors.Is(err, streamzip.ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
}

func TestEngineEndToEnd(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = eng.Stop(stopCtx)
	}()

	j, err := eng.CreateJob(ctx, job.TypeVideo, "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, getErr := eng.GetJob(ctx, j.ID)
		if getErr != nil {
			t.Fatalf("GetJob: %v", getErr)
		}
		if got.Status == job.StatusCompleted {
			if got.Progress != 100 {
				t.Errorf("progress = %d, want 100", got.Progress)
			}
			return
		}
		if got.Status == job.StatusFailed {
			t.Fatalf("job failed: %s", got.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never completed")
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t)
	info, err := eng.Analyze(context.Background(), "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if info.Title != "Test Video" {
		t.Errorf("title = %q, want Test Video", info.Title)
	}
}

// faultyExtension always fails its hook so registry warnings are emitted.
type faultyExtension struct{}

func (faultyExtension) Name() string { return "faulty" }

func (faultyExtension) OnJobEnqueued(_ context.Context, _ *job.Job) error {
	return errors.New("hook exploded")
}

func TestWithLoggerReachesHookWarnings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := streamzip.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	broker := memoryqueue.New()
	t.Cleanup(func() { _ = broker.Close() })

	// WithExtension before WithLogger: option order must not matter.
	eng, err := engine.New(memorystore.New(), broker, stubFetcher{},
		engine.WithConfig(cfg),
		engine.WithExtension(faultyExtension{}),
		engine.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	if _, err := eng.CreateJob(context.Background(), job.TypeVideo, "https://youtube.com/watch?v=abc"); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if !strings.Contains(buf.String(), "extension hook error") {
		t.Errorf("injected logger saw no hook warning; log output: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "faulty") {
		t.Errorf("hook warning missing extension name; log output: %q", buf.String())
	}
}
