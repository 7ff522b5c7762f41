package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/job"
	memorystore "github.com/SpicychieF05/StreamZip/store/memory"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"@every 10m", false},
		{"*/5 * * * *", false},
		{"@hourly", false},
		{"not a schedule", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestNewJanitorRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	_, err := NewJanitor(memorystore.New(), "bogus", slog.Default())
	if err == nil {
		t.Fatal("expected error for invalid schedule expression")
	}
}

func TestJanitorSweep(t *testing.T) {
	t.Parallel()

	store := memorystore.New()
	ctx := context.Background()

	old := job.New(job.TypeVideo, "https://youtube.com/watch?v=old")
	old.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	fresh := job.New(job.TypeVideo, "https://youtube.com/watch?v=new")

	for _, j := range []*job.Job{old, fresh} {
		if err := store.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	jan, err := NewJanitor(store, "@every 10m", slog.Default(), WithRetention(time.Hour))
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}

	jan.Sweep(ctx)

	if _, err := store.GetJob(ctx, old.ID); !errors.Is(err, streamzip.ErrJobNotFound) {
		t.Error("expired record survived sweep")
	}
	if _, err := store.GetJob(ctx, fresh.ID); err != nil {
		t.Errorf("fresh record evicted: %v", err)
	}
}

func TestJanitorSweepLoop(t *testing.T) {
	t.Parallel()

	store := memorystore.New()
	ctx := context.Background()

	old := job.New(job.TypeAudio, "https://youtube.com/watch?v=old")
	old.CreatedAt = time.Now().UTC().Add(-time.Minute)
	if err := store.CreateJob(ctx, old); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	jan, err := NewJanitor(store, "@every 50ms", slog.Default(), WithRetention(time.Millisecond))
	if err != nil {
		t.Fatalf("NewJanitor: %v", err)
	}
	if err := jan.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer jan.Stop(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Len() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sweep loop never evicted the expired record")
}
