// Package audithook records job lifecycle audit events through a pluggable
// Recorder. The default recorder writes structured slog entries; callers
// with a dedicated audit backend inject their own via RecorderFunc.
package audithook

import (
	"context"
	"log/slog"
	"time"

	"github.com/SpicychieF05/StreamZip/hook"
	"github.com/SpicychieF05/StreamZip/job"
)

// Compile-time interface checks.
var (
	_ hook.Extension    = (*Extension)(nil)
	_ hook.JobEnqueued  = (*Extension)(nil)
	_ hook.JobStarted   = (*Extension)(nil)
	_ hook.JobCompleted = (*Extension)(nil)
	_ hook.JobFailed    = (*Extension)(nil)
)

// Event is a fully-formed audit record for one lifecycle transition.
type Event struct {
	Action   string         `json:"action"`
	JobID    string         `json:"job_id"`
	Outcome  string         `json:"outcome"`
	Severity string         `json:"severity"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Recorder is the interface audit backends implement.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Action constants.
const (
	ActionJobEnqueued  = "job.enqueued"
	ActionJobStarted   = "job.started"
	ActionJobCompleted = "job.completed"
	ActionJobFailed    = "job.failed"
)

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension emits one audit event per job lifecycle transition.
type Extension struct {
	recorder Recorder
	logger   *slog.Logger
	enabled  map[string]bool // nil means all actions
}

// Option configures the Extension.
type Option func(*Extension)

// WithLogger sets the logger used for recorder failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// WithActions restricts the extension to emit only the listed actions.
// By default all actions are enabled.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// New creates an Extension that emits audit events through the provided
// Recorder. A nil Recorder falls back to structured slog entries.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recorder == nil {
		e.recorder = slogRecorder{logger: e.logger}
	}
	return e
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// record applies the action filter before handing the event to the Recorder.
func (e *Extension) record(ctx context.Context, event *Event) error {
	if e.enabled != nil && !e.enabled[event.Action] {
		return nil
	}
	return e.recorder.Record(ctx, event)
}

// OnJobEnqueued implements hook.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return e.record(ctx, &Event{
		Action:   ActionJobEnqueued,
		JobID:    j.ID.String(),
		Outcome:  OutcomeSuccess,
		Severity: SeverityInfo,
		Metadata: map[string]any{
			"type": string(j.Type),
			"url":  j.URL,
		},
	})
}

// OnJobStarted implements hook.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, &Event{
		Action:   ActionJobStarted,
		JobID:    j.ID.String(),
		Outcome:  OutcomeSuccess,
		Severity: SeverityInfo,
		Metadata: map[string]any{
			"type": string(j.Type),
		},
	})
}

// OnJobCompleted implements hook.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, &Event{
		Action:   ActionJobCompleted,
		JobID:    j.ID.String(),
		Outcome:  OutcomeSuccess,
		Severity: SeverityInfo,
		Metadata: map[string]any{
			"type":       string(j.Type),
			"filename":   j.Filename,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
}

// OnJobFailed implements hook.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	evt := &Event{
		Action:   ActionJobFailed,
		JobID:    j.ID.String(),
		Outcome:  OutcomeFailure,
		Severity: SeverityCritical,
		Metadata: map[string]any{
			"type": string(j.Type),
		},
	}
	if jobErr != nil {
		evt.Reason = jobErr.Error()
	}
	return e.record(ctx, evt)
}

// slogRecorder is the fallback Recorder writing audit events as log lines.
type slogRecorder struct {
	logger *slog.Logger
}

func (r slogRecorder) Record(_ context.Context, event *Event) error {
	attrs := []any{
		slog.String("action", event.Action),
		slog.String("job_id", event.JobID),
		slog.String("outcome", event.Outcome),
		slog.String("severity", event.Severity),
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, slog.Any(k, v))
	}
	r.logger.Info("audit", attrs...)
	return nil
}
