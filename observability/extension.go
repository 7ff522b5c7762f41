package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/SpicychieF05/StreamZip/hook"
	"github.com/SpicychieF05/StreamZip/job"
)

// Compile-time interface checks.
var (
	_ hook.Extension    = (*MetricsExtension)(nil)
	_ hook.JobEnqueued  = (*MetricsExtension)(nil)
	_ hook.JobStarted   = (*MetricsExtension)(nil)
	_ hook.JobCompleted = (*MetricsExtension)(nil)
	_ hook.JobFailed    = (*MetricsExtension)(nil)
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/SpicychieF05/StreamZip/observability"

// MetricsExtension records system-wide lifecycle counters. Register it on
// the hook registry to track enqueue rates, completion counts, and failure
// counts per job type.
type MetricsExtension struct {
	enqueued  metric.Int64Counter
	started   metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global OTel
// MeterProvider. With no provider configured the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. This variant allows injecting a specific MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	enqueued, _ := meter.Int64Counter("streamzip.job.enqueued",
		metric.WithDescription("Jobs accepted and queued"),
		metric.WithUnit("{job}"),
	)
	started, _ := meter.Int64Counter("streamzip.job.started",
		metric.WithDescription("Jobs picked up by a worker"),
		metric.WithUnit("{job}"),
	)
	completed, _ := meter.Int64Counter("streamzip.job.completed",
		metric.WithDescription("Jobs finished successfully"),
		metric.WithUnit("{job}"),
	)
	failed, _ := meter.Int64Counter("streamzip.job.failed",
		metric.WithDescription("Jobs that failed"),
		metric.WithUnit("{job}"),
	)
	return &MetricsExtension{
		enqueued:  enqueued,
		started:   started,
		completed: completed,
		failed:    failed,
	}
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func typeAttr(j *job.Job) metric.AddOption {
	return metric.WithAttributes(attribute.String("type", string(j.Type)))
}

// OnJobEnqueued implements hook.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	m.enqueued.Add(ctx, 1, typeAttr(j))
	return nil
}

// OnJobStarted implements hook.JobStarted.
func (m *MetricsExtension) OnJobStarted(ctx context.Context, j *job.Job) error {
	m.started.Add(ctx, 1, typeAttr(j))
	return nil
}

// OnJobCompleted implements hook.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.completed.Add(ctx, 1, typeAttr(j))
	return nil
}

// OnJobFailed implements hook.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.failed.Add(ctx, 1, typeAttr(j))
	return nil
}
