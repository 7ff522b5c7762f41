// Package engine wires the StreamZip subsystems together: store, broker,
// fetcher, hook registry, middleware chain, worker pool, and cleanup. It
// exposes the job intake and lookup operations the API layer builds on.
//
// This package sits above all subsystem packages and below the application
// layer, so none of them need to import each other.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/cleanup"
	"github.com/SpicychieF05/StreamZip/hook"
	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
	mw "github.com/SpicychieF05/StreamZip/middleware"
	"github.com/SpicychieF05/StreamZip/observability"
	"github.com/SpicychieF05/StreamZip/queue"
	"github.com/SpicychieF05/StreamZip/retrieval"
	"github.com/SpicychieF05/StreamZip/worker"
)

// instrumentationScope is the OTel scope name used when a custom provider
// is supplied.
const instrumentationScope = "github.com/SpicychieF05/StreamZip"

// Engine owns the download pipeline.
type Engine struct {
	cfg        streamzip.Config
	store      job.Store
	broker     queue.Broker
	fetcher    retrieval.Fetcher
	extensions *hook.Registry
	pool       *worker.Pool
	janitor    *cleanup.Janitor
	reaper     *cleanup.Reaper
	mws        []mw.Middleware
	logger     *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration. Unset fields keep their
// defaults.
func WithConfig(cfg streamzip.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithExtension registers an extension with the engine.
func WithExtension(e hook.Extension) Option {
	return func(eng *Engine) { eng.extensions.Register(e) }
}

// WithMiddleware appends middleware to the default execution chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithTracerProvider sets a custom OTel TracerProvider. When set, the
// tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, both the
// metrics middleware and the observability extension use this provider
// instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New assembles an Engine from a store, a broker, and a fetcher.
func New(store job.Store, broker queue.Broker, fetcher retrieval.Fetcher, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, streamzip.ErrNoStore
	}
	if broker == nil {
		return nil, streamzip.ErrNoBroker
	}

	logger := slog.Default()
	eng := &Engine{
		cfg:        streamzip.DefaultConfig(),
		store:      store,
		broker:     broker,
		fetcher:    fetcher,
		extensions: hook.NewRegistry(logger),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(eng)
	}
	// The registry predates the options so WithExtension can register into
	// it; re-point its logger at whatever WithLogger installed.
	eng.extensions.SetLogger(eng.logger)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationScope))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationScope))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(
			eng.meterProvider.Meter(instrumentationScope + "/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Artifact reaper hooks JobCompleted to age out downloaded files.
	eng.reaper = cleanup.NewReaper(eng.cfg.OutputDir, eng.logger,
		cleanup.WithArtifactRetention(eng.cfg.Retention))
	eng.extensions.Register(eng.reaper)

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	allMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.logger, eng.cfg.TaskTimeout),
	}
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(store, fetcher, eng.extensions, eng.cfg.OutputDir, eng.logger, allMws...)
	eng.pool = worker.NewPool(broker, executor, eng.extensions, eng.logger,
		worker.WithPoolConcurrency(eng.cfg.Concurrency))

	janitor, err := cleanup.NewJanitor(store, eng.cfg.SweepSchedule, eng.logger,
		cleanup.WithRetention(eng.cfg.Retention))
	if err != nil {
		return nil, fmt.Errorf("streamzip: invalid sweep schedule %q: %w", eng.cfg.SweepSchedule, err)
	}
	eng.janitor = janitor

	return eng, nil
}

// CreateJob validates the URL, persists a new queued record, and submits
// it for processing. Broker failures are logged rather than returned: the
// record exists and reports its own fate.
func (eng *Engine) CreateJob(ctx context.Context, typ job.Type, url string) (*job.Job, error) {
	if err := retrieval.ValidateURL(url); err != nil {
		return nil, err
	}

	j := job.New(typ, url)
	if err := eng.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	msg := job.Message{JobID: j.ID, Type: j.Type, URL: j.URL}
	if err := eng.broker.Enqueue(ctx, msg); err != nil {
		eng.logger.Error("failed to enqueue job message",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	eng.extensions.EmitJobEnqueued(ctx, j)
	return j, nil
}

// GetJob returns the current record for the given id.
func (eng *Engine) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return eng.store.GetJob(ctx, jobID)
}

// Analyze inspects the media at url without creating a job.
func (eng *Engine) Analyze(ctx context.Context, url string) (*retrieval.Info, error) {
	return eng.fetcher.FetchInfo(ctx, url)
}

// Start ensures the output directory exists, clears leftover artifacts
// from previous runs, and launches the worker pool and record janitor.
func (eng *Engine) Start(ctx context.Context) error {
	if err := os.MkdirAll(eng.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("streamzip: create output dir: %w", err)
	}
	if err := eng.reaper.ReapLeftovers(ctx); err != nil {
		eng.logger.Warn("failed to reap leftover artifacts",
			slog.String("error", err.Error()),
		)
	}
	if err := eng.pool.Start(ctx); err != nil {
		return fmt.Errorf("streamzip: start worker pool: %w", err)
	}
	if err := eng.janitor.Start(ctx); err != nil {
		return fmt.Errorf("streamzip: start janitor: %w", err)
	}
	eng.logger.Info("engine started",
		slog.String("output_dir", eng.cfg.OutputDir),
		slog.Int("concurrency", eng.cfg.Concurrency),
	)
	return nil
}

// Stop drains the pipeline: the pool stops consuming, the janitor halts,
// and extensions get their shutdown hook.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.pool.Stop(ctx); err != nil {
		eng.logger.Error("worker pool stop error", slog.String("error", err.Error()))
	}
	if err := eng.janitor.Stop(ctx); err != nil {
		eng.logger.Error("janitor stop error", slog.String("error", err.Error()))
	}
	eng.extensions.EmitShutdown(ctx)
	eng.logger.Info("engine stopped")
	return nil
}

// Extensions returns the hook registry.
func (eng *Engine) Extensions() *hook.Registry { return eng.extensions }

// Store returns the job store.
func (eng *Engine) Store() job.Store { return eng.store }

// Config returns the engine configuration.
func (eng *Engine) Config() streamzip.Config { return eng.cfg }
