// Package worker provides the job execution engine: an Executor that runs
// a single download job through middleware and the media fetcher, and a
// Pool that manages concurrent workers consuming queue deliveries.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/hook"
	"github.com/SpicychieF05/StreamZip/job"
	"github.com/SpicychieF05/StreamZip/middleware"
	"github.com/SpicychieF05/StreamZip/retrieval"
)

// Progress milestones reported through the job record.
const (
	progressStarted   = 10
	progressResolved  = 30
	progressCompleted = 100
)

// servedPathPrefix is the URL path under which completed artifacts are
// served.
const servedPathPrefix = "/files/"

// Executor runs a single job through the middleware chain and the fetcher,
// then records the outcome on the job record and emits lifecycle events.
type Executor struct {
	store      job.Store
	fetcher    retrieval.Fetcher
	extensions *hook.Registry
	outputDir  string
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	store job.Store,
	fetcher retrieval.Fetcher,
	extensions *hook.Registry,
	outputDir string,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		store:      store,
		fetcher:    fetcher,
		extensions: extensions,
		outputDir:  outputDir,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute processes a queue message. Business failures (bad URL, private
// video, download error) are absorbed into the job record and return nil;
// a non-nil return means the message could not be processed at all and may
// be redelivered.
func (e *Executor) Execute(ctx context.Context, msg job.Message) error {
	j, err := e.store.GetJob(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, streamzip.ErrJobNotFound) {
			// Record evicted between enqueue and pickup. Nothing to do.
			e.logger.Warn("skipping message for evicted job",
				slog.String("job_id", msg.JobID.String()),
			)
			return nil
		}
		return err
	}

	e.extensions.EmitJobStarted(ctx, j)

	if j, err = e.store.UpdateJob(ctx, j.ID, job.Processing(progressStarted)); err != nil {
		return err
	}

	start := time.Now()
	var filename string

	terminal := func(ctx context.Context) error {
		var retErr error
		filename, retErr = e.retrieve(ctx, j)
		return retErr
	}

	execErr := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	if execErr != nil {
		return e.handleFailure(ctx, j, execErr)
	}
	return e.handleSuccess(ctx, j, filename, elapsed)
}

// retrieve resolves media info, reports progress, and downloads the media
// into the output directory. Returns the generated filename.
func (e *Executor) retrieve(ctx context.Context, j *job.Job) (string, error) {
	info, err := e.fetcher.FetchInfo(ctx, j.URL)
	if err != nil {
		return "", err
	}

	filename := Filename(info.Title, j.Type)
	outputPath := filepath.Join(e.outputDir, filename)

	if _, err := e.store.UpdateJob(ctx, j.ID, job.Processing(progressResolved)); err != nil {
		return "", err
	}

	kind := retrieval.KindVideo
	if j.Type == job.TypeAudio {
		kind = retrieval.KindAudio
	}
	if err := e.fetcher.FetchMedia(ctx, j.URL, outputPath, kind); err != nil {
		return "", err
	}
	return filename, nil
}

func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, filename string, elapsed time.Duration) error {
	updated, err := e.store.UpdateJob(ctx, j.ID, job.Completed(servedPathPrefix+filename, filename))
	if err != nil {
		e.logger.Error("failed to update job after success",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobCompleted(ctx, updated, elapsed)
	return nil
}

func (e *Executor) handleFailure(ctx context.Context, j *job.Job, execErr error) error {
	updated, err := e.store.UpdateJob(ctx, j.ID, job.Failed(failureMessage(execErr)))
	if err != nil {
		e.logger.Error("failed to update job after failure",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobFailed(ctx, updated, execErr)
	return nil
}

// failureMessage maps retrieval sentinels to the messages surfaced to
// clients on the job record.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, retrieval.ErrInvalidURL):
		return "Invalid YouTube URL"
	case errors.Is(err, retrieval.ErrNotAvailable):
		return "Video not available"
	case errors.Is(err, retrieval.ErrPrivate):
		return "Private video cannot be accessed"
	case errors.Is(err, retrieval.ErrAgeRestricted):
		return "Age-restricted video cannot be downloaded"
	case errors.Is(err, retrieval.ErrForbidden):
		return "Video cannot be accessed"
	case errors.Is(err, context.DeadlineExceeded):
		return "Download timed out"
	default:
		return err.Error()
	}
}
