// Package api exposes the HTTP surface: job submission and status
// endpoints, media analysis, artifact serving, and health. Handlers
// delegate to the engine; this layer only shapes requests and responses.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/engine"
	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
	"github.com/SpicychieF05/StreamZip/retrieval"
)

// Rate limit defaults, per client IP.
const (
	rateLimitWindow      = time.Hour
	rateLimitMaxGeneral  = 10
	rateLimitMaxPlaylist = 3
)

// Option configures the App.
type Option func(*App)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithRateLimits overrides the per-IP request budgets for the window.
func WithRateLimits(general, playlist int) Option {
	return func(a *App) {
		a.generalLimiter = newIPLimiter(general, rateLimitWindow)
		a.playlistLimiter = newIPLimiter(playlist, rateLimitWindow)
	}
}

// App is the HTTP application.
type App struct {
	engine *engine.Engine
	router *chi.Mux
	logger *slog.Logger

	generalLimiter  *ipLimiter
	playlistLimiter *ipLimiter
}

// NewApp builds the router around the given engine.
func NewApp(eng *engine.Engine, opts ...Option) *App {
	a := &App{
		engine:          eng,
		router:          chi.NewRouter(),
		logger:          slog.Default(),
		generalLimiter:  newIPLimiter(rateLimitMaxGeneral, rateLimitWindow),
		playlistLimiter: newIPLimiter(rateLimitMaxPlaylist, rateLimitWindow),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registerRoutes()
	return a
}

// Router returns the http.Handler for the App.
func (a *App) Router() http.Handler { return a.router }

func (a *App) registerRoutes() {
	a.router.Use(chimw.RequestID)
	a.router.Use(chimw.RealIP)
	a.router.Use(chimw.Recoverer)

	a.router.Route("/api", func(r chi.Router) {
		r.With(a.generalLimiter.middleware("Too many requests from this IP, please try again later.")).
			Route("/download", func(r chi.Router) {
				r.Post("/video", a.downloadVideo)
				r.Post("/audio", a.downloadAudio)
				r.With(a.playlistLimiter.middleware("Too many playlist downloads from this IP, please try again later.")).
					Post("/playlist-zip", a.playlistZip)
			})
		r.Get("/job/{jobID}", a.jobStatus)
		r.Post("/analyze", a.analyze)
	})

	a.router.Get("/health", a.health)

	filesFS := http.FileServer(http.Dir(a.engine.Config().OutputDir))
	a.router.Handle("/files/*", http.StripPrefix("/files/", filesFS))
}

type urlRequest struct {
	URL string `json:"url"`
}

type createResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// jobResponse is the wire shape of a job record.
type jobResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	OutputPath string    `json:"outputPath,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toJobResponse(j *job.Job) jobResponse {
	return jobResponse{
		ID:         j.ID.String(),
		Type:       string(j.Type),
		Status:     string(j.Status),
		Progress:   j.Progress,
		OutputPath: j.OutputPath,
		Filename:   j.Filename,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

func (a *App) downloadVideo(w http.ResponseWriter, r *http.Request) {
	a.createJob(w, r, job.TypeVideo, "Video download started")
}

func (a *App) downloadAudio(w http.ResponseWriter, r *http.Request) {
	a.createJob(w, r, job.TypeAudio, "Audio download started")
}

func (a *App) createJob(w http.ResponseWriter, r *http.Request, typ job.Type, message string) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	j, err := a.engine.CreateJob(r.Context(), typ, req.URL)
	if err != nil {
		if errors.Is(err, retrieval.ErrInvalidURL) {
			a.writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
			return
		}
		a.logger.Error("job creation failed", slog.String("error", err.Error()))
		a.writeError(w, http.StatusInternalServerError, "Failed to create download job")
		return
	}

	a.writeJSON(w, http.StatusOK, createResponse{
		JobID:   j.ID.String(),
		Status:  string(j.Status),
		Message: message,
	})
}

func (a *App) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(chi.URLParam(r, "jobID"))
	if err != nil {
		// Unparseable ids look the same as unknown ones to clients.
		a.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	j, err := a.engine.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, streamzip.ErrJobNotFound) {
			a.writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		a.logger.Error("job lookup failed", slog.String("error", err.Error()))
		a.writeError(w, http.StatusInternalServerError, "Failed to look up job")
		return
	}

	a.writeJSON(w, http.StatusOK, toJobResponse(j))
}

func (a *App) analyze(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if err := retrieval.ValidateURL(req.URL); err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
		return
	}

	if retrieval.IsPlaylistURL(req.URL) {
		a.writeJSON(w, http.StatusOK, map[string]string{
			"type":    "playlist",
			"message": "Playlist detected. Playlist downloads are limited to single items.",
			"url":     req.URL,
		})
		return
	}

	info, err := a.engine.Analyze(r.Context(), req.URL)
	if err != nil {
		status, msg := classifyAnalyzeError(err)
		a.writeError(w, status, msg)
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"type":  "video",
		"video": info,
		"url":   req.URL,
	})
}

func classifyAnalyzeError(err error) (int, string) {
	switch {
	case errors.Is(err, retrieval.ErrNotAvailable):
		return http.StatusNotFound, "Video not available"
	case errors.Is(err, retrieval.ErrPrivate):
		return http.StatusForbidden, "Private video cannot be accessed"
	case errors.Is(err, retrieval.ErrAgeRestricted):
		return http.StatusForbidden, "Age-restricted video cannot be downloaded"
	case errors.Is(err, retrieval.ErrForbidden):
		return http.StatusForbidden, "Video cannot be accessed"
	default:
		return http.StatusInternalServerError, "Failed to fetch video info"
	}
}

func (a *App) playlistZip(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if err := retrieval.ValidateURL(req.URL); err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
		return
	}

	a.writeJSON(w, http.StatusNotImplemented, map[string]string{
		"error":   "Playlist ZIP download is not available",
		"message": "This feature is coming soon",
	})
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("response encoding failed", slog.String("error", err.Error()))
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}
