// Command streamzip runs the StreamZip download service: an HTTP API that
// queues YouTube retrieval jobs, a worker pool that executes them with
// yt-dlp, and a cleanup scheduler that expires stale records and artifacts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/api"
	audithook "github.com/SpicychieF05/StreamZip/audit_hook"
	"github.com/SpicychieF05/StreamZip/engine"
	"github.com/SpicychieF05/StreamZip/job"
	"github.com/SpicychieF05/StreamZip/queue"
	memoryqueue "github.com/SpicychieF05/StreamZip/queue/memory"
	redisqueue "github.com/SpicychieF05/StreamZip/queue/redis"
	"github.com/SpicychieF05/StreamZip/retrieval/ytdlp"
	memorystore "github.com/SpicychieF05/StreamZip/store/memory"
	postgresstore "github.com/SpicychieF05/StreamZip/store/postgres"
	redisstore "github.com/SpicychieF05/StreamZip/store/redis"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	addr := envOrDefault("APP_ADDR", ":3000")
	redisAddr := os.Getenv("REDIS_ADDR")
	databaseURL := os.Getenv("DATABASE_URL")

	cfg := streamzip.DefaultConfig()
	cfg.OutputDir = envOrDefault("OUTPUT_DIR", cfg.OutputDir)
	cfg.Concurrency = envIntOrDefault("WORKER_CONCURRENCY", cfg.Concurrency)
	cfg.Retention = envDurationOrDefault("JOB_RETENTION", cfg.Retention)
	cfg.TaskTimeout = envDurationOrDefault("TASK_TIMEOUT", cfg.TaskTimeout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var client *goredis.Client
	if redisAddr != "" {
		client = goredis.NewClient(&goredis.Options{Addr: redisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	store, err := buildStore(ctx, logger, client, databaseURL)
	if err != nil {
		return err
	}

	var broker queue.Broker
	if client != nil {
		broker = redisqueue.New(client,
			redisqueue.WithMaxRedeliveries(cfg.MaxRedeliveries),
			redisqueue.WithLogger(logger),
		)
	} else {
		broker = memoryqueue.New(
			memoryqueue.WithMaxRedeliveries(cfg.MaxRedeliveries),
			memoryqueue.WithLogger(logger),
		)
	}

	fetcher := ytdlp.New(
		ytdlp.WithBinary(envOrDefault("YTDLP_BIN", "yt-dlp")),
		ytdlp.WithLogger(logger),
	)

	eng, err := engine.New(store, broker, fetcher,
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithExtension(audithook.New(nil, audithook.WithLogger(logger))),
	)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	app := api.NewApp(eng, api.WithLogger(logger))
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
		_ = srv.Close()
	}
	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Error("engine shutdown failed", slog.String("error", err.Error()))
	}
	_ = broker.Close()

	logger.Info("server stopped")
	return nil
}

// buildStore selects the job store backend: Postgres when DATABASE_URL is
// set, Redis when REDIS_ADDR is set, and in-memory otherwise.
func buildStore(ctx context.Context, logger *slog.Logger, client *goredis.Client, databaseURL string) (job.Store, error) {
	switch {
	case databaseURL != "":
		store, err := postgresstore.New(ctx, databaseURL, postgresstore.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		logger.Info("using postgres job store")
		return store, nil
	case client != nil:
		logger.Info("using redis job store")
		return redisstore.New(client, redisstore.WithLogger(logger)), nil
	default:
		logger.Info("using in-memory job store")
		return memorystore.New(), nil
	}
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
