// Package observability provides an OpenTelemetry-based metrics extension.
// MetricsExtension implements lifecycle hooks to record system-wide
// counters for job enqueue, start, completion, and failure events.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
