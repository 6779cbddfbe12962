// Package observability provides an OpenTelemetry metrics extension for
// queuectl. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for enqueue, completion, retry, dead and requeue
// events.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
