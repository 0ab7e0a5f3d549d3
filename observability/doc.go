// Package observability provides a metrics extension for griddispatch.
// The MetricsExtension implements lifecycle hooks to record node-wide
// counters for claimed, submitted, completed, remotely failed, and
// rejected jobs.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
