// Package middleware wraps each job run on the local grid.
//
// The grid calls the composed chain on the job's own goroutine after the
// dispatcher has handed the job off, so an error from the chain resolves
// the job's future and is never a submission failure. Panics are
// converted to errors by the grid itself; a panicking handler reaches the
// middleware as an ordinary error.
//
//	chain := middleware.Chain(
//		middleware.Tracing(),
//		middleware.Metrics(),
//		middleware.Logging(logger),
//		middleware.Timeout(30*time.Second),
//	)
//
// [Tracing] and [Metrics] label runs with the job, the task and the
// [Outcome] (ok, error or timeout).
package middleware
