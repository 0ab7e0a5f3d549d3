// Package ext defines the extension system for griddispatch.
// Extensions are notified of dispatch lifecycle events (job claimed,
// submitted, finished, submission failed) and can react to them with
// logging, metrics, auditing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"

	"github.com/xraph/griddispatch/grid"
	"github.com/xraph/griddispatch/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Dispatch lifecycle hooks
// ──────────────────────────────────────────────────

// JobClaimed is called after the dispatcher takes a job off the shared
// queue and before it is submitted.
type JobClaimed interface {
	OnJobClaimed(ctx context.Context, j *job.Job) error
}

// JobSubmitted is called after the grid accepts a job.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j *job.Job) error
}

// JobFinished is called once when a submitted job's future resolves,
// successfully or not.
type JobFinished interface {
	OnJobFinished(ctx context.Context, j *job.Job, r grid.Result) error
}

// SubmitFailed is called when the grid rejects a job synchronously. The
// job has already been removed from the queue and is not retried.
type SubmitFailed interface {
	OnSubmitFailed(ctx context.Context, j *job.Job, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
