package ext

import (
	"context"
	"log/slog"

	"github.com/xraph/griddispatch/grid"
	"github.com/xraph/griddispatch/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type jobClaimedEntry struct {
	name string
	hook JobClaimed
}

type jobSubmittedEntry struct {
	name string
	hook JobSubmitted
}

type jobFinishedEntry struct {
	name string
	hook JobFinished
}

type submitFailedEntry struct {
	name string
	hook SubmitFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register must complete before any Emit call; emits may then run
// concurrently.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobClaimed   []jobClaimedEntry
	jobSubmitted []jobSubmittedEntry
	jobFinished  []jobFinishedEntry
	submitFailed []submitFailedEntry
	shutdown     []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobClaimed); ok {
		r.jobClaimed = append(r.jobClaimed, jobClaimedEntry{name, h})
	}
	if h, ok := e.(JobSubmitted); ok {
		r.jobSubmitted = append(r.jobSubmitted, jobSubmittedEntry{name, h})
	}
	if h, ok := e.(JobFinished); ok {
		r.jobFinished = append(r.jobFinished, jobFinishedEntry{name, h})
	}
	if h, ok := e.(SubmitFailed); ok {
		r.submitFailed = append(r.submitFailed, submitFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Event emitters
// ──────────────────────────────────────────────────

// EmitJobClaimed notifies all extensions that implement JobClaimed.
func (r *Registry) EmitJobClaimed(ctx context.Context, j *job.Job) {
	for _, e := range r.jobClaimed {
		if err := e.hook.OnJobClaimed(ctx, j); err != nil {
			r.logHookError("OnJobClaimed", e.name, err)
		}
	}
}

// EmitJobSubmitted notifies all extensions that implement JobSubmitted.
func (r *Registry) EmitJobSubmitted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobSubmitted {
		if err := e.hook.OnJobSubmitted(ctx, j); err != nil {
			r.logHookError("OnJobSubmitted", e.name, err)
		}
	}
}

// EmitJobFinished notifies all extensions that implement JobFinished.
func (r *Registry) EmitJobFinished(ctx context.Context, j *job.Job, res grid.Result) {
	for _, e := range r.jobFinished {
		if err := e.hook.OnJobFinished(ctx, j, res); err != nil {
			r.logHookError("OnJobFinished", e.name, err)
		}
	}
}

// EmitSubmitFailed notifies all extensions that implement SubmitFailed.
func (r *Registry) EmitSubmitFailed(ctx context.Context, j *job.Job, submitErr error) {
	for _, e := range r.submitFailed {
		if err := e.hook.OnSubmitFailed(ctx, j, submitErr); err != nil {
			r.logHookError("OnSubmitFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
