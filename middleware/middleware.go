package middleware

import (
	"context"
	"errors"

	"github.com/xraph/griddispatch/job"
)

// Handler runs the job's registered handler.
type Handler func(ctx context.Context) error

// Middleware wraps one grid execution of j. It must call next unless it
// decides the job should not run, in which case its error resolves the
// job's future.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes mws so that mws[0] is outermost and the handler is
// innermost.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, terminal Handler) error {
		return step(ctx, j, mws, terminal)
	}
}

func step(ctx context.Context, j *job.Job, mws []Middleware, terminal Handler) error {
	if len(mws) == 0 {
		return terminal(ctx)
	}
	return mws[0](ctx, j, func(ctx context.Context) error {
		return step(ctx, j, mws[1:], terminal)
	})
}

// Outcome classifies how a grid execution ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeError   Outcome = "error"
	OutcomeTimeout Outcome = "timeout"
)

// OutcomeOf maps a handler's return value to its Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
