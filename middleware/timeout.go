package middleware

import (
	"context"
	"time"

	"github.com/xraph/griddispatch/job"
)

// Timeout returns middleware that cancels the job's context after d. The
// handler is expected to return context.DeadlineExceeded. d <= 0 leaves
// jobs unbounded.
func Timeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(ctx context.Context, _ *job.Job, next Handler) error { return next(ctx) }
	}
	return func(ctx context.Context, _ *job.Job, next Handler) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
