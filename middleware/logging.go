package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/griddispatch/job"
)

// Logging returns middleware that logs each grid execution. Success is
// logged at Info, a timeout at Warn and any other error at Error.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		l := logger.With(
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("task_id", j.TaskID.String()),
		)
		l.Debug("grid job running")

		start := time.Now()
		err := next(ctx)
		elapsed := slog.Duration("elapsed", time.Since(start))

		switch OutcomeOf(err) {
		case OutcomeOK:
			l.Info("grid job finished", elapsed)
		case OutcomeTimeout:
			l.Warn("grid job timed out", elapsed, slog.String("error", err.Error()))
		default:
			l.Error("grid job failed", elapsed, slog.String("error", err.Error()))
		}
		return err
	}
}
