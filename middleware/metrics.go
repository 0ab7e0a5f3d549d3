package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/griddispatch/job"
)

// Instrument names.
const (
	MetricRunDuration = "griddispatch.grid.run.duration"
	MetricRuns        = "griddispatch.grid.runs"
	MetricRunning     = "griddispatch.grid.running"
)

// Metrics returns middleware recording grid executions on the global
// MeterProvider.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(tracerName))
}

// MetricsWithMeter is Metrics with an explicit meter. It records:
//
//   - griddispatch.grid.run.duration: seconds, by job name and outcome
//   - griddispatch.grid.runs: completed runs, by job name and outcome
//   - griddispatch.grid.running: jobs currently inside the chain, by job name
//
// Instrument creation errors yield noop instruments per the OTel API.
func MetricsWithMeter(meter metric.Meter) Middleware {
	duration, _ := meter.Float64Histogram(MetricRunDuration,
		metric.WithDescription("Wall time of one job run on the local grid"),
		metric.WithUnit("s"),
	)
	runs, _ := meter.Int64Counter(MetricRuns,
		metric.WithDescription("Job runs completed on the local grid"),
		metric.WithUnit("{run}"),
	)
	running, _ := meter.Int64UpDownCounter(MetricRunning,
		metric.WithDescription("Jobs running on the local grid"),
		metric.WithUnit("{job}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		name := metric.WithAttributes(AttrJobName.String(j.Name))
		running.Add(ctx, 1, name)
		start := time.Now()

		err := next(ctx)

		running.Add(ctx, -1, name)
		attrs := metric.WithAttributes(
			AttrJobName.String(j.Name),
			AttrOutcome.String(string(OutcomeOf(err))),
		)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		runs.Add(ctx, 1, attrs)
		return err
	}
}
