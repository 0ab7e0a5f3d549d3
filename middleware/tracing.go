package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/griddispatch/job"
)

const (
	tracerName = "github.com/xraph/griddispatch"

	// SpanName names the span opened around each grid execution.
	SpanName = "griddispatch.grid.run"
)

// Span and metric attribute keys.
const (
	AttrJobID   = attribute.Key("griddispatch.job.id")
	AttrJobName = attribute.Key("griddispatch.job.name")
	AttrTaskID  = attribute.Key("griddispatch.task.id")
	AttrOutcome = attribute.Key("griddispatch.job.outcome")
)

// Tracing returns middleware that opens a span per grid execution using
// the global TracerProvider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing with an explicit tracer. The span carries
// the job, task and outcome; a failed run records the error and sets the
// span status to Error.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, SpanName,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				AttrJobID.String(j.ID.String()),
				AttrJobName.String(j.Name),
				AttrTaskID.String(j.TaskID.String()),
			),
		)
		defer span.End()

		err := next(ctx)
		span.SetAttributes(AttrOutcome.String(string(OutcomeOf(err))))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}
}
