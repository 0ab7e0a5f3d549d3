package middleware_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/griddispatch/middleware"
)

func newSpanRecorder() (*tracetest.SpanRecorder, middleware.Middleware) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, middleware.TracingWithTracer(tp.Tracer("griddispatch-test"))
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	return spans[0]
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]string {
	m := make(map[attribute.Key]string)
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value.Emit()
	}
	return m
}

func TestTracing_SpanPerGridRun(t *testing.T) {
	sr, tracing := newSpanRecorder()

	j, r := runOnGrid(t, []middleware.Middleware{tracing}, "render", ok)
	if r.Err != nil {
		t.Fatal(r.Err)
	}

	span := onlySpan(t, sr)
	if span.Name() != middleware.SpanName {
		t.Errorf("name = %q, want %q", span.Name(), middleware.SpanName)
	}
	if span.SpanKind() != trace.SpanKindConsumer {
		t.Errorf("kind = %v, want consumer", span.SpanKind())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", span.Status().Code)
	}

	want := map[attribute.Key]string{
		middleware.AttrJobID:   j.ID.String(),
		middleware.AttrJobName: "render",
		middleware.AttrTaskID:  j.TaskID.String(),
		middleware.AttrOutcome: "ok",
	}
	got := spanAttrs(span)
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestTracing_FailedRunMarksSpan(t *testing.T) {
	sr, tracing := newSpanRecorder()

	_, r := runOnGrid(t, []middleware.Middleware{tracing}, "render", failWith(errors.New("bad frame")))
	if r.Err == nil {
		t.Fatal("expected the handler error in the result")
	}

	span := onlySpan(t, sr)
	if span.Status().Code != codes.Error || span.Status().Description != "bad frame" {
		t.Errorf("status = %+v, want Error/bad frame", span.Status())
	}
	if spanAttrs(span)[middleware.AttrOutcome] != "error" {
		t.Errorf("outcome = %q, want error", spanAttrs(span)[middleware.AttrOutcome])
	}
	recorded := false
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			recorded = true
		}
	}
	if !recorded {
		t.Error("error was not recorded as a span event")
	}
}

func TestTracing_TimeoutOutcome(t *testing.T) {
	sr, tracing := newSpanRecorder()

	_, _ = runOnGrid(t, []middleware.Middleware{tracing, middleware.Timeout(5 * time.Millisecond)}, "stuck", blockUntilCancelled)

	if got := spanAttrs(onlySpan(t, sr))[middleware.AttrOutcome]; got != "timeout" {
		t.Errorf("outcome = %q, want timeout", got)
	}
}

func TestTracing_HandlerPanicEndsSpanWithError(t *testing.T) {
	sr, tracing := newSpanRecorder()

	_, r := runOnGrid(t, []middleware.Middleware{tracing}, "render",
		func(context.Context, []byte) ([]byte, error) { panic("corrupt frame") })
	if r.Err == nil {
		t.Fatal("expected the panic to resolve the future with an error")
	}

	span := onlySpan(t, sr)
	if span.Status().Code != codes.Error || !strings.Contains(span.Status().Description, "corrupt frame") {
		t.Errorf("status = %+v, want Error naming the panic", span.Status())
	}
}

func TestTracing_HandlerSeesSpanContext(t *testing.T) {
	sr, tracing := newSpanRecorder()

	var inner trace.SpanContext
	_, _ = runOnGrid(t, []middleware.Middleware{tracing}, "render",
		func(ctx context.Context, _ []byte) ([]byte, error) {
			inner = trace.SpanContextFromContext(ctx)
			return nil, nil
		})

	span := onlySpan(t, sr)
	if !inner.IsValid() || inner.SpanID() != span.SpanContext().SpanID() {
		t.Errorf("handler span = %v, want %v", inner.SpanID(), span.SpanContext().SpanID())
	}
}

func TestTracing_GlobalProviderIsNoopSafe(t *testing.T) {
	_, r := runOnGrid(t, []middleware.Middleware{middleware.Tracing()}, "render", ok)
	if r.Err != nil {
		t.Fatal(r.Err)
	}
}
