package grid_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/griddispatch/grid"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/job"
	"github.com/xraph/griddispatch/middleware"
)

func newJob(name string) *job.Job {
	return &job.Job{ID: id.NewJobID(), TaskID: id.NewTaskID(), Name: name}
}

func wait(t *testing.T, f *grid.Future) grid.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("future did not resolve: %v", err)
	}
	return r
}

func TestLocal_RunsHandler(t *testing.T) {
	reg := job.NewRegistry()
	reg.Register("echo", func(_ context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})
	g := grid.NewLocal(reg)

	j := newJob("echo")
	j.Payload = []byte(`"hi"`)
	f, err := g.Submit(context.Background(), j)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	r := wait(t, f)
	if r.Err != nil || string(r.Output) != `"hi"` {
		t.Errorf("Result = %q, %v", r.Output, r.Err)
	}
}

func TestLocal_UnknownJobFailsSynchronously(t *testing.T) {
	g := grid.NewLocal(job.NewRegistry())

	f, err := g.Submit(context.Background(), newJob("missing"))
	if !errors.Is(err, grid.ErrNoHandler) {
		t.Fatalf("Submit = %v, want ErrNoHandler", err)
	}
	if f != nil {
		t.Error("future should be nil on synchronous failure")
	}
	if g.Active() != 0 {
		t.Errorf("Active = %d, want 0", g.Active())
	}
}

func TestLocal_HandlerErrorResolvesFuture(t *testing.T) {
	reg := job.NewRegistry()
	want := errors.New("handler failed")
	reg.Register("fail", func(context.Context, []byte) ([]byte, error) { return nil, want })
	g := grid.NewLocal(reg)

	f, err := g.Submit(context.Background(), newJob("fail"))
	if err != nil {
		t.Fatalf("runtime failures must not surface from Submit: %v", err)
	}
	if r := wait(t, f); !errors.Is(r.Err, want) {
		t.Errorf("Result.Err = %v, want %v", r.Err, want)
	}
}

func TestLocal_PanicResolvesFuture(t *testing.T) {
	reg := job.NewRegistry()
	reg.Register("panic", func(context.Context, []byte) ([]byte, error) { panic("kaboom") })
	g := grid.NewLocal(reg, grid.WithLogger(slog.Default()))

	f, err := g.Submit(context.Background(), newJob("panic"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r := wait(t, f); r.Err == nil {
		t.Error("expected panic to resolve the future with an error")
	}
	if g.Active() != 0 {
		t.Errorf("Active = %d after panic, want 0", g.Active())
	}
}

func TestLocal_HandlerPanicReachesMiddlewareAsError(t *testing.T) {
	reg := job.NewRegistry()
	reg.Register("panic", func(context.Context, []byte) ([]byte, error) { panic("kaboom") })

	var seen error
	observe := func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
		seen = next(ctx)
		return seen
	}
	g := grid.NewLocal(reg, grid.WithMiddleware(observe))

	f, err := g.Submit(context.Background(), newJob("panic"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	r := wait(t, f)
	if seen == nil || !strings.Contains(seen.Error(), "kaboom") {
		t.Errorf("middleware saw %v, want the converted panic", seen)
	}
	if r.Err == nil || r.Err.Error() != seen.Error() {
		t.Errorf("Result.Err = %v, want %v", r.Err, seen)
	}
}

func TestLocal_MiddlewarePanicResolvesFuture(t *testing.T) {
	reg := job.NewRegistry()
	reg.Register("noop", func(context.Context, []byte) ([]byte, error) { return nil, nil })
	broken := func(context.Context, *job.Job, middleware.Handler) error { panic("broken middleware") }
	g := grid.NewLocal(reg, grid.WithMiddleware(broken))

	f, err := g.Submit(context.Background(), newJob("noop"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r := wait(t, f); r.Err == nil || !strings.Contains(r.Err.Error(), "broken middleware") {
		t.Errorf("Result.Err = %v, want converted middleware panic", r.Err)
	}
	if g.Active() != 0 {
		t.Errorf("Active = %d, want 0", g.Active())
	}
}

func TestLocal_MiddlewareWrapsHandler(t *testing.T) {
	reg := job.NewRegistry()
	reg.Register("slow", func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	g := grid.NewLocal(reg, grid.WithMiddleware(middleware.Timeout(10*time.Millisecond)))

	f, err := g.Submit(context.Background(), newJob("slow"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r := wait(t, f); !errors.Is(r.Err, context.DeadlineExceeded) {
		t.Errorf("Result.Err = %v, want DeadlineExceeded", r.Err)
	}
}

func TestLocal_ActiveAndSaturation(t *testing.T) {
	reg := job.NewRegistry()
	release := make(chan struct{})
	reg.Register("block", func(context.Context, []byte) ([]byte, error) {
		<-release
		return nil, nil
	})
	g := grid.NewLocal(reg, grid.WithMaxInFlight(2))
	ctx := context.Background()

	f1, err := g.Submit(ctx, newJob("block"))
	if err != nil {
		t.Fatalf("Submit 1: %v", err)
	}
	f2, err := g.Submit(ctx, newJob("block"))
	if err != nil {
		t.Fatalf("Submit 2: %v", err)
	}
	if g.Active() != 2 {
		t.Errorf("Active = %d, want 2", g.Active())
	}
	if _, err := g.Submit(ctx, newJob("block")); !errors.Is(err, grid.ErrGridSaturated) {
		t.Fatalf("Submit 3 = %v, want ErrGridSaturated", err)
	}

	close(release)
	wait(t, f1)
	wait(t, f2)
	if g.Active() != 0 {
		t.Errorf("Active = %d after completion, want 0", g.Active())
	}
}

func TestLocal_SubmitContextCancelDoesNotCancelJob(t *testing.T) {
	reg := job.NewRegistry()
	started := make(chan struct{})
	reg.Register("job", func(ctx context.Context, _ []byte) ([]byte, error) {
		close(started)
		time.Sleep(10 * time.Millisecond)
		return nil, ctx.Err()
	})
	g := grid.NewLocal(reg)

	ctx, cancel := context.WithCancel(context.Background())
	f, err := g.Submit(ctx, newJob("job"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	cancel()

	if r := wait(t, f); r.Err != nil {
		t.Errorf("job saw cancellation: %v", r.Err)
	}
}

func TestLocal_Close(t *testing.T) {
	reg := job.NewRegistry()
	release := make(chan struct{})
	reg.Register("block", func(context.Context, []byte) ([]byte, error) {
		<-release
		return nil, nil
	})
	g := grid.NewLocal(reg)

	if _, err := g.Submit(context.Background(), newJob("block")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	short, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := g.Close(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close with running job = %v, want DeadlineExceeded", err)
	}

	if _, err := g.Submit(context.Background(), newJob("block")); !errors.Is(err, grid.ErrGridClosed) {
		t.Fatalf("Submit after Close = %v, want ErrGridClosed", err)
	}

	close(release)
	if err := g.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
