package grid

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/griddispatch/job"
	"github.com/xraph/griddispatch/middleware"
)

// Option configures a Local grid.
type Option func(*Local)

// WithMiddleware sets the middleware chain wrapped around every handler.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(l *Local) { l.mw = middleware.Chain(mws...) }
}

// WithMaxInFlight makes Submit fail with ErrGridSaturated while n jobs
// are running. Zero means unlimited.
func WithMaxInFlight(n int) Option {
	return func(l *Local) { l.maxInFlight = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) { l.logger = logger }
}

// Local is an in-process Grid that runs each accepted job on its own
// goroutine.
type Local struct {
	registry    *job.Registry
	mw          middleware.Middleware
	maxInFlight int
	logger      *slog.Logger

	active atomic.Int64
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ Grid = (*Local)(nil)

// NewLocal creates a local grid resolving handlers from registry.
func NewLocal(registry *job.Registry, opts ...Option) *Local {
	l := &Local{
		registry: registry,
		mw:       middleware.Chain(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit accepts the job and starts it on a new goroutine. The job runs
// with ctx's values but is not cancelled when ctx is.
func (l *Local) Submit(ctx context.Context, j *job.Job) (*Future, error) {
	handler, ok := l.registry.Get(j.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, j.Name)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrGridClosed
	}
	if !l.reserve() {
		return nil, fmt.Errorf("%w (%d)", ErrGridSaturated, l.maxInFlight)
	}

	f := NewFuture()
	l.wg.Add(1)
	go l.run(context.WithoutCancel(ctx), j, handler, f)
	return f, nil
}

// Active returns the number of running jobs.
func (l *Local) Active() int { return int(l.active.Load()) }

// Close stops accepting work and waits for running jobs or ctx.
func (l *Local) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Local) reserve() bool {
	if l.maxInFlight <= 0 {
		l.active.Add(1)
		return true
	}
	for {
		cur := l.active.Load()
		if cur >= int64(l.maxInFlight) {
			return false
		}
		if l.active.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (l *Local) run(ctx context.Context, j *job.Job, handler job.HandlerFunc, f *Future) {
	defer l.wg.Done()

	start := time.Now()
	var out []byte
	err := l.invoke(ctx, j, func(ctx context.Context) error {
		var herr error
		out, herr = handler(ctx, j.Payload)
		return herr
	})

	// Active reflects the finished job before any listener observes it.
	l.active.Add(-1)
	f.Resolve(Result{Output: out, Err: err, Elapsed: time.Since(start)})
}

// invoke runs the middleware chain around terminal. Panics are converted
// to errors here and nowhere else: one raised by the handler surfaces to
// the middleware as the handler's error, one raised by a middleware
// becomes the chain's result.
func (l *Local) invoke(ctx context.Context, j *job.Job, terminal middleware.Handler) error {
	handler := func(ctx context.Context) error {
		return l.guard(j, func() error { return terminal(ctx) })
	}
	return l.guard(j, func() error { return l.mw(ctx, j, handler) })
}

func (l *Local) guard(j *job.Job, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("grid: job panicked",
				slog.String("job_id", j.ID.String()),
				slog.String("job_name", j.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic in job %s: %v", j.Name, r)
		}
	}()
	return fn()
}
