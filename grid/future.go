package grid

import (
	"context"
	"sync"
)

// Future is the pending result of a submitted job. It resolves exactly
// once. Every listener registered with OnComplete fires exactly once, on
// the resolving goroutine or, when registered after resolution, on the
// registering goroutine.
type Future struct {
	done chan struct{}

	mu        sync.Mutex
	resolved  bool
	result    Result
	listeners []func(Result)
}

// NewFuture returns an unresolved future. Grid implementations resolve it
// with Resolve.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve completes the future and runs pending listeners. Only the first
// call has any effect; it reports whether this call resolved the future.
func (f *Future) Resolve(r Result) bool {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return false
	}
	f.resolved = true
	f.result = r
	listeners := f.listeners
	f.listeners = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(r)
	}
	return true
}

// OnComplete registers a one-shot listener.
func (f *Future) OnComplete(fn func(Result)) {
	f.mu.Lock()
	if !f.resolved {
		f.listeners = append(f.listeners, fn)
		f.mu.Unlock()
		return
	}
	r := f.result
	f.mu.Unlock()
	fn(r)
}

// Done returns a channel closed when the future resolves.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the result and whether the future has resolved.
func (f *Future) Result() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.resolved
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		r, _ := f.Result()
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
