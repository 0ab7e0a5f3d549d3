package grid_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/griddispatch/grid"
)

func TestFuture_ResolveOnce(t *testing.T) {
	f := grid.NewFuture()
	if _, ok := f.Result(); ok {
		t.Fatal("new future should be unresolved")
	}

	if !f.Resolve(grid.Result{Output: []byte("a")}) {
		t.Fatal("first Resolve should succeed")
	}
	if f.Resolve(grid.Result{Output: []byte("b")}) {
		t.Fatal("second Resolve should be ignored")
	}

	r, ok := f.Result()
	if !ok || string(r.Output) != "a" {
		t.Errorf("Result = %q, %v", r.Output, ok)
	}
	select {
	case <-f.Done():
	default:
		t.Error("Done should be closed")
	}
}

func TestFuture_ListenerFiresExactlyOnce(t *testing.T) {
	f := grid.NewFuture()

	var before, after atomic.Int64
	f.OnComplete(func(grid.Result) { before.Add(1) })

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Resolve(grid.Result{})
		}()
	}
	wg.Wait()

	f.OnComplete(func(grid.Result) { after.Add(1) })

	if got := before.Load(); got != 1 {
		t.Errorf("listener registered before resolve fired %d times", got)
	}
	if got := after.Load(); got != 1 {
		t.Errorf("listener registered after resolve fired %d times", got)
	}
}

func TestFuture_ListenerSeesResult(t *testing.T) {
	f := grid.NewFuture()
	want := errors.New("boom")

	got := make(chan error, 1)
	f.OnComplete(func(r grid.Result) { got <- r.Err })
	f.Resolve(grid.Result{Err: want})

	if err := <-got; !errors.Is(err, want) {
		t.Errorf("listener err = %v, want %v", err, want)
	}
}

func TestFuture_Wait(t *testing.T) {
	f := grid.NewFuture()
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.Resolve(grid.Result{Output: []byte("done")})
	}()

	r, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if string(r.Output) != "done" {
		t.Errorf("Output = %q", r.Output)
	}
}

func TestFuture_WaitContextCancelled(t *testing.T) {
	f := grid.NewFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want DeadlineExceeded", err)
	}
}
