package grid

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/griddispatch/job"
)

// Synchronous submission errors.
var (
	// ErrNoHandler indicates no handler is registered for the job name.
	ErrNoHandler = errors.New("griddispatch/grid: no handler registered")

	// ErrGridClosed indicates the grid no longer accepts work.
	ErrGridClosed = errors.New("griddispatch/grid: closed")

	// ErrGridSaturated indicates the grid's in-flight limit is reached.
	ErrGridSaturated = errors.New("griddispatch/grid: in-flight limit reached")
)

// Grid accepts jobs for asynchronous execution.
type Grid interface {
	// Submit hands the job to the grid. A non-nil error means the job was
	// not accepted. On success the returned Future resolves exactly once
	// when execution ends.
	Submit(ctx context.Context, j *job.Job) (*Future, error)

	// Active returns the number of accepted jobs that have not finished.
	Active() int
}

// Result is the outcome of one job execution.
type Result struct {
	Output  []byte
	Err     error
	Elapsed time.Duration
}
