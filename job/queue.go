package job

import "context"

// Queue is the shared, cluster-visible job queue.
type Queue interface {
	// Enqueue appends a job. A job id already present returns
	// griddispatch.ErrJobAlreadyExists.
	Enqueue(ctx context.Context, j *Job) error

	// IsEmpty reports whether no job is currently queued.
	IsEmpty(ctx context.Context) (bool, error)

	// TakeOne atomically removes and returns the oldest queued job. It
	// returns (nil, nil) when the queue is empty, including when another
	// node drained it first.
	TakeOne(ctx context.Context) (*Job, error)

	// Len returns the number of queued jobs.
	Len(ctx context.Context) (int64, error)
}
