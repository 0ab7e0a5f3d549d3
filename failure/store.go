package failure

import (
	"context"
	"time"

	"github.com/xraph/griddispatch/id"
)

// ListOpts controls filtering and pagination for failure queries.
type ListOpts struct {
	// TaskID filters by task. Nil means all tasks.
	TaskID id.TaskID
	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int
	// Offset is the number of records to skip.
	Offset int
}

// Store defines the persistence contract for failure records.
type Store interface {
	// SaveFailure persists a record.
	SaveFailure(ctx context.Context, r *Record) error

	// ListFailures returns records ordered by FailedAt ascending.
	ListFailures(ctx context.Context, opts ListOpts) ([]*Record, error)

	// CountFailures returns the number of records for the task, or for all
	// tasks when taskID is Nil.
	CountFailures(ctx context.Context, taskID id.TaskID) (int64, error)

	// PurgeFailures removes records with FailedAt before the given time and
	// returns how many were removed.
	PurgeFailures(ctx context.Context, before time.Time) (int64, error)
}
