package failure

import (
	"context"
	"time"

	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/job"
)

// Option configures a Service.
type Option func(*Service)

// WithNodeID stamps records with the node that attempted the submission.
func WithNodeID(nodeID id.NodeID) Option {
	return func(s *Service) { s.nodeID = nodeID }
}

// Service provides high-level failure recording over a Store.
type Service struct {
	store  Store
	nodeID id.NodeID
}

// NewService creates a failure service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordError writes a record (j.TaskID, err.Error()) for a job whose
// submission failed.
func (s *Service) RecordError(ctx context.Context, j *job.Job, err error) error {
	r := &Record{
		ID:       id.NewFailureID(),
		TaskID:   j.TaskID,
		JobID:    j.ID,
		JobName:  j.Name,
		Message:  err.Error(),
		NodeID:   s.nodeID,
		FailedAt: time.Now().UTC(),
	}
	return s.store.SaveFailure(ctx, r)
}

// ForTask returns every failure recorded for a task.
func (s *Service) ForTask(ctx context.Context, taskID id.TaskID) ([]*Record, error) {
	return s.store.ListFailures(ctx, ListOpts{TaskID: taskID})
}

// Store returns the underlying store for count and purge operations.
func (s *Service) Store() Store { return s.store }
