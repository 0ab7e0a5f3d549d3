// Package memory implements store.Store in process memory. It is safe for
// concurrent access and intended for tests, development, and simulating
// several nodes inside one process.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/job"
)

// Ensure Store implements every subsystem contract at compile time.
var (
	_ job.Queue     = (*Store)(nil)
	_ failure.Store = (*Store)(nil)
	_ cluster.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	queue    []*job.Job
	queued   map[string]struct{}
	failures map[string]*failure.Record
	nodes    map[string]*cluster.Node
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		queued:   make(map[string]struct{}),
		failures: make(map[string]*failure.Record),
		nodes:    make(map[string]*cluster.Node),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job queue
// ──────────────────────────────────────────────────

// Enqueue appends a copy of the job to the tail of the queue.
func (m *Store) Enqueue(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.queued[key]; exists {
		return griddispatch.ErrJobAlreadyExists
	}
	cp := *j
	if cp.EnqueuedAt.IsZero() {
		cp.EnqueuedAt = time.Now().UTC()
	}
	m.queue = append(m.queue, &cp)
	m.queued[key] = struct{}{}
	return nil
}

// IsEmpty reports whether the queue holds no jobs.
func (m *Store) IsEmpty(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queue) == 0, nil
}

// TakeOne removes and returns the head of the queue under the write lock.
func (m *Store) TakeOne(_ context.Context) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return nil, nil
	}
	j := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	delete(m.queued, j.ID.String())
	return j, nil
}

// Len returns the number of queued jobs.
func (m *Store) Len(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.queue)), nil
}

// Snapshot returns copies of the queued jobs in order. Test helper.
func (m *Store) Snapshot() []*job.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*job.Job, len(m.queue))
	for i, j := range m.queue {
		cp := *j
		out[i] = &cp
	}
	return out
}

// ──────────────────────────────────────────────────
// Failure records
// ──────────────────────────────────────────────────

// SaveFailure persists a copy of the record.
func (m *Store) SaveFailure(_ context.Context, r *failure.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.failures[r.ID.String()] = &cp
	return nil
}

// ListFailures returns records matching the options ordered by FailedAt.
func (m *Store) ListFailures(_ context.Context, opts failure.ListOpts) ([]*failure.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*failure.Record, 0, len(m.failures))
	for _, r := range m.failures {
		if !opts.TaskID.IsNil() && r.TaskID.String() != opts.TaskID.String() {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FailedAt.Before(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// CountFailures counts records for the task, or all records for Nil.
func (m *Store) CountFailures(_ context.Context, taskID id.TaskID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if taskID.IsNil() {
		return int64(len(m.failures)), nil
	}
	var n int64
	for _, r := range m.failures {
		if r.TaskID.String() == taskID.String() {
			n++
		}
	}
	return n, nil
}

// PurgeFailures removes records that failed before the given time.
func (m *Store) PurgeFailures(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, r := range m.failures {
		if r.FailedAt.Before(before) {
			delete(m.failures, key)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Cluster registry
// ──────────────────────────────────────────────────

// RegisterNode adds or replaces a node entry.
func (m *Store) RegisterNode(_ context.Context, n *cluster.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.nodes[n.ID.String()] = &cp
	return nil
}

// DeregisterNode removes a node entry.
func (m *Store) DeregisterNode(_ context.Context, nodeID id.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := nodeID.String()
	if _, ok := m.nodes[key]; !ok {
		return griddispatch.ErrNodeNotFound
	}
	delete(m.nodes, key)
	return nil
}

// HeartbeatNode refreshes LastSeen and the active job count.
func (m *Store) HeartbeatNode(_ context.Context, nodeID id.NodeID, activeJobs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID.String()]
	if !ok {
		return griddispatch.ErrNodeNotFound
	}
	n.LastSeen = time.Now().UTC()
	n.ActiveJobs = activeJobs
	return nil
}

// ListNodes returns copies of all registered nodes ordered by CreatedAt.
func (m *Store) ListNodes(_ context.Context) ([]*cluster.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*cluster.Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		cp := *n
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

// ReapDeadNodes returns nodes whose last heartbeat is older than threshold.
func (m *Store) ReapDeadNodes(_ context.Context, threshold time.Duration) ([]*cluster.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var dead []*cluster.Node
	for _, n := range m.nodes {
		if n.LastSeen.Before(cutoff) {
			cp := *n
			dead = append(dead, &cp)
		}
	}
	return dead, nil
}
