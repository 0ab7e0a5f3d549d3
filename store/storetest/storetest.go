// Package storetest is a conformance suite shared by every store backend.
// Each backend's tests call Run with a constructor returning a fresh,
// migrated, empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/job"
	"github.com/xraph/griddispatch/store"
)

// Factory returns a fresh, migrated, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the full conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, newStore(t)) })
	t.Run("QueueFIFO", func(t *testing.T) { testQueueFIFO(t, newStore(t)) })
	t.Run("QueueEmpty", func(t *testing.T) { testQueueEmpty(t, newStore(t)) })
	t.Run("QueueDuplicate", func(t *testing.T) { testQueueDuplicate(t, newStore(t)) })
	t.Run("QueueConcurrentClaims", func(t *testing.T) { testQueueConcurrentClaims(t, newStore(t)) })
	t.Run("Failures", func(t *testing.T) { testFailures(t, newStore(t)) })
	t.Run("FailurePurge", func(t *testing.T) { testFailurePurge(t, newStore(t)) })
	t.Run("Nodes", func(t *testing.T) { testNodes(t, newStore(t)) })
	t.Run("NodeReap", func(t *testing.T) { testNodeReap(t, newStore(t)) })
}

// NewJob builds a job with a small JSON payload.
func NewJob(name string, taskID id.TaskID) *job.Job {
	return &job.Job{
		ID:         id.NewJobID(),
		TaskID:     taskID,
		Name:       name,
		Payload:    []byte(`{"n":1}`),
		EnqueuedAt: time.Now().UTC(),
	}
}

func testLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func testQueueFIFO(t *testing.T, s store.Store) {
	ctx := context.Background()
	task := id.NewTaskID()

	first := NewJob("a", task)
	second := NewJob("b", task)
	second.EnqueuedAt = first.EnqueuedAt.Add(time.Millisecond)
	for _, j := range []*job.Job{first, second} {
		if err := s.Enqueue(ctx, j); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 2 {
		t.Fatalf("Len = %d, want 2", n)
	}

	got, err := s.TakeOne(ctx)
	if err != nil {
		t.Fatalf("TakeOne: %v", err)
	}
	if got == nil {
		t.Fatal("TakeOne returned nil with two jobs queued")
	}
	if got.ID.String() != first.ID.String() {
		t.Errorf("TakeOne = %s, want oldest %s", got.ID, first.ID)
	}
	if got.TaskID.String() != task.String() {
		t.Errorf("TaskID = %s, want %s", got.TaskID, task)
	}
	if got.Name != "a" || string(got.Payload) != `{"n":1}` {
		t.Errorf("claimed job = %+v", got)
	}

	n, _ = s.Len(ctx)
	if n != 1 {
		t.Errorf("Len after claim = %d, want 1", n)
	}
}

func testQueueEmpty(t *testing.T, s store.Store) {
	ctx := context.Background()

	empty, err := s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Fatal("new store should be empty")
	}

	got, err := s.TakeOne(ctx)
	if err != nil {
		t.Fatalf("TakeOne on empty queue: %v", err)
	}
	if got != nil {
		t.Fatalf("TakeOne on empty queue = %+v, want nil", got)
	}

	if err := s.Enqueue(ctx, NewJob("a", id.NewTaskID())); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	empty, _ = s.IsEmpty(ctx)
	if empty {
		t.Fatal("queue should not be empty after Enqueue")
	}
}

func testQueueDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := NewJob("a", id.NewTaskID())
	if err := s.Enqueue(ctx, j); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Enqueue(ctx, j); !errors.Is(err, griddispatch.ErrJobAlreadyExists) {
		t.Fatalf("duplicate Enqueue = %v, want ErrJobAlreadyExists", err)
	}
}

func testQueueConcurrentClaims(t *testing.T, s store.Store) {
	ctx := context.Background()
	const jobs = 40
	const claimers = 8

	for range jobs {
		if err := s.Enqueue(ctx, NewJob("a", id.NewTaskID())); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	var (
		mu     sync.Mutex
		seen   = make(map[string]int)
		wg     sync.WaitGroup
		errsMu sync.Mutex
		errs   []error
	)
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, err := s.TakeOne(ctx)
				if err != nil {
					errsMu.Lock()
					errs = append(errs, err)
					errsMu.Unlock()
					return
				}
				if j == nil {
					return
				}
				mu.Lock()
				seen[j.ID.String()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("TakeOne errors: %v", errs)
	}
	if len(seen) != jobs {
		t.Fatalf("claimed %d distinct jobs, want %d", len(seen), jobs)
	}
	for jobID, n := range seen {
		if n != 1 {
			t.Errorf("job %s claimed %d times", jobID, n)
		}
	}
}

func testFailures(t *testing.T, s store.Store) {
	ctx := context.Background()
	taskA := id.NewTaskID()
	taskB := id.NewTaskID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	records := []*failure.Record{
		{ID: id.NewFailureID(), TaskID: taskA, JobID: id.NewJobID(), JobName: "a", Message: "grid unreachable", FailedAt: base},
		{ID: id.NewFailureID(), TaskID: taskA, JobID: id.NewJobID(), JobName: "a", Message: "rejected", NodeID: id.NewNodeID(), FailedAt: base.Add(time.Second)},
		{ID: id.NewFailureID(), TaskID: taskB, JobID: id.NewJobID(), JobName: "b", Message: "other", FailedAt: base.Add(2 * time.Second)},
	}
	for _, r := range records {
		if err := s.SaveFailure(ctx, r); err != nil {
			t.Fatalf("SaveFailure: %v", err)
		}
	}

	got, err := s.ListFailures(ctx, failure.ListOpts{TaskID: taskA})
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListFailures(taskA) returned %d, want 2", len(got))
	}
	if got[0].Message != "grid unreachable" || got[1].Message != "rejected" {
		t.Errorf("messages = %q, %q", got[0].Message, got[1].Message)
	}
	if got[0].TaskID.String() != taskA.String() {
		t.Errorf("TaskID = %s, want %s", got[0].TaskID, taskA)
	}
	if got[1].NodeID.String() != records[1].NodeID.String() {
		t.Errorf("NodeID = %s, want %s", got[1].NodeID, records[1].NodeID)
	}
	if !got[0].NodeID.IsNil() {
		t.Errorf("NodeID = %s, want nil", got[0].NodeID)
	}

	all, err := s.ListFailures(ctx, failure.ListOpts{})
	if err != nil {
		t.Fatalf("ListFailures(all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListFailures(all) = %d, want 3", len(all))
	}

	page, err := s.ListFailures(ctx, failure.ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListFailures(page): %v", err)
	}
	if len(page) != 1 || page[0].ID.String() != records[1].ID.String() {
		t.Errorf("page = %v", page)
	}

	n, err := s.CountFailures(ctx, taskB)
	if err != nil {
		t.Fatalf("CountFailures: %v", err)
	}
	if n != 1 {
		t.Errorf("CountFailures(taskB) = %d, want 1", n)
	}
	n, _ = s.CountFailures(ctx, id.Nil)
	if n != 3 {
		t.Errorf("CountFailures(all) = %d, want 3", n)
	}
}

func testFailurePurge(t *testing.T, s store.Store) {
	ctx := context.Background()
	task := id.NewTaskID()
	now := time.Now().UTC()

	old := &failure.Record{ID: id.NewFailureID(), TaskID: task, JobID: id.NewJobID(), Message: "old", FailedAt: now.Add(-time.Hour)}
	fresh := &failure.Record{ID: id.NewFailureID(), TaskID: task, JobID: id.NewJobID(), Message: "fresh", FailedAt: now}
	for _, r := range []*failure.Record{old, fresh} {
		if err := s.SaveFailure(ctx, r); err != nil {
			t.Fatalf("SaveFailure: %v", err)
		}
	}

	removed, err := s.PurgeFailures(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("PurgeFailures: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	left, _ := s.ListFailures(ctx, failure.ListOpts{TaskID: task})
	if len(left) != 1 || left[0].Message != "fresh" {
		t.Errorf("remaining = %v", left)
	}
}

func testNodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	n := &cluster.Node{
		ID:        id.NewNodeID(),
		Hostname:  "node-a",
		Capacity:  8,
		State:     cluster.NodeActive,
		LastSeen:  now,
		Metadata:  map[string]string{"zone": "eu-west-1"},
		CreatedAt: now,
	}
	if err := s.RegisterNode(ctx, n); err != nil {
		t.Fatalf("RegisterNode: %v", err)
	}
	if err := s.HeartbeatNode(ctx, n.ID, 3); err != nil {
		t.Fatalf("HeartbeatNode: %v", err)
	}

	nodes, err := s.ListNodes(ctx)
	if err != nil {
		t.Fatalf("ListNodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("ListNodes = %d, want 1", len(nodes))
	}
	got := nodes[0]
	if got.ID.String() != n.ID.String() || got.Hostname != "node-a" || got.Capacity != 8 {
		t.Errorf("node = %+v", got)
	}
	if got.ActiveJobs != 3 {
		t.Errorf("ActiveJobs = %d, want 3", got.ActiveJobs)
	}
	if got.State != cluster.NodeActive {
		t.Errorf("State = %q, want active", got.State)
	}
	if got.Metadata["zone"] != "eu-west-1" {
		t.Errorf("Metadata = %v", got.Metadata)
	}

	// Re-registering replaces the entry instead of duplicating it.
	n.Capacity = 16
	if err := s.RegisterNode(ctx, n); err != nil {
		t.Fatalf("re-RegisterNode: %v", err)
	}
	nodes, _ = s.ListNodes(ctx)
	if len(nodes) != 1 || nodes[0].Capacity != 16 {
		t.Errorf("after re-register nodes = %v", nodes)
	}

	if err := s.DeregisterNode(ctx, n.ID); err != nil {
		t.Fatalf("DeregisterNode: %v", err)
	}
	if err := s.DeregisterNode(ctx, n.ID); !errors.Is(err, griddispatch.ErrNodeNotFound) {
		t.Errorf("second DeregisterNode = %v, want ErrNodeNotFound", err)
	}
	if err := s.HeartbeatNode(ctx, n.ID, 1); !errors.Is(err, griddispatch.ErrNodeNotFound) {
		t.Errorf("HeartbeatNode after deregister = %v, want ErrNodeNotFound", err)
	}
}

func testNodeReap(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	alive := &cluster.Node{ID: id.NewNodeID(), Hostname: "alive", Capacity: 1, State: cluster.NodeActive, LastSeen: now, CreatedAt: now}
	stale := &cluster.Node{ID: id.NewNodeID(), Hostname: "stale", Capacity: 1, State: cluster.NodeActive, LastSeen: now.Add(-time.Hour), CreatedAt: now.Add(-time.Hour)}
	for _, n := range []*cluster.Node{alive, stale} {
		if err := s.RegisterNode(ctx, n); err != nil {
			t.Fatalf("RegisterNode: %v", err)
		}
	}

	dead, err := s.ReapDeadNodes(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReapDeadNodes: %v", err)
	}
	if len(dead) != 1 || dead[0].Hostname != "stale" {
		t.Fatalf("dead = %v, want only stale", dead)
	}
}
