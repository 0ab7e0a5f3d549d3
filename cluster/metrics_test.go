package cluster_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/store/memory"
)

func register(t *testing.T, s *memory.Store, n *cluster.Node) {
	t.Helper()
	if err := s.RegisterNode(context.Background(), n); err != nil {
		t.Fatalf("RegisterNode: %v", err)
	}
}

func peer(active int, lastSeen time.Time) *cluster.Node {
	return &cluster.Node{
		ID:         id.NewNodeID(),
		Hostname:   "peer",
		Capacity:   4,
		ActiveJobs: active,
		State:      cluster.NodeActive,
		LastSeen:   lastSeen,
		CreatedAt:  lastSeen,
	}
}

func sumActive(t *testing.T, v *cluster.View) int {
	t.Helper()
	ctx := context.Background()
	nodes, err := v.Topology(ctx)
	if err != nil {
		t.Fatalf("Topology: %v", err)
	}
	total := 0
	for _, n := range nodes {
		a, err := v.ActiveJobs(ctx, n)
		if err != nil {
			t.Fatalf("ActiveJobs: %v", err)
		}
		total += a
	}
	return total
}

func TestView_LocalCapacity(t *testing.T) {
	v := cluster.NewView(memory.New(), id.NewNodeID(), 7)
	if got := v.LocalCapacity(); got != 7 {
		t.Errorf("LocalCapacity = %d, want 7", got)
	}
}

func TestView_SumsPeersAndLiveLocalLoad(t *testing.T) {
	s := memory.New()
	now := time.Now().UTC()
	local := peer(9, now) // stale heartbeat value, live load wins
	register(t, s, local)
	register(t, s, peer(2, now))
	register(t, s, peer(1, now))

	v := cluster.NewView(s, local.ID, 10, cluster.WithLocalLoad(func() int { return 3 }))
	if got := sumActive(t, v); got != 6 {
		t.Errorf("active = %d, want 6", got)
	}
}

func TestView_UnregisteredLocalNodeUsesPlaceholder(t *testing.T) {
	s := memory.New()
	register(t, s, peer(2, time.Now().UTC()))

	v := cluster.NewView(s, id.NewNodeID(), 10, cluster.WithLocalLoad(func() int { return 1 }))
	nodes, err := v.Topology(context.Background())
	if err != nil {
		t.Fatalf("Topology: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("topology = %d nodes, want 2", len(nodes))
	}
	if got := sumActive(t, v); got != 3 {
		t.Errorf("active = %d, want 3", got)
	}
}

func TestView_SkipsDeadAndStalePeers(t *testing.T) {
	s := memory.New()
	now := time.Now().UTC()

	dead := peer(5, now)
	dead.State = cluster.NodeDead
	register(t, s, dead)
	register(t, s, peer(7, now.Add(-time.Hour)))
	register(t, s, peer(1, now))

	v := cluster.NewView(s, id.NewNodeID(), 10, cluster.WithStaleAfter(time.Minute))
	if got := sumActive(t, v); got != 1 {
		t.Errorf("active = %d, want 1", got)
	}

	// Without a staleness threshold the stale peer still counts.
	v = cluster.NewView(s, id.NewNodeID(), 10)
	if got := sumActive(t, v); got != 8 {
		t.Errorf("active without threshold = %d, want 8", got)
	}
}

func TestView_ReadsFreshTopologyEachCall(t *testing.T) {
	s := memory.New()
	v := cluster.NewView(s, id.NewNodeID(), 10)

	if got := sumActive(t, v); got != 0 {
		t.Fatalf("active = %d, want 0", got)
	}
	register(t, s, peer(4, time.Now().UTC()))
	if got := sumActive(t, v); got != 4 {
		t.Errorf("active after join = %d, want 4", got)
	}
}
