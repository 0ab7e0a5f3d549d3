package cluster

import (
	"context"
	"time"

	"github.com/xraph/griddispatch/id"
)

// Metrics is the membership and load view consumed by admission control.
type Metrics interface {
	// LocalCapacity returns this node's configured pool size.
	LocalCapacity() int

	// Topology returns a fresh snapshot of the cluster's nodes.
	Topology(ctx context.Context) ([]*Node, error)

	// ActiveJobs returns the node's current number of active jobs.
	ActiveJobs(ctx context.Context, n *Node) (int, error)
}

// LoadFunc reports the local node's live number of active jobs.
type LoadFunc func() int

// ViewOption configures a View.
type ViewOption func(*View)

// WithLocalLoad reads the local node's active count from fn instead of
// its last heartbeat.
func WithLocalLoad(fn LoadFunc) ViewOption {
	return func(v *View) { v.load = fn }
}

// WithStaleAfter drops peers whose last heartbeat is older than d from
// the topology. Zero keeps every registered node that is not dead.
func WithStaleAfter(d time.Duration) ViewOption {
	return func(v *View) { v.staleAfter = d }
}

// View implements Metrics over a node registry.
type View struct {
	store      Store
	localID    id.NodeID
	capacity   int
	load       LoadFunc
	staleAfter time.Duration
}

var _ Metrics = (*View)(nil)

// NewView creates a metrics view for the local node with the given
// configured capacity.
func NewView(store Store, localID id.NodeID, capacity int, opts ...ViewOption) *View {
	v := &View{store: store, localID: localID, capacity: capacity}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// LocalCapacity returns the configured pool size of this node.
func (v *View) LocalCapacity() int { return v.capacity }

// Topology lists the registry and filters out dead and stale peers. The
// local node is always part of its own topology; when it has not
// registered yet and a live load source is configured, a placeholder
// entry stands in for it.
func (v *View) Topology(ctx context.Context) ([]*Node, error) {
	nodes, err := v.store.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-v.staleAfter)
	out := make([]*Node, 0, len(nodes)+1)
	sawLocal := false
	for _, n := range nodes {
		if n.ID.String() == v.localID.String() {
			sawLocal = true
			out = append(out, n)
			continue
		}
		if n.State == NodeDead {
			continue
		}
		if v.staleAfter > 0 && n.LastSeen.Before(cutoff) {
			continue
		}
		out = append(out, n)
	}

	if !sawLocal && v.load != nil && !v.localID.IsNil() {
		out = append(out, &Node{ID: v.localID, Capacity: v.capacity, State: NodeActive})
	}
	return out, nil
}

// ActiveJobs returns the live count for the local node and the last
// heartbeat value for peers.
func (v *View) ActiveJobs(_ context.Context, n *Node) (int, error) {
	if v.load != nil && n.ID.String() == v.localID.String() {
		return v.load(), nil
	}
	return n.ActiveJobs, nil
}
