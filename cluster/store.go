package cluster

import (
	"context"
	"time"

	"github.com/xraph/griddispatch/id"
)

// Store defines the persistence contract for the node registry.
type Store interface {
	// RegisterNode adds a node to the registry, replacing an existing
	// entry with the same id.
	RegisterNode(ctx context.Context, n *Node) error

	// DeregisterNode removes a node from the registry.
	DeregisterNode(ctx context.Context, nodeID id.NodeID) error

	// HeartbeatNode refreshes the node's last-seen timestamp and records
	// its current number of active jobs. Unknown nodes return
	// griddispatch.ErrNodeNotFound.
	HeartbeatNode(ctx context.Context, nodeID id.NodeID, activeJobs int) error

	// ListNodes returns all registered nodes.
	ListNodes(ctx context.Context) ([]*Node, error)

	// ReapDeadNodes returns nodes whose last-seen timestamp is older than
	// the threshold.
	ReapDeadNodes(ctx context.Context, threshold time.Duration) ([]*Node, error)
}
