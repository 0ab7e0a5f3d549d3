package cluster

import (
	"time"

	"github.com/xraph/griddispatch/id"
)

// NodeState represents the lifecycle state of a node.
type NodeState string

const (
	// NodeActive means the node is healthy and dispatching.
	NodeActive NodeState = "active"
	// NodeDraining means the node has stopped claiming new jobs but still
	// runs in-flight ones.
	NodeDraining NodeState = "draining"
	// NodeDead means the node stopped heartbeating.
	NodeDead NodeState = "dead"
)

// Node is one member of the compute cluster.
type Node struct {
	ID         id.NodeID         `json:"id"`
	Hostname   string            `json:"hostname"`
	Capacity   int               `json:"capacity"`
	ActiveJobs int               `json:"active_jobs"`
	State      NodeState         `json:"state"`
	LastSeen   time.Time         `json:"last_seen"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
