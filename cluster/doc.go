// Package cluster provides the membership and metrics view the admission
// check reads: the current set of nodes, each node's configured capacity,
// and its live count of active jobs.
//
// # Node Entity
//
// Each running node registers itself as a [Node] with:
//   - a unique [id.NodeID]
//   - its hostname
//   - its configured capacity (pool size)
//   - its active job count, refreshed on every heartbeat
//   - a state: [NodeActive], [NodeDraining], or [NodeDead]
//
// A [Reporter] keeps the local node's entry fresh. Nodes that stop
// heartbeating are reaped after a threshold.
//
// # Metrics
//
// [View] implements [Metrics] over a [Store]. The topology it returns is
// recomputed on every call and is only eventually consistent: a peer's
// active count is as old as its last heartbeat. The local node's count is
// read live.
//
// # Kubernetes
//
// The cluster/k8s sub-package stores node entries as Pod annotations.
package cluster
