// Package admission decides whether the local node may claim another job.
//
// The check compares this node's configured pool size against the number of
// jobs active across the whole cluster:
//
//	free = metrics.LocalCapacity() - Σ metrics.ActiveJobs(n) for n in Topology()
//
// and admits when free > 0. The left side is local and the right side is
// cluster-wide, so a node with a large pool can still be refused when its
// peers are busy, and the sum of every node's admissions is not bounded by
// the total cluster capacity. Callers that need a hard global bound must
// enforce it elsewhere.
//
// Every call reads a fresh topology. Nothing is cached between cycles.
//
// A token-bucket pacing limit can be layered on top with [WithRateLimit];
// it only ever refuses admissions the capacity check would have allowed.
package admission
