package redis

// Key layout. Every key carries the store prefix, "griddispatch:" unless
// overridden with WithPrefix.

const defaultPrefix = "griddispatch:"

type keyspace struct {
	prefix string
}

// ── Queue keys ──

// queue is the Sorted Set of queued job ids scored by enqueue time.
func (k keyspace) queue() string { return k.prefix + "queue" }

// job holds the msgpack body of a queued job: {prefix}job:{id}
func (k keyspace) job(id string) string { return k.prefix + "job:" + id }

// ── Failure keys ──

// failure holds the msgpack body of a failure record: {prefix}failure:{id}
func (k keyspace) failure(id string) string { return k.prefix + "failure:" + id }

// failures is the Sorted Set of every failure id scored by FailedAt.
func (k keyspace) failures() string { return k.prefix + "failures" }

// taskFailures indexes failure ids of one task: {prefix}failures:task:{id}
func (k keyspace) taskFailures(taskID string) string {
	return k.prefix + "failures:task:" + taskID
}

// ── Cluster keys ──

// node returns the Hash key for a node: {prefix}node:{id}
func (k keyspace) node(id string) string { return k.prefix + "node:" + id }

// nodeIDs is the Set tracking all node ids for enumeration.
func (k keyspace) nodeIDs() string { return k.prefix + "node_ids" }
