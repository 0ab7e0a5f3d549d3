// Package griddispatch provides a per-node cluster job dispatcher. Every
// node runs a dispatch loop that pulls jobs from a shared queue and hands
// them to an execution grid while cluster-wide capacity allows.
//
// # Quick Start
//
//	node, err := griddispatch.New(
//	    griddispatch.WithStore(redisstore.New(client)),
//	    griddispatch.WithPoolSize(16),
//	)
//	eng, err := engine.Build(node)
//	engine.Register(eng, job.NewDefinition("resize", resize))
//	_ = eng.Start(ctx)
//	_, _ = engine.Enqueue(ctx, eng, "resize", id.NewTaskID(), input)
//
// # Architecture
//
// Each subsystem (job queue, cluster membership, failure records) defines
// its own store interface; a single backend (memory, redis, postgres,
// sqlite) implements all of them. Admission control reads a fresh cluster
// snapshot on every cycle and compares this node's configured pool size
// against the sum of active jobs across the topology. The check is a soft,
// racy bound: nodes may overshoot together before metrics propagate.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based.
package griddispatch
