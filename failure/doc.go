// Package failure records jobs whose submission to the execution grid
// raised synchronously. A record is written once per failed submission,
// keyed by the job's task id, and carries no retry metadata: the job is
// not retried and not re-enqueued.
//
// Jobs that submitted successfully and then failed while running are not
// recorded here. Their outcome belongs to whoever observes the grid
// future.
//
// # Service
//
//	svc := failure.NewService(store, failure.WithNodeID(nodeID))
//	svc.RecordError(ctx, j, err)
//
//	// Query by task.
//	store.ListFailures(ctx, failure.ListOpts{TaskID: taskID})
package failure
