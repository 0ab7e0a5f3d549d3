// Package job defines the job entity, the shared queue contract, and the
// handler registry used by the local execution grid.
//
// # Job Entity
//
// A [Job] is an immutable unit of work identified by a job id and the id
// of the task it belongs to (many jobs to one task). Its payload is opaque
// to the dispatcher; only the grid's handler decodes it.
//
// # Shared Queue
//
// [Queue] is the cluster-visible collection of pending jobs. Its TakeOne
// must be atomic across all nodes: a job is delivered to at most one
// claimer. Ownership moves from the queue to the execution grid at claim
// time; a claimed job is never returned to the queue by the dispatcher.
//
// # Defining a Job
//
//	var Resize = job.NewDefinition("resize",
//	    func(ctx context.Context, in ResizeInput) error {
//	        return images.Resize(ctx, in.URL, in.Width)
//	    },
//	)
//	job.RegisterDefinition(registry, Resize)
package job
