// Package ext defines the extension system for griddispatch.
//
// Extensions are notified of dispatch lifecycle events and can react to
// them by recording metrics, writing audit logs, and so on. Each lifecycle
// hook is a separate interface so extensions opt in only to the events
// they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobFinished(ctx context.Context, j *job.Job, r grid.Result) error {
//	    log.Printf("job %s finished in %s", j.ID, r.Elapsed)
//	    return nil
//	}
//
// # Hooks
//
//   - [JobClaimed]: job was taken off the shared queue
//   - [JobSubmitted]: the grid accepted the job
//   - [JobFinished]: the job's future resolved
//   - [SubmitFailed]: the grid rejected the job and a failure was recorded
//   - [Shutdown]: the node is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
