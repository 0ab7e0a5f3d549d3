// Package grid is the execution side of the dispatcher: a Grid accepts a
// claimed job and runs it asynchronously, returning a Future that resolves
// once the job finishes.
//
// Submit has two distinct failure channels. An error returned by Submit
// itself means the job was never accepted; the dispatcher records that as
// a failure for the job's task. A job that was accepted and then failed
// while running resolves its Future with a non-nil Result.Err and is never
// reported through Submit.
//
// [Local] runs jobs on goroutines in the current process, resolving
// handlers from a job.Registry through a middleware chain.
package grid
