// Package dispatcher runs a node's dispatch loop.
//
// Each cycle checks cluster-wide admission, claims at most one job from
// the shared queue, and submits it to the execution grid:
//
//	if !admit      → OutcomeNoCapacity   (queue untouched)
//	if queue empty → OutcomeIdle
//	take one job   → OutcomeRaceMiss     (another node drained it first)
//	submit         → OutcomeSubmitFailed (failure recorded, job dropped)
//	               → OutcomeSubmitted    (completion listener attached)
//
// A job whose submission fails is recorded once against its task and is
// not retried or re-enqueued. A job that submits and later fails on the
// grid is only logged and reported to extensions.
//
// The loop owns none of its collaborators; the queue, grid, and failure
// recorder are constructed by the caller and outlive it.
package dispatcher
