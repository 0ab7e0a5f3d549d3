// Package audithook is an extension that turns dispatch lifecycle events
// into audit events and hands them to a [Recorder].
//
// Each hook maps to one action. Claims and successful submissions are
// info, synchronous submit failures are critical, and finished jobs are
// info or warning depending on the remote outcome.
//
//	eng, _ := engine.Build(node,
//	    engine.WithExtension(audithook.New(audithook.LogRecorder(logger))),
//	)
//
// To record only failures:
//
//	audithook.New(rec, audithook.WithActions(
//	    audithook.ActionJobSubmitFailed,
//	    audithook.ActionJobFinished,
//	))
package audithook
