// Package iosched provides a single-threaded readiness scheduler.
//
// All callbacks run on the goroutine that calls Run, one at a time, so state
// touched only from callbacks needs no further locking. A registered reader is
// drained by its own goroutine, which assembles complete lines and hands them
// to the loop one per dispatch, waiting until that dispatch finished before
// reading the next line:
//
//	sched := iosched.New(logger)
//	go sched.Run(ctx)
//
//	entry, err := sched.Register(stdout, func(line string, ok bool) {
//	    if !ok {
//	        // stream ended
//	        return
//	    }
//	    handle(line)
//	})
//	...
//	sched.Unregister(entry)
//
// Unregister never blocks and may be called from inside a callback. The reader
// goroutine exits once the stream returns EOF or an error, so owners close the
// stream after unregistering.
package iosched
