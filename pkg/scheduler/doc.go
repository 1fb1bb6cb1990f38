// Package scheduler provides Loop, a cooperative single-goroutine scheduler
// that satisfies the bus.Scheduler contract.
//
// Work enters a Loop in two ways. Code already running on the loop's
// goroutine calls [Loop.Run] directly. Any other goroutine (a transport read
// loop, a file watcher, a timer) calls [Loop.Post], and [Loop.Serve] later
// executes the task inside Run. When the outermost Run returns, every
// listener registered with [Loop.OnStable] is called; a bus Sink flushes its
// batched envelopes there.
//
//	loop := scheduler.New(scheduler.WithLogger(logger))
//	b.AttachScheduler(loop)
//	go loop.Serve(ctx)
//	loop.Post(func() { out.Emit(msg) })
package scheduler
