// Package bus implements a channel-multiplexed message bus over a single
// ordered transport.
//
// Two execution contexts (for example a main loop and a background worker)
// each own a [Bus]. Both sides register the same named channels; values
// published on a channel's outgoing [Emitter] are delivered only to the
// incoming [Emitter] of that channel on the other side, while every channel
// shares one physical connection.
//
// # Batching
//
// A [Sink] does not write batched channels immediately. Envelopes from all
// batched channels are appended to one shared buffer, in publication order,
// and written as a single [Payload] when the attached [Scheduler] reports
// that the current unit of work is stable. Channels registered with
// batched=false bypass the buffer and are written synchronously inside the
// publish call.
//
//	b, err := bus.New(port, port, bus.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	b.AttachScheduler(loop)
//	if err := b.InitChannel("render", true); err != nil {
//	    return err
//	}
//	out, _ := b.Outgoing("render")
//	out.Emit(frame)
//
// # Dispatch
//
// A [Source] listens once on its [EventTarget]. Each payload is processed
// envelope by envelope; envelopes for unregistered channels are dropped.
// Channels registered with runInScope=true are redelivered inside
// [Scheduler.Run].
//
// # Concurrency
//
// Sink and Source state is not locked. Drive publication, delivery and
// stability callbacks from the scheduler's goroutine; the transports in
// pkg/transport and pkg/scheduler.Loop arrange this.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package bus
