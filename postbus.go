// Package postbus multiplexes named message channels over one ordered
// transport.
//
// Example usage:
//
//	loop := postbus.NewLoop()
//	a, b := memory.NewPipe(loop, loop)
//	left, err := postbus.New(a, a)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	right, err := postbus.New(b, b)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, side := range []*postbus.Bus{left, right} {
//	    side.AttachScheduler(loop)
//	    _ = side.InitChannel("events", true)
//	}
//	in, _ := right.Incoming("events")
//	in.Subscribe(func(msg any) { fmt.Println(msg) })
//	out, _ := left.Outgoing("events")
//	loop.Post(func() { out.Emit("hello") })
//	loop.RunPending()
package postbus

import (
	"github.com/bft-labs/postbus/pkg/bus"
	"github.com/bft-labs/postbus/pkg/scheduler"
)

// Bus pairs a Sink and a Source over one transport.
type Bus = bus.Bus

// Sink is the outgoing half of a Bus.
type Sink = bus.Sink

// Source is the incoming half of a Bus.
type Source = bus.Source

// Emitter is a synchronous event stream; each channel has one per direction.
type Emitter = bus.Emitter

// Envelope tags a message with its channel name.
type Envelope = bus.Envelope

// Payload is the unit written to the transport.
type Payload = bus.Payload

// Option configures a Sink, Source or Bus.
type Option = bus.Option

// Loop is the single-goroutine scheduler buses attach to.
type Loop = scheduler.Loop

// Errors returned by channel registration and lookup.
var (
	ErrDuplicateChannel = bus.ErrDuplicateChannel
	ErrUnknownChannel   = bus.ErrUnknownChannel
	ErrNilTransport     = bus.ErrNilTransport
)

// New creates a Bus writing to target and listening on events.
func New(target bus.Target, events bus.EventTarget, opts ...Option) (*Bus, error) {
	return bus.New(target, events, opts...)
}

// NewLoop creates a scheduler loop.
func NewLoop(opts ...scheduler.Option) *Loop {
	return scheduler.New(opts...)
}

// WithLogger is bus.WithLogger.
var WithLogger = bus.WithLogger

// WithErrorHandler is bus.WithErrorHandler.
var WithErrorHandler = bus.WithErrorHandler
