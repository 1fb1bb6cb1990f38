package bus

import "fmt"

// MessageBusSink is the outgoing half of a message bus.
type MessageBusSink interface {
	AttachScheduler(s Scheduler)
	InitChannel(name string, batched bool) error
	Outgoing(name string) (*Emitter, error)
}

// MessageBusSource is the incoming half of a message bus.
type MessageBusSource interface {
	AttachScheduler(s Scheduler)
	InitChannel(name string, runInScope bool) error
	Incoming(name string) (*Emitter, error)
}

// MessageBus exposes both directions of a bus through one registration surface.
type MessageBus interface {
	MessageBusSink
	MessageBusSource
}

// Bus pairs one Sink and one Source and keeps their channel sets in lockstep.
type Bus struct {
	sink   *Sink
	source *Source
}

// NewBus creates a facade over an existing sink and source.
func NewBus(sink *Sink, source *Source) *Bus {
	return &Bus{sink: sink, source: source}
}

// New creates a Sink writing to target and a Source listening on events,
// both configured with opts, and returns the facade over them.
func New(target Target, events EventTarget, opts ...Option) (*Bus, error) {
	sink, err := NewSink(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sink: %w", err)
	}
	source, err := NewSource(events, opts...)
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	return NewBus(sink, source), nil
}

// AttachScheduler attaches s to both the source and the sink.
func (b *Bus) AttachScheduler(s Scheduler) {
	b.source.AttachScheduler(s)
	b.sink.AttachScheduler(s)
}

// InitChannel registers name on both sides with the same flag.
// If either side already holds name, neither side is modified and an error
// wrapping ErrDuplicateChannel is returned.
func (b *Bus) InitChannel(name string, batched bool) error {
	if b.source.Has(name) || b.sink.Has(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateChannel, name)
	}
	if err := b.source.InitChannel(name, batched); err != nil {
		return err
	}
	return b.sink.InitChannel(name, batched)
}

// Outgoing returns the sink's publish endpoint for name.
func (b *Bus) Outgoing(name string) (*Emitter, error) {
	return b.sink.Outgoing(name)
}

// Incoming returns the source's subscribe endpoint for name.
func (b *Bus) Incoming(name string) (*Emitter, error) {
	return b.source.Incoming(name)
}

// Sink returns the outgoing half.
func (b *Bus) Sink() *Sink { return b.sink }

// Source returns the incoming half.
func (b *Bus) Source() *Source { return b.source }

var (
	_ MessageBus       = (*Bus)(nil)
	_ MessageBusSink   = (*Sink)(nil)
	_ MessageBusSource = (*Source)(nil)
)
