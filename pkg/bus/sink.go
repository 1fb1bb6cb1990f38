package bus

import (
	"github.com/bft-labs/postbus/pkg/log"
)

// Sink owns outgoing channel registrations and writes envelopes to a
// Target, buffering batched channels until the scheduler is stable.
type Sink struct {
	target    Target
	channels  registry
	buffer    Payload
	scheduler Scheduler
	logger    log.Logger
	onError   func(error)
}

// NewSink creates a sink writing to target.
// Returns ErrNilTransport if target is nil.
func NewSink(target Target, opts ...Option) (*Sink, error) {
	if target == nil {
		return nil, ErrNilTransport
	}
	o := buildOptions(opts)

	s := &Sink{
		target:   target,
		channels: newRegistry(),
		logger:   o.logger,
		onError:  o.errorHandler,
	}
	return s, nil
}

// AttachScheduler subscribes the sink to the scheduler's stability signal.
// Each notification flushes the buffer if it is non-empty. Batched messages
// published before attachment stay buffered until the first notification
// after it. Only the first call has an effect.
func (s *Sink) AttachScheduler(scheduler Scheduler) {
	if s.scheduler != nil {
		s.logger.Warn("sink already attached to a scheduler, ignoring")
		return
	}
	s.scheduler = scheduler
	scheduler.RunOutsideScope(func() {
		scheduler.OnStable(s.handleStable)
	})
}

// InitChannel registers an outgoing channel.
// Returns an error wrapping ErrDuplicateChannel if name is already registered.
func (s *Sink) InitChannel(name string, batched bool) error {
	rec := &channelRecord{emitter: NewEmitter(), deferred: batched}
	if err := s.channels.insert(name, rec); err != nil {
		return err
	}

	rec.emitter.Subscribe(func(msg any) {
		env := Envelope{Channel: name, Message: msg}
		if batched {
			s.buffer = append(s.buffer, env)
			return
		}
		if err := s.send(Payload{env}); err != nil {
			s.report(err, log.Channel(name))
		}
	})

	s.logger.Debug("outgoing channel initialized",
		log.Channel(name),
		log.Bool("batched", batched))
	return nil
}

// Outgoing returns the publish endpoint of a registered channel.
// Returns an error wrapping ErrUnknownChannel if name was never registered.
func (s *Sink) Outgoing(name string) (*Emitter, error) {
	return s.channels.emitter(name)
}

// Has reports whether name is registered on this sink.
func (s *Sink) Has(name string) bool {
	_, ok := s.channels.lookup(name)
	return ok
}

// Pending returns the number of buffered envelopes.
func (s *Sink) Pending() int {
	return len(s.buffer)
}

// Flush writes all buffered envelopes as one payload and clears the buffer.
// It is a no-op on an empty buffer. The buffer is cleared even when the
// write fails; nothing is retried.
func (s *Sink) Flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	// Swap first so envelopes published while the write is in progress
	// land in the next batch.
	batch := s.buffer
	s.buffer = nil

	if err := s.send(batch); err != nil {
		return err
	}
	s.logger.Debug("flushed batch", log.Count(len(batch)))
	return nil
}

func (s *Sink) handleStable() {
	n := len(s.buffer)
	if err := s.Flush(); err != nil {
		s.report(err, log.Count(n))
	}
}

func (s *Sink) send(p Payload) error {
	return s.target.PostMessage(p)
}

func (s *Sink) report(err error, fields ...log.Field) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	s.logger.Error("transport write failed", append(fields, log.Err(err))...)
}
