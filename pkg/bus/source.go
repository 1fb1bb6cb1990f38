package bus

import (
	"github.com/bft-labs/postbus/pkg/log"
)

// Source owns incoming channel registrations and redelivers envelopes
// received from an EventTarget to the matching channel's emitter.
type Source struct {
	channels  registry
	scheduler Scheduler
	logger    log.Logger
}

// NewSource creates a source that listens on events for its whole lifetime.
// Returns ErrNilTransport if events is nil.
func NewSource(events EventTarget, opts ...Option) (*Source, error) {
	if events == nil {
		return nil, ErrNilTransport
	}
	o := buildOptions(opts)

	s := &Source{
		channels: newRegistry(),
		logger:   o.logger,
	}
	events.AddMessageListener(s.handleMessages)
	return s, nil
}

// AttachScheduler records the scheduler used for scoped redelivery.
// Only the first call has an effect.
func (s *Source) AttachScheduler(scheduler Scheduler) {
	if s.scheduler != nil {
		s.logger.Warn("source already attached to a scheduler, ignoring")
		return
	}
	s.scheduler = scheduler
}

// InitChannel registers an incoming channel. When runInScope is true,
// messages are redelivered inside Scheduler.Run.
// Returns an error wrapping ErrDuplicateChannel if name is already registered.
func (s *Source) InitChannel(name string, runInScope bool) error {
	rec := &channelRecord{emitter: NewEmitter(), deferred: runInScope}
	if err := s.channels.insert(name, rec); err != nil {
		return err
	}
	s.logger.Debug("incoming channel initialized",
		log.Channel(name),
		log.Bool("run_in_scope", runInScope))
	return nil
}

// Incoming returns the subscribe endpoint of a registered channel.
// Returns an error wrapping ErrUnknownChannel if name was never registered.
func (s *Source) Incoming(name string) (*Emitter, error) {
	return s.channels.emitter(name)
}

// Has reports whether name is registered on this source.
func (s *Source) Has(name string) bool {
	_, ok := s.channels.lookup(name)
	return ok
}

func (s *Source) handleMessages(ev MessageEvent) {
	for _, env := range ev.Data {
		s.handleMessage(env)
	}
}

func (s *Source) handleMessage(env Envelope) {
	rec, ok := s.channels.lookup(env.Channel)
	if !ok {
		s.logger.Debug("dropping envelope for unregistered channel", log.Channel(env.Channel))
		return
	}

	// A scoped channel without a scheduler is delivered directly.
	if rec.deferred && s.scheduler != nil {
		s.scheduler.Run(func() { rec.emitter.Emit(env.Message) })
		return
	}
	rec.emitter.Emit(env.Message)
}
