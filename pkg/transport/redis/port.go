// Package redis provides a bus transport over Redis pub/sub.
//
// A connection between two sides uses two topics, one per direction. Both
// sides share a prefix; [Topics] derives the pair for each side so that one
// side's send topic is the other's receive topic.
package redis

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bft-labs/postbus/pkg/bus"
	"github.com/bft-labs/postbus/pkg/log"
	"github.com/bft-labs/postbus/pkg/transport"
)

// Topics returns the send and receive topics for one side of a connection.
// The accepting side (server=true) receives on "<prefix>.up" and sends on
// "<prefix>.down"; the connecting side does the opposite.
func Topics(prefix string, server bool) (send, recv string) {
	up, down := prefix+".up", prefix+".down"
	if server {
		return down, up
	}
	return up, down
}

// Option configures a Port.
type Option func(*Port)

// WithLogger sets the logger for subscription and decode events.
func WithLogger(logger log.Logger) Option {
	return func(p *Port) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Port publishes payloads on one topic and delivers payloads received on
// another. The Redis client is owned by the caller.
type Port struct {
	client    *goredis.Client
	sendTopic string
	recvTopic string
	listeners *transport.Listeners
	logger    log.Logger

	mu     sync.Mutex
	pubsub *goredis.PubSub
	closed bool
	ready  chan struct{}
}

// New creates a port. Received payloads are delivered through exec while
// Listen is running.
func New(client *goredis.Client, sendTopic, recvTopic string, exec transport.Executor, opts ...Option) *Port {
	p := &Port{
		client:    client,
		sendTopic: sendTopic,
		recvTopic: recvTopic,
		listeners: transport.NewListeners(exec),
		logger:    log.NewNoopLogger(),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PostMessage publishes p as one message on the send topic.
func (p *Port) PostMessage(payload bus.Payload) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	frame, err := transport.Encode(payload)
	if err != nil {
		return err
	}
	if err := p.client.Publish(context.Background(), p.sendTopic, frame).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.sendTopic, err)
	}
	return nil
}

// AddMessageListener registers fn for every payload received.
func (p *Port) AddMessageListener(fn func(bus.MessageEvent)) {
	p.listeners.Add(fn)
}

// Ready is closed once Listen's subscription is confirmed by the server.
func (p *Port) Ready() <-chan struct{} {
	return p.ready
}

// Listen subscribes to the receive topic and dispatches payloads until ctx is
// cancelled or the port is closed. Messages that do not decode are logged
// and skipped.
func (p *Port) Listen(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return transport.ErrClosed
	}
	if p.pubsub != nil {
		p.mu.Unlock()
		return fmt.Errorf("redis port: already listening on %s", p.recvTopic)
	}
	ps := p.client.Subscribe(ctx, p.recvTopic)
	p.pubsub = ps
	p.mu.Unlock()

	if _, err := ps.Receive(ctx); err != nil {
		p.mu.Lock()
		p.pubsub = nil
		p.mu.Unlock()
		_ = ps.Close()
		return fmt.Errorf("subscribe %s: %w", p.recvTopic, err)
	}
	close(p.ready)
	p.logger.Info("redis subscription active", log.String("topic", p.recvTopic))

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.isClosed() {
				return nil
			}
			return fmt.Errorf("receive %s: %w", p.recvTopic, err)
		}

		payload, err := transport.Decode([]byte(msg.Payload))
		if err != nil {
			p.logger.Warn("skipping malformed message", log.String("topic", msg.Channel), log.Err(err))
			continue
		}
		p.listeners.Dispatch(payload)
	}
}

// Close ends the subscription. The Redis client stays open.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.pubsub != nil {
		return p.pubsub.Close()
	}
	return nil
}

func (p *Port) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

var (
	_ bus.Target      = (*Port)(nil)
	_ bus.EventTarget = (*Port)(nil)
)
