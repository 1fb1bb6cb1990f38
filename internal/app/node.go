package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/postbus/pkg/bus"
	"github.com/bft-labs/postbus/pkg/log"
	"github.com/bft-labs/postbus/pkg/scheduler"
)

// ChannelSpec describes one bus channel.
type ChannelSpec struct {
	Name    string
	Batched bool
}

// NodeConfig configures a Node.
type NodeConfig struct {
	Channels []ChannelSpec
	Logger   log.Logger
}

// ServeFunc is a transport's read loop. It must return when ctx is cancelled.
type ServeFunc func(ctx context.Context) error

// Node is one side of a bus connection: a scheduler loop, a bus bound to a
// transport, and the goroutines driving them.
type Node struct {
	id        string
	config    NodeConfig
	loop      *scheduler.Loop
	lifecycle *Lifecycle
	logger    log.Logger

	mu    sync.Mutex
	bus   *bus.Bus
	serve ServeFunc
}

// NewNode creates an unbound node in StateStopped.
func NewNode(cfg NodeConfig) *Node {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	id := uuid.NewString()
	logger = log.With(logger, log.String("node", id))

	return &Node{
		id:        id,
		config:    cfg,
		loop:      scheduler.New(scheduler.WithLogger(log.WithComponent(logger, "loop"))),
		lifecycle: NewLifecycle(logger),
		logger:    logger,
	}
}

// ID returns the node's unique identifier.
func (n *Node) ID() string { return n.id }

// Loop returns the node's scheduler. Transports deliver through it.
func (n *Node) Loop() *scheduler.Loop { return n.loop }

// Status returns the current lifecycle state.
func (n *Node) Status() State { return n.lifecycle.State() }

// Bind builds the node's bus over a transport, registers the configured
// channels and attaches the loop. serve, if non-nil, runs while the node is
// started. Bind must be called once, before Start.
func (n *Node) Bind(target bus.Target, events bus.EventTarget, serve ServeFunc) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bus != nil {
		return errors.New("postbus: transport already bound")
	}

	b, err := bus.New(target, events, bus.WithLogger(log.WithComponent(n.logger, "bus")))
	if err != nil {
		return err
	}
	for _, ch := range n.config.Channels {
		if err := b.InitChannel(ch.Name, ch.Batched); err != nil {
			return fmt.Errorf("init channel: %w", err)
		}
	}
	b.AttachScheduler(n.loop)

	n.bus = b
	n.serve = serve
	return nil
}

// Bus returns the bound bus, or nil before Bind.
func (n *Node) Bus() *bus.Bus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bus
}

// Publish queues msgs for publication on channel. All of them are emitted in
// one loop task, so on a batched channel they leave in one payload.
func (n *Node) Publish(channel string, msgs ...any) error {
	b := n.Bus()
	if b == nil {
		return ErrNotBound
	}
	out, err := b.Outgoing(channel)
	if err != nil {
		return err
	}
	n.loop.Post(func() {
		for _, msg := range msgs {
			out.Emit(msg)
		}
	})
	return nil
}

// Subscribe calls fn for every message received on channel. fn runs on the
// loop goroutine.
func (n *Node) Subscribe(channel string, fn func(msg any)) (unsubscribe func(), err error) {
	b := n.Bus()
	if b == nil {
		return nil, ErrNotBound
	}
	in, err := b.Incoming(channel)
	if err != nil {
		return nil, err
	}
	return in.Subscribe(fn), nil
}

// Start runs the loop and the transport read loop in the background.
// A read loop that fails moves the node to StateCrashed.
func (n *Node) Start(ctx context.Context) error {
	if n.Bus() == nil {
		return ErrNotBound
	}
	if !n.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := n.lifecycle.TransitionTo(StateStarting, "Start() called"); err != nil {
		return err
	}

	// The loop outlives ctx so Stop can still run the final flush on it.
	runCtx, cancel := context.WithCancel(ctx)
	loopCtx, cancelLoop := context.WithCancel(context.WithoutCancel(ctx))
	n.lifecycle.SetCancel(func() {
		cancel()
		cancelLoop()
	})

	n.lifecycle.Go(func() {
		_ = n.loop.Serve(loopCtx)
	})
	if n.serve != nil {
		n.lifecycle.Go(func() {
			err := n.serve(runCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				n.logger.Error("transport stopped", log.Err(err))
				_ = n.lifecycle.TransitionTo(StateCrashed, err.Error())
			}
		})
	}

	return n.lifecycle.TransitionTo(StateRunning, "workers started")
}

// Stop flushes pending batched envelopes, cancels the workers and waits for
// them. Returns ErrShutdownTimeout if they do not finish in time.
func (n *Node) Stop() error {
	if !n.lifecycle.CanStop() {
		return ErrNotRunning
	}
	if err := n.lifecycle.TransitionTo(StateStopping, "Stop() called"); err != nil {
		return err
	}

	flushed := make(chan struct{})
	n.loop.Post(func() {
		if err := n.Bus().Sink().Flush(); err != nil {
			n.logger.Warn("final flush failed", log.Err(err))
		}
		close(flushed)
	})
	select {
	case <-flushed:
	case <-time.After(ShutdownTimeout):
		n.logger.Warn("final flush did not run before timeout")
	}

	n.lifecycle.Cancel()
	err := n.lifecycle.WaitWithTimeout(ShutdownTimeout)
	if err != nil {
		_ = n.lifecycle.TransitionTo(StateCrashed, "shutdown timeout")
		return err
	}
	_ = n.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
	return nil
}
