// Package memory provides an in-process transport: a pair of ports where
// each port's writes are delivered, in order, to the other's listeners.
package memory

import (
	"sync"

	"github.com/bft-labs/postbus/pkg/bus"
	"github.com/bft-labs/postbus/pkg/transport"
)

// Port is one end of a Pipe.
type Port struct {
	peer      *Port
	listeners *transport.Listeners

	mu     sync.RWMutex
	closed bool
}

// NewPipe returns two connected ports. Payloads written to a are delivered to
// b's listeners through execB, and the other way round through execA.
// A nil executor delivers synchronously inside PostMessage.
func NewPipe(execA, execB transport.Executor) (*Port, *Port) {
	a := &Port{listeners: transport.NewListeners(execA)}
	b := &Port{listeners: transport.NewListeners(execB)}
	a.peer, b.peer = b, a
	return a, b
}

// PostMessage delivers a copy of p to the peer.
// Returns transport.ErrClosed if either end is closed.
func (p *Port) PostMessage(payload bus.Payload) error {
	if p.isClosed() || p.peer.isClosed() {
		return transport.ErrClosed
	}
	cp := make(bus.Payload, len(payload))
	copy(cp, payload)
	p.peer.listeners.Dispatch(cp)
	return nil
}

// AddMessageListener registers fn for payloads written by the peer.
func (p *Port) AddMessageListener(fn func(bus.MessageEvent)) {
	p.listeners.Add(fn)
}

// Close closes this end. Writes from either end fail afterwards.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Port) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

var (
	_ bus.Target      = (*Port)(nil)
	_ bus.EventTarget = (*Port)(nil)
)
