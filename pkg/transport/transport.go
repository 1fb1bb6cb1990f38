package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/postbus/pkg/bus"
)

// ErrClosed is returned when writing to a closed port.
var ErrClosed = errors.New("transport: closed")

// Executor runs functions on the receiving side's goroutine.
// *scheduler.Loop satisfies it.
type Executor interface {
	Post(fn func())
}

// Listeners is the listener list of one port. It is safe for concurrent use.
type Listeners struct {
	mu   sync.RWMutex
	fns  []func(bus.MessageEvent)
	exec Executor
}

// NewListeners creates a listener list delivering through exec.
// A nil exec delivers synchronously on the caller's goroutine.
func NewListeners(exec Executor) *Listeners {
	return &Listeners{exec: exec}
}

// Add registers fn.
func (l *Listeners) Add(fn func(bus.MessageEvent)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fns = append(l.fns, fn)
}

// SetExecutor changes where later dispatches are delivered.
func (l *Listeners) SetExecutor(exec Executor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exec = exec
}

// Dispatch delivers p to every listener. Successive calls from one goroutine
// are delivered in call order.
func (l *Listeners) Dispatch(p bus.Payload) {
	l.mu.RLock()
	fns, exec := l.fns, l.exec
	l.mu.RUnlock()

	deliver := func() {
		ev := bus.MessageEvent{Data: p}
		for _, fn := range fns {
			fn(ev)
		}
	}
	if exec == nil {
		deliver()
		return
	}
	exec.Post(deliver)
}

// Encode serializes a payload into one frame.
func Encode(p bus.Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

// Decode parses a frame produced by Encode. A frame that is not a JSON array
// of envelopes is an error.
func Decode(frame []byte) (bus.Payload, error) {
	var p bus.Payload
	if err := json.Unmarshal(frame, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
