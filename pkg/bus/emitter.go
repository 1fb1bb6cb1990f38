package bus

import "sync"

// Emitter is a synchronous multi-subscriber event stream.
// Emit calls the listeners subscribed at the time of the call, in
// subscription order, before returning. Nothing is buffered.
type Emitter struct {
	mu        sync.RWMutex
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(msg any)
}

// NewEmitter creates an emitter with no listeners.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe registers fn and returns a function that removes it.
func (e *Emitter) Subscribe(fn func(msg any)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, listener{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

// Emit delivers msg to every current listener.
func (e *Emitter) Emit(msg any) {
	e.mu.RLock()
	snapshot := e.listeners
	e.mu.RUnlock()

	for _, l := range snapshot {
		l.fn(msg)
	}
}

// Len returns the number of listeners.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

func (e *Emitter) remove(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Copy so an in-flight Emit keeps iterating its own snapshot.
	kept := make([]listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	e.listeners = kept
}
