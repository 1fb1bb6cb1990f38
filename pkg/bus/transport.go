package bus

// Target is the sending half of a transport.
type Target interface {
	// PostMessage writes one payload. Order across calls must be preserved
	// by the implementation.
	PostMessage(p Payload) error
}

// EventTarget is the receiving half of a transport.
type EventTarget interface {
	// AddMessageListener registers fn to be called for every payload
	// received, in arrival order.
	AddMessageListener(fn func(ev MessageEvent))
}

// Scheduler is the cooperative scheduler a bus defers to.
type Scheduler interface {
	// Run executes fn inside the scheduler's scope.
	Run(fn func())

	// RunOutsideScope executes fn without the scope noticing.
	RunOutsideScope(fn func())

	// OnStable registers fn to be called each time the scope's current
	// unit of work settles.
	OnStable(fn func())
}
