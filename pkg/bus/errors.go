package bus

import "errors"

// Bus errors. Returned errors wrap these with the channel name and can be
// checked with errors.Is.
var (
	// ErrDuplicateChannel is returned when a channel name is registered twice
	// on the same Sink or Source.
	ErrDuplicateChannel = errors.New("bus: channel already initialized")

	// ErrUnknownChannel is returned when a channel is looked up before
	// InitChannel was called for it.
	ErrUnknownChannel = errors.New("bus: channel not initialized")

	// ErrNilTransport is returned when a Sink or Source is built without a
	// transport handle.
	ErrNilTransport = errors.New("bus: nil transport")
)
