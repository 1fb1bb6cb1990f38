package app

import "errors"

// Node lifecycle errors. Check with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start is called on a running node.
	ErrAlreadyRunning = errors.New("postbus: already running")

	// ErrNotRunning is returned when Stop is called on a stopped node.
	ErrNotRunning = errors.New("postbus: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("postbus: shutdown timeout")

	// ErrNotBound is returned when a node is started before a transport is bound.
	ErrNotBound = errors.New("postbus: no transport bound")
)
