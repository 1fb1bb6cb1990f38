package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/postbus/pkg/log"
)

// Loop is a cooperative scheduler. Run, RunOutsideScope and OnStable must be
// called from the goroutine executing Serve or RunPending; Post is safe from
// any goroutine.
type Loop struct {
	depth       int
	stabilizing bool
	stable      []func()
	logger      log.Logger

	mu     sync.Mutex
	queue  []func()
	wakeup chan struct{}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger. If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: log.NewNoopLogger(),
		wakeup: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes fn inside the scope. When the outermost Run returns, the
// stability listeners are called, unless they are already running.
func (l *Loop) Run(fn func()) {
	l.depth++
	defer func() {
		l.depth--
		if l.depth == 0 {
			l.checkStable()
		}
	}()
	fn()
}

// RunOutsideScope executes fn without entering the scope.
// Returning from it never triggers stability.
func (l *Loop) RunOutsideScope(fn func()) {
	depth, stabilizing := l.depth, l.stabilizing
	defer func() { l.depth, l.stabilizing = depth, stabilizing }()

	// Scope entries made by fn must not look like outermost runs.
	l.depth = 0
	l.stabilizing = true
	fn()
}

// OnStable registers fn to be called after every outermost Run.
func (l *Loop) OnStable(fn func()) {
	l.stable = append(l.stable, fn)
}

// InScope reports whether the caller is executing inside Run.
func (l *Loop) InScope() bool {
	return l.depth > 0
}

// Post enqueues fn to be executed inside Run by the loop's goroutine.
// Tasks run in the order they were posted.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Serve executes posted tasks until ctx is cancelled, then returns ctx.Err().
// Tasks still queued at cancellation are left in the queue.
func (l *Loop) Serve(ctx context.Context) error {
	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wakeup:
		}
	}
}

// RunPending executes every task queued at the time of the call, plus tasks
// those tasks post, on the caller's goroutine. It returns the number of tasks
// executed.
func (l *Loop) RunPending() int {
	n := 0
	for {
		task, ok := l.next()
		if !ok {
			return n
		}
		l.runTask(task)
		n++
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// runTask keeps a panicking task from killing the loop goroutine.
func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("scheduled task panicked", log.Err(fmt.Errorf("%v", r)))
		}
	}()
	l.Run(task)
}

func (l *Loop) checkStable() {
	if l.stabilizing {
		return
	}
	l.stabilizing = true
	defer func() { l.stabilizing = false }()

	for _, fn := range l.stable {
		fn()
	}
}
