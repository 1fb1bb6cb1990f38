package bus

import "errors"

// recordingTarget records every payload written to it.
type recordingTarget struct {
	sent []Payload
	err  error
}

func (r *recordingTarget) PostMessage(p Payload) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, append(Payload(nil), p...))
	return nil
}

// fakeEvents lets a test deliver payloads to registered listeners.
type fakeEvents struct {
	listeners []func(MessageEvent)
}

func (f *fakeEvents) AddMessageListener(fn func(MessageEvent)) {
	f.listeners = append(f.listeners, fn)
}

func (f *fakeEvents) deliver(p Payload) {
	for _, l := range f.listeners {
		l(MessageEvent{Data: p})
	}
}

// fakeScheduler records scope usage and fires stability on demand.
type fakeScheduler struct {
	runCalls     int
	outsideCalls int
	inRun        bool
	stable       []func()
}

func (f *fakeScheduler) Run(fn func()) {
	f.runCalls++
	f.inRun = true
	defer func() { f.inRun = false }()
	fn()
}

func (f *fakeScheduler) RunOutsideScope(fn func()) {
	f.outsideCalls++
	fn()
}

func (f *fakeScheduler) OnStable(fn func()) {
	f.stable = append(f.stable, fn)
}

func (f *fakeScheduler) fireStable() {
	for _, fn := range f.stable {
		fn()
	}
}

var errTransport = errors.New("transport down")
