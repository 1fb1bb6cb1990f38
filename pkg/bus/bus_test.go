package bus

import (
	"errors"
	"reflect"
	"testing"
)

func newTestBus(t *testing.T) (*Bus, *recordingTarget, *fakeEvents, *fakeScheduler) {
	t.Helper()
	target := &recordingTarget{}
	events := &fakeEvents{}
	b, err := New(target, events)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sched := &fakeScheduler{}
	b.AttachScheduler(sched)
	return b, target, events, sched
}

func TestNew_NilHandles(t *testing.T) {
	if _, err := New(nil, &fakeEvents{}); !errors.Is(err, ErrNilTransport) {
		t.Errorf("New(nil, events) error = %v, want ErrNilTransport", err)
	}
	if _, err := New(&recordingTarget{}, nil); !errors.Is(err, ErrNilTransport) {
		t.Errorf("New(target, nil) error = %v, want ErrNilTransport", err)
	}
}

func TestBus_InitChannel_RegistersBothSides(t *testing.T) {
	b, target, events, sched := newTestBus(t)

	if err := b.InitChannel("a", false); err != nil {
		t.Fatalf("InitChannel() error = %v", err)
	}
	if !b.Sink().Has("a") || !b.Source().Has("a") {
		t.Fatalf("channel missing: sink=%v source=%v", b.Sink().Has("a"), b.Source().Has("a"))
	}

	out, err := b.Outgoing("a")
	if err != nil {
		t.Fatal(err)
	}
	out.Emit("now")
	if len(target.sent) != 1 {
		t.Errorf("non-batched publish sent %d payloads, want 1", len(target.sent))
	}

	in, err := b.Incoming("a")
	if err != nil {
		t.Fatal(err)
	}
	var got []any
	in.Subscribe(func(msg any) { got = append(got, msg) })
	events.deliver(Payload{{Channel: "a", Message: "in"}})

	if !reflect.DeepEqual(got, []any{"in"}) {
		t.Errorf("incoming = %v, want [in]", got)
	}
	if sched.runCalls != 0 {
		t.Errorf("Run calls = %d, want 0 for unscoped channel", sched.runCalls)
	}
}

func TestBus_InitChannel_Duplicate(t *testing.T) {
	b, _, _, _ := newTestBus(t)

	if err := b.InitChannel("a", true); err != nil {
		t.Fatal(err)
	}
	if err := b.InitChannel("a", true); !errors.Is(err, ErrDuplicateChannel) {
		t.Errorf("second InitChannel() error = %v, want ErrDuplicateChannel", err)
	}
}

func TestBus_InitChannel_NoPartialRegistration(t *testing.T) {
	tests := []struct {
		name    string
		preInit func(b *Bus) error
	}{
		{"source already holds name", func(b *Bus) error { return b.Source().InitChannel("a", true) }},
		{"sink already holds name", func(b *Bus) error { return b.Sink().InitChannel("a", true) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, _, _ := newTestBus(t)
			if err := tt.preInit(b); err != nil {
				t.Fatal(err)
			}
			sinkBefore, sourceBefore := b.Sink().Has("a"), b.Source().Has("a")

			if err := b.InitChannel("a", true); !errors.Is(err, ErrDuplicateChannel) {
				t.Fatalf("InitChannel() error = %v, want ErrDuplicateChannel", err)
			}
			if b.Sink().Has("a") != sinkBefore || b.Source().Has("a") != sourceBefore {
				t.Errorf("registration changed: sink %v->%v source %v->%v",
					sinkBefore, b.Sink().Has("a"), sourceBefore, b.Source().Has("a"))
			}
		})
	}
}

func TestBus_AttachScheduler_ForwardsToBoth(t *testing.T) {
	b, target, events, sched := newTestBus(t)
	if err := b.InitChannel("a", true); err != nil {
		t.Fatal(err)
	}

	out, _ := b.Outgoing("a")
	out.Emit(1)
	sched.fireStable()
	if len(target.sent) != 1 {
		t.Errorf("sink not attached: sent %d payloads, want 1", len(target.sent))
	}

	events.deliver(Payload{{Channel: "a", Message: 2}})
	if sched.runCalls != 1 {
		t.Errorf("source not attached: Run calls = %d, want 1", sched.runCalls)
	}
}

func TestBus_UnknownChannel(t *testing.T) {
	b, _, _, _ := newTestBus(t)

	if _, err := b.Outgoing("nope"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Outgoing() error = %v, want ErrUnknownChannel", err)
	}
	if _, err := b.Incoming("nope"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Incoming() error = %v, want ErrUnknownChannel", err)
	}
}
