package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/postbus/pkg/bus"
	"github.com/bft-labs/postbus/pkg/transport/memory"
)

var testChannels = []ChannelSpec{
	{Name: "events", Batched: true},
	{Name: "control", Batched: false},
}

// newPair binds two nodes to the ends of one in-memory pipe.
func newPair(t *testing.T) (*Node, *Node, *memory.Port) {
	t.Helper()
	a := NewNode(NodeConfig{Channels: testChannels})
	b := NewNode(NodeConfig{Channels: testChannels})
	portA, portB := memory.NewPipe(a.Loop(), b.Loop())

	if err := a.Bind(portA, portA, nil); err != nil {
		t.Fatalf("Bind(a) error = %v", err)
	}
	if err := b.Bind(portB, portB, nil); err != nil {
		t.Fatalf("Bind(b) error = %v", err)
	}
	return a, b, portB
}

type received struct {
	mu   sync.Mutex
	msgs []any
	ch   chan struct{}
}

func newReceived() *received {
	return &received{ch: make(chan struct{}, 64)}
}

func (r *received) add(msg any) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *received) wait(t *testing.T, n int) []any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-deadline:
			t.Fatalf("timeout after %d of %d messages", i, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.msgs...)
}

func TestNode_PublishBatchesOneTaskIntoOnePayload(t *testing.T) {
	a, b, portB := newPair(t)

	sizes := make(chan int, 8)
	portB.AddMessageListener(func(ev bus.MessageEvent) { sizes <- len(ev.Data) })

	got := newReceived()
	if _, err := b.Subscribe("events", got.add); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, n := range []*Node{a, b} {
		if err := n.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	}
	defer b.Stop()

	if err := a.Publish("events", 1, 2, 3); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := got.wait(t, 3)
	for i, want := range []any{1, 2, 3} {
		if msgs[i] != want {
			t.Errorf("msgs[%d] = %v, want %v", i, msgs[i], want)
		}
	}
	select {
	case n := <-sizes:
		if n != 3 {
			t.Errorf("first payload carried %d envelopes, want 3", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no payload observed")
	}
	select {
	case n := <-sizes:
		t.Errorf("unexpected second payload of %d envelopes", n)
	default:
	}

	if err := a.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if a.Status() != StateStopped {
		t.Errorf("Status() = %v, want StateStopped", a.Status())
	}
}

func TestNode_UnknownChannel(t *testing.T) {
	a, _, _ := newPair(t)

	if err := a.Publish("nope", 1); !errors.Is(err, bus.ErrUnknownChannel) {
		t.Errorf("Publish() error = %v, want ErrUnknownChannel", err)
	}
	if _, err := a.Subscribe("nope", func(any) {}); !errors.Is(err, bus.ErrUnknownChannel) {
		t.Errorf("Subscribe() error = %v, want ErrUnknownChannel", err)
	}
}

func TestNode_RequiresBind(t *testing.T) {
	n := NewNode(NodeConfig{})

	if err := n.Start(context.Background()); !errors.Is(err, ErrNotBound) {
		t.Errorf("Start() error = %v, want ErrNotBound", err)
	}
	if err := n.Publish("events", 1); !errors.Is(err, ErrNotBound) {
		t.Errorf("Publish() error = %v, want ErrNotBound", err)
	}
}

func TestNode_BindTwice(t *testing.T) {
	a, _, _ := newPair(t)
	p, _ := memory.NewPipe(nil, nil)

	if err := a.Bind(p, p, nil); err == nil {
		t.Error("second Bind() error = nil")
	}
}

func TestNode_StartStop(t *testing.T) {
	a, _, _ := newPair(t)
	ctx := context.Background()

	if err := a.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop() before Start error = %v, want ErrNotRunning", err)
	}
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
	if err := a.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestNode_FailingTransportCrashes(t *testing.T) {
	n := NewNode(NodeConfig{Channels: testChannels})
	p, _ := memory.NewPipe(nil, nil)
	boom := errors.New("connection reset")
	if err := n.Bind(p, p, func(context.Context) error { return boom }); err != nil {
		t.Fatal(err)
	}

	_ = n.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for n.Status() != StateCrashed && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n.Status() != StateCrashed {
		t.Fatalf("Status() = %v, want StateCrashed", n.Status())
	}
	if err := n.Stop(); err != nil {
		t.Errorf("Stop() after crash error = %v", err)
	}
}

func TestNode_StopAfterContextCancelFlushes(t *testing.T) {
	n := NewNode(NodeConfig{Channels: testChannels})
	local, remote := memory.NewPipe(nil, nil)
	if err := n.Bind(local, local, nil); err != nil {
		t.Fatal(err)
	}
	sent := make(chan bus.Payload, 4)
	remote.AddMessageListener(func(ev bus.MessageEvent) { sent <- ev.Data })

	ctx, cancel := context.WithCancel(context.Background())
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	// The caller's context ends first, as on a signal.
	cancel()
	if err := n.Publish("events", "late"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	start := time.Now()
	if err := n.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if took := time.Since(start); took > ShutdownTimeout/2 {
		t.Errorf("Stop() took %v, want well under %v", took, ShutdownTimeout)
	}

	select {
	case p := <-sent:
		if len(p) != 1 || p[0].Channel != "events" || p[0].Message != "late" {
			t.Errorf("payload = %+v, want one events/late envelope", p)
		}
	default:
		t.Fatal("envelope published before Stop was not sent")
	}
	if pending := n.Bus().Sink().Pending(); pending != 0 {
		t.Errorf("Pending() = %d after Stop, want 0", pending)
	}
}
