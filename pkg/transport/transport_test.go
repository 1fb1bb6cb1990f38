package transport

import (
	"reflect"
	"testing"

	"github.com/bft-labs/postbus/pkg/bus"
)

type queueExecutor struct {
	tasks []func()
}

func (q *queueExecutor) Post(fn func()) { q.tasks = append(q.tasks, fn) }

func (q *queueExecutor) drain() {
	for len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		task()
	}
}

func TestListeners_DispatchThroughExecutor(t *testing.T) {
	exec := &queueExecutor{}
	l := NewListeners(exec)
	var got []bus.Payload
	l.Add(func(ev bus.MessageEvent) { got = append(got, ev.Data) })

	l.Dispatch(bus.Payload{{Channel: "a", Message: 1}})
	l.Dispatch(bus.Payload{{Channel: "a", Message: 2}})

	if len(got) != 0 {
		t.Fatalf("delivered before executor ran: %v", got)
	}
	exec.drain()

	want := []bus.Payload{
		{{Channel: "a", Message: 1}},
		{{Channel: "a", Message: 2}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestListeners_NilExecutorIsSynchronous(t *testing.T) {
	l := NewListeners(nil)
	calls := 0
	l.Add(func(bus.MessageEvent) { calls++ })

	l.Dispatch(bus.Payload{{Channel: "a"}})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestListeners_SetExecutor(t *testing.T) {
	l := NewListeners(nil)
	calls := 0
	l.Add(func(bus.MessageEvent) { calls++ })

	exec := &queueExecutor{}
	l.SetExecutor(exec)
	l.Dispatch(bus.Payload{{Channel: "a"}})

	if calls != 0 {
		t.Fatalf("calls = %d before executor ran, want 0", calls)
	}
	exec.drain()
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCodec(t *testing.T) {
	frame, err := Encode(bus.Payload{{Channel: "a", Message: "hi"}, {Channel: "b", Message: 2}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if want := `[{"channel":"a","message":"hi"},{"channel":"b","message":2}]`; string(frame) != want {
		t.Errorf("frame = %s, want %s", frame, want)
	}

	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := bus.Payload{{Channel: "a", Message: "hi"}, {Channel: "b", Message: float64(2)}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %v, want %v", got, want)
	}

	if _, err := Decode([]byte(`{"channel":"a"}`)); err == nil {
		t.Error("Decode(single envelope) error = nil, want error")
	}
}
