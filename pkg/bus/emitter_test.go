package bus

import (
	"reflect"
	"testing"
)

func TestEmitter_DeliversInSubscriptionOrder(t *testing.T) {
	e := NewEmitter()
	var got []string
	e.Subscribe(func(msg any) { got = append(got, "first:"+msg.(string)) })
	e.Subscribe(func(msg any) { got = append(got, "second:"+msg.(string)) })

	e.Emit("x")

	want := []string{"first:x", "second:x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter()
	calls := 0
	unsubscribe := e.Subscribe(func(any) { calls++ })

	e.Emit(1)
	unsubscribe()
	unsubscribe()
	e.Emit(2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
}

func TestEmitter_SubscribeDuringEmit(t *testing.T) {
	e := NewEmitter()
	late := 0
	e.Subscribe(func(any) {
		e.Subscribe(func(any) { late++ })
	})

	e.Emit(1)
	if late != 0 {
		t.Errorf("listener added during emit was called %d times, want 0", late)
	}
}
