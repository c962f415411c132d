package eventbus

import (
	"reflect"
	"testing"
)

func TestPublishOrder(t *testing.T) {
	b := New()
	var got []string
	b.Subscribe("stamps:changed", func(ev Event) { got = append(got, "first:"+ev.Topic) })
	b.Subscribe("stamps:changed", func(ev Event) { got = append(got, "second:"+ev.Topic) })
	b.Subscribe(All, func(ev Event) { got = append(got, "all:"+ev.Topic) })
	b.Publish("stamps:changed", nil)
	b.Publish("patches:changed", nil)

	want := []string{"first:stamps:changed", "second:stamps:changed", "all:stamps:changed", "all:patches:changed"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	stop := b.Subscribe("x", func(Event) { calls++ })
	b.Publish("x", nil)
	stop()
	b.Publish("x", nil)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestReentrantPublish(t *testing.T) {
	b := New()
	rec := &Recorder{}
	b.Subscribe(All, rec.Handle)
	b.Subscribe("a", func(Event) { b.Publish("b", 1) })
	b.Publish("a", 0)
	if got := rec.Topics(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Fatalf("topics = %v", got)
	}
	rec.Reset()
	if len(rec.Events()) != 0 {
		t.Fatalf("reset did not clear")
	}
}

func TestQueueDefersDelivery(t *testing.T) {
	q := NewQueue(New())
	rec := &Recorder{}
	q.Subscribe(All, rec.Handle)
	q.Publish("a", 1)
	q.Publish("b", 2)
	if n := len(rec.Events()); n != 0 || q.Len() != 2 {
		t.Fatalf("delivered %d events before Flush, pending %d", n, q.Len())
	}
	q.Flush()
	if got := rec.Topics(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("topics = %v", got)
	}
	if q.Len() != 0 {
		t.Fatalf("pending after Flush = %d", q.Len())
	}
}

func TestQueueHandlerPublishes(t *testing.T) {
	q := NewQueue(New())
	rec := &Recorder{}
	q.Subscribe(All, rec.Handle)
	q.Subscribe("a", func(Event) {
		q.Publish("c", nil)
		q.Flush()
	})
	q.Publish("a", nil)
	q.Publish("b", nil)
	q.Flush()
	if got := rec.Topics(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("topics = %v", got)
	}
}
