// Package eventbus delivers change notifications from the annotation store to
// its projections (canvas redraw, layer panel, autosave).
package eventbus

import "sync"

// Event is one published notification.
type Event struct {
	Topic   string
	Payload interface{}
}

// Handler receives events synchronously on the publishing goroutine.
type Handler func(Event)

// All subscribes a handler to every topic.
const All = "*"

type Bus interface {
	Subscribe(topic string, h Handler) (unsubscribe func())
	Publish(topic string, payload interface{})
}

type subscription struct {
	id int
	h  Handler
}

// Hub is the in-process Bus.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

func New() *Hub { return &Hub{subs: make(map[string][]subscription)} }

// Subscribe registers h for topic. Handlers run in registration order.
func (b *Hub) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, h: h})
	return func() { b.unsubscribe(topic, id) }
}

func (b *Hub) unsubscribe(topic string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[topic]
	for i, s := range list {
		if s.id == id {
			b.subs[topic] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish calls every handler of topic, then every All handler. Handlers may
// publish or subscribe themselves; the handler list is captured first.
func (b *Hub) Publish(topic string, payload interface{}) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic])+len(b.subs[All]))
	for _, s := range b.subs[topic] {
		handlers = append(handlers, s.h)
	}
	if topic != All {
		for _, s := range b.subs[All] {
			handlers = append(handlers, s.h)
		}
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, h := range handlers {
		h(ev)
	}
}

// Queue holds published events until Flush hands them to the wrapped bus.
// A component that publishes while holding its own lock publishes to a Queue
// and flushes after unlocking, so handlers may call back into it.
type Queue struct {
	bus Bus

	mu       sync.Mutex
	pending  []Event
	flushing bool
}

func NewQueue(b Bus) *Queue { return &Queue{bus: b} }

func (q *Queue) Subscribe(topic string, h Handler) func() { return q.bus.Subscribe(topic, h) }

func (q *Queue) Publish(topic string, payload interface{}) {
	q.mu.Lock()
	q.pending = append(q.pending, Event{Topic: topic, Payload: payload})
	q.mu.Unlock()
}

// Flush delivers pending events in publish order. A Flush issued while
// another one is running returns at once; the running one delivers its
// events too, including those queued by handlers.
func (q *Queue) Flush() {
	q.mu.Lock()
	if q.flushing {
		q.mu.Unlock()
		return
	}
	q.flushing = true
	for len(q.pending) > 0 {
		ev := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		q.bus.Publish(ev.Topic, ev.Payload)
		q.mu.Lock()
	}
	q.pending = nil
	q.flushing = false
	q.mu.Unlock()
}

// Len reports how many events wait for Flush.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Recorder collects every published event. Useful in tests and for batching
// redraws.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Topics returns the topics seen so far, in publish order.
func (r *Recorder) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic
	}
	return out
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
