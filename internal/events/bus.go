// Package events provides the observer registry used to fan console
// activity out to subscribers. Delivery is synchronous: for a given
// server, the events derived from one output chunk are fully delivered
// before the next chunk is processed.
package events

import "sync"

// Kind names a server event stream.
type Kind string

const (
	Data         Kind = "data"
	Exit         Kind = "exit"
	Ready        Kind = "ready"
	Join         Kind = "join"
	Leave        Kind = "leave"
	EulaRequired Kind = "eula-required"
	Error        Kind = "error"
)

// Event carries one occurrence. Line is set for data events, Player for
// join/leave, Code for exit, Err for error.
type Event struct {
	Kind   Kind
	Line   string
	Player string
	Code   int
	Err    error
}

// Handler receives events for one subscription.
type Handler func(Event)

// Bus is a per-server observer registry. The zero value is not usable;
// call NewBus.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[Kind]map[int]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Kind]map[int]Handler)}
}

// Subscribe registers fn for events of the given kind and returns a
// cancel function. Cancelling twice is harmless.
func (b *Bus) Subscribe(kind Kind, fn Handler) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]Handler)
	}
	b.subs[kind][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[kind], id)
	}
}

// Emit delivers ev to every subscriber of its kind, synchronously, on
// the caller's goroutine. Handlers registered during delivery are not
// invoked for the current event.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[ev.Kind]))
	for _, fn := range b.subs[ev.Kind] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
