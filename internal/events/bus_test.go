package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeAndEmit(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(Join, func(ev Event) { got = append(got, ev) })

	bus.Emit(Event{Kind: Join, Player: "Steve"})
	bus.Emit(Event{Kind: Leave, Player: "Steve"}) // different kind, not delivered

	assert.Len(t, got, 1)
	assert.Equal(t, "Steve", got[0].Player)
}

func TestEmitPreservesOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(Data, func(ev Event) { got = append(got, ev.Line) })

	for _, line := range []string{"a", "b", "c"} {
		bus.Emit(Event{Kind: Data, Line: line})
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestCancelIsIdempotent(t *testing.T) {
	bus := NewBus()

	calls := 0
	cancel := bus.Subscribe(Ready, func(Event) { calls++ })

	bus.Emit(Event{Kind: Ready})
	cancel()
	cancel()
	bus.Emit(Event{Kind: Ready})

	assert.Equal(t, 1, calls)
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()

	a, b := 0, 0
	bus.Subscribe(Exit, func(Event) { a++ })
	bus.Subscribe(Exit, func(Event) { b++ })

	bus.Emit(Event{Kind: Exit, Code: 1})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
