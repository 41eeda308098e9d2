package dispatch

import (
	"context"
	"time"

	"github.com/squadracorsepolito/candecode/dbc"
)

// Event is a decoded signal, or a frame that matched nothing in the database.
type Event struct {
	// Frame and Signal are nil when the frame is unmatched.
	Frame  *dbc.Frame
	Signal *dbc.Signal

	CANID uint32

	// RawValue holds the CAN id for an unmatched frame.
	RawValue uint64
	Label    string
	HasLabel bool
	Value    float64

	Timestamp time.Time
	Device    string
}

// Unmatched reports whether the event signals a frame not found in the database.
func (e *Event) Unmatched() bool {
	return e.Signal == nil
}

func (e *Event) FrameName() string {
	if e.Frame == nil {
		return ""
	}
	return e.Frame.Name
}

func (e *Event) SignalName() string {
	if e.Signal == nil {
		return ""
	}
	return e.Signal.Name
}

func (e *Event) Unit() string {
	if e.Signal == nil {
		return ""
	}
	return e.Signal.Unit
}

// Observer receives the events produced by a [Dispatcher].
// Observe is called synchronously from [Dispatcher.Process].
type Observer interface {
	Observe(ctx context.Context, ev *Event)
}

// ObserverFunc adapts a function to the [Observer] interface.
type ObserverFunc func(ctx context.Context, ev *Event)

func (f ObserverFunc) Observe(ctx context.Context, ev *Event) {
	f(ctx, ev)
}

// Fanout forwards every event to all of its observers in order.
type Fanout []Observer

func (fo Fanout) Observe(ctx context.Context, ev *Event) {
	for _, obs := range fo {
		obs.Observe(ctx, ev)
	}
}
