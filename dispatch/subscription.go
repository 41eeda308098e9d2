package dispatch

import (
	"github.com/squadracorsepolito/candecode/dbc"
)

// Subscription binds an observer to a frame, or to a single signal of it.
type Subscription struct {
	frame  *dbc.Frame
	signal *dbc.Signal

	observer Observer

	onChange bool
	// previous raw values, a missing entry reads as 0
	last map[*dbc.Signal]uint64
}

func newSubscription(frame *dbc.Frame, signal *dbc.Signal, obs Observer, onChange bool) *Subscription {
	return &Subscription{
		frame:  frame,
		signal: signal,

		observer: obs,

		onChange: onChange,
		last:     make(map[*dbc.Signal]uint64),
	}
}

func (s *Subscription) Frame() *dbc.Frame {
	return s.frame
}

// Signal returns the subscribed signal, nil when the whole frame is subscribed.
func (s *Subscription) Signal() *dbc.Signal {
	return s.signal
}

func (s *Subscription) OnChange() bool {
	return s.onChange
}

func (s *Subscription) String() string {
	if s.signal == nil {
		return s.frame.Name
	}
	return s.frame.Name + "." + s.signal.Name
}

// shouldFire applies the change filter and records raw as the last value.
//
// The cache starts at zero, so with the filter enabled a first value of 0
// never fires.
func (s *Subscription) shouldFire(sig *dbc.Signal, raw uint64) bool {
	if !s.onChange {
		return true
	}

	if s.last[sig] == raw {
		return false
	}

	s.last[sig] = raw

	return true
}
