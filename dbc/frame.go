package dbc

import (
	"fmt"
	"iter"
	"slices"
)

// Frame describes a CAN message and the signals it carries.
type Frame struct {
	ID     uint32
	DLC    uint8
	Name   string
	Sender string

	multiplexed bool
	signals     []*Signal
}

func NewFrame(id uint32, name string, dlc uint8, sender string) *Frame {
	return &Frame{
		ID:     id,
		DLC:    dlc,
		Name:   name,
		Sender: sender,
	}
}

// IsMultiplexed reports whether the frame declares multiplexed signals,
// either a selector or signals gated by a selector value.
func (f *Frame) IsMultiplexed() bool {
	return f.multiplexed
}

// Signals iterates over the signals in declaration order.
func (f *Frame) Signals() iter.Seq[*Signal] {
	return slices.Values(f.signals)
}

func (f *Frame) SignalCount() int {
	return len(f.signals)
}

// Signal returns the signal with the given name.
func (f *Frame) Signal(name string) (*Signal, bool) {
	for _, sig := range f.signals {
		if sig.Name == name {
			return sig, true
		}
	}
	return nil, false
}

// Selector returns the multiplexer signal of the frame.
func (f *Frame) Selector() (*Signal, bool) {
	for _, sig := range f.signals {
		if sig.MuxRole == MuxRoleSelector {
			return sig, true
		}
	}
	return nil, false
}

func (f *Frame) addSignal(sig *Signal) error {
	if _, ok := f.Signal(sig.Name); ok {
		return fmt.Errorf("%w: %s in frame %s", ErrDuplicateSignal, sig.Name, f.Name)
	}

	if sig.MuxRole == MuxRoleSelector {
		if sel, ok := f.Selector(); ok {
			return fmt.Errorf("%w: %s already selects frame %s", ErrDuplicateSelector, sel.Name, f.Name)
		}
	}

	if sig.MuxRole != MuxRoleNone {
		f.multiplexed = true
	}

	f.signals = append(f.signals, sig)

	return nil
}
