// Package mux resolves which signals of a multiplexed frame are present
// in a given payload.
package mux

import (
	"errors"
	"fmt"
	"iter"

	"github.com/squadracorsepolito/candecode/codec"
	"github.com/squadracorsepolito/candecode/dbc"
)

// ErrNoSelector is returned for a frame marked as multiplexed
// that has no selector signal.
var ErrNoSelector = errors.New("mux: multiplexed frame without selector signal")

// Resolution is the outcome of resolving a frame instance.
type Resolution struct {
	frame *dbc.Frame

	selector    *dbc.Signal
	selectorRaw uint64
}

// Resolve decodes the selector of a multiplexed frame.
// Frames that are not multiplexed resolve to all their signals.
func Resolve(frame *dbc.Frame, payload [codec.PayloadSize]byte) (*Resolution, error) {
	res := &Resolution{frame: frame}

	if !frame.IsMultiplexed() {
		return res, nil
	}

	sel, ok := frame.Selector()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSelector, frame.Name)
	}

	raw, err := codec.ExtractRaw(payload, sel.StartBit, sel.Length, sel.IsBigEndian())
	if err != nil {
		return nil, fmt.Errorf("selector %s: %w", sel.Name, err)
	}

	res.selector = sel
	res.selectorRaw = raw

	return res, nil
}

// Selector returns the selector signal and its raw value.
// ok is false when the frame is not multiplexed.
func (r *Resolution) Selector() (sig *dbc.Signal, raw uint64, ok bool) {
	if r.selector == nil {
		return nil, 0, false
	}
	return r.selector, r.selectorRaw, true
}

// IsActive reports whether sig is present in the resolved frame instance.
func (r *Resolution) IsActive(sig *dbc.Signal) bool {
	if r.selector == nil {
		return true
	}
	return sig.IsActive(r.selectorRaw)
}

// ActiveSignals iterates over the active signals. The selector comes first,
// the others follow in declaration order.
func (r *Resolution) ActiveSignals() iter.Seq[*dbc.Signal] {
	return func(yield func(*dbc.Signal) bool) {
		if r.selector != nil {
			if !yield(r.selector) {
				return
			}
		}

		for sig := range r.frame.Signals() {
			if sig == r.selector || !r.IsActive(sig) {
				continue
			}

			if !yield(sig) {
				return
			}
		}
	}
}
