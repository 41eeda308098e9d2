// Package dbc contains the in-memory model of a DBC database
// together with its parser and writer.
package dbc

import (
	"errors"
	"fmt"
	"iter"
	"slices"
)

var (
	ErrFrameNotFound     = errors.New("dbc: frame not found")
	ErrSignalNotFound    = errors.New("dbc: signal not found")
	ErrDuplicateFrame    = errors.New("dbc: duplicate frame id")
	ErrDuplicateSignal   = errors.New("dbc: duplicate signal name")
	ErrDuplicateSelector = errors.New("dbc: frame already has a selector signal")
	ErrDuplicateValue    = errors.New("dbc: duplicate value table entry")
)

// Database holds the frames of a DBC description.
// It is built once and then only read.
type Database struct {
	frames []*Frame
	byID   map[uint32]*Frame
}

func NewDatabase() *Database {
	return &Database{
		byID: make(map[uint32]*Frame),
	}
}

// AddFrame inserts a frame. Frame ids must be unique.
func (db *Database) AddFrame(frame *Frame) error {
	if prev, ok := db.byID[frame.ID]; ok {
		return fmt.Errorf("%w: 0x%x used by %s and %s", ErrDuplicateFrame, frame.ID, prev.Name, frame.Name)
	}

	db.byID[frame.ID] = frame
	db.frames = append(db.frames, frame)

	return nil
}

// AddSignal inserts a signal into the frame with the given id.
func (db *Database) AddSignal(frameID uint32, sig *Signal) error {
	frame, ok := db.byID[frameID]
	if !ok {
		return fmt.Errorf("%w: 0x%x", ErrFrameNotFound, frameID)
	}

	if err := sig.Validate(); err != nil {
		return fmt.Errorf("signal %s: %w", sig.Name, err)
	}

	return frame.addSignal(sig)
}

// AddValue adds a value table entry to a signal.
func (db *Database) AddValue(frameID uint32, sigName string, raw int64, label string) error {
	frame, ok := db.byID[frameID]
	if !ok {
		return fmt.Errorf("%w: 0x%x", ErrFrameNotFound, frameID)
	}

	sig, ok := frame.Signal(sigName)
	if !ok {
		return fmt.Errorf("%w: %s in frame %s", ErrSignalNotFound, sigName, frame.Name)
	}

	if err := sig.addValue(raw, label); err != nil {
		return fmt.Errorf("signal %s: %w", sigName, err)
	}

	return nil
}

// Frames iterates over the frames in insertion order.
func (db *Database) Frames() iter.Seq[*Frame] {
	return slices.Values(db.frames)
}

func (db *Database) FrameCount() int {
	return len(db.frames)
}

// SignalCount returns the number of signals over all frames.
func (db *Database) SignalCount() int {
	count := 0
	for _, frame := range db.frames {
		count += frame.SignalCount()
	}
	return count
}

func (db *Database) FrameByID(id uint32) (*Frame, bool) {
	frame, ok := db.byID[id]
	return frame, ok
}

// FrameByName returns the frame with the given name.
// It scans all the frames, so it should not be used while decoding.
func (db *Database) FrameByName(name string) (*Frame, bool) {
	for _, frame := range db.frames {
		if frame.Name == name {
			return frame, true
		}
	}
	return nil, false
}

// FrameBySignalName returns the first frame, in insertion order,
// containing a signal with the given name.
func (db *Database) FrameBySignalName(sigName string) (*Frame, bool) {
	for _, frame := range db.frames {
		if _, ok := frame.Signal(sigName); ok {
			return frame, true
		}
	}
	return nil, false
}
