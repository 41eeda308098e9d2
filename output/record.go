// Package output renders decoded events for humans and machines.
package output

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/squadracorsepolito/candecode/dispatch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is the serialized form of a [dispatch.Event].
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device"`
	CANID     uint32    `json:"can_id"`
	Frame     string    `json:"frame,omitempty"`
	Signal    string    `json:"signal,omitempty"`
	RawValue  uint64    `json:"raw_value"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Label     string    `json:"label,omitempty"`
	Unmatched bool      `json:"unmatched,omitempty"`
}

func NewRecord(ev *dispatch.Event) *Record {
	rec := &Record{
		Timestamp: ev.Timestamp,
		Device:    ev.Device,
		CANID:     ev.CANID,
		Frame:     ev.FrameName(),
		Signal:    ev.SignalName(),
		RawValue:  ev.RawValue,
		Value:     ev.Value,
		Unit:      ev.Unit(),
		Unmatched: ev.Unmatched(),
	}

	if ev.HasLabel {
		rec.Label = ev.Label
	}

	return rec
}

// MarshalEvent encodes an event as a JSON object.
func MarshalEvent(ev *dispatch.Event) ([]byte, error) {
	return json.Marshal(NewRecord(ev))
}

// UnmarshalRecord decodes a JSON object produced by [MarshalEvent].
func UnmarshalRecord(data []byte) (*Record, error) {
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
