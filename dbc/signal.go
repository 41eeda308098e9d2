package dbc

import "github.com/squadracorsepolito/candecode/codec"

// ByteOrder is the bit numbering convention of a signal.
type ByteOrder int

const (
	// ByteOrderMotorola is declared with the digit 0 (big endian).
	ByteOrderMotorola ByteOrder = iota
	// ByteOrderIntel is declared with the digit 1 (little endian).
	ByteOrderIntel
)

func (bo ByteOrder) String() string {
	switch bo {
	case ByteOrderMotorola:
		return "motorola"
	case ByteOrderIntel:
		return "intel"
	default:
		return "unknown"
	}
}

// MuxRole is the multiplexing role of a signal inside its frame.
type MuxRole int

const (
	// MuxRoleNone marks a signal that is always present.
	MuxRoleNone MuxRole = iota
	// MuxRoleSelector marks the multiplexer (the "M" token).
	MuxRoleSelector
	// MuxRoleData marks a signal present only for a given selector value (the "m<id>" token).
	MuxRoleData
)

func (mr MuxRole) String() string {
	switch mr {
	case MuxRoleNone:
		return "none"
	case MuxRoleSelector:
		return "selector"
	case MuxRoleData:
		return "data"
	default:
		return "unknown"
	}
}

// Signal describes a bit field of a frame payload.
//
// StartBit is normalized: it is the position of the least significant bit
// in byte*8+bit numbering, whatever the byte order.
type Signal struct {
	Name      string
	StartBit  int
	Length    int
	ByteOrder ByteOrder
	Signed    bool
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Unit      string
	Receivers []string
	MuxRole   MuxRole
	MuxID     uint64

	values *ValueTable
}

func (s *Signal) IsBigEndian() bool {
	return s.ByteOrder == ByteOrderMotorola
}

// DBCStartBit returns the start bit as it is written in a DBC file.
func (s *Signal) DBCStartBit() int {
	if s.IsBigEndian() {
		return codec.DBCMotorolaStartBit(s.StartBit, s.Length)
	}
	return s.StartBit
}

// Validate checks the layout of the signal against the payload size.
func (s *Signal) Validate() error {
	return codec.Validate(s.StartBit, s.Length, s.IsBigEndian())
}

// Decode extracts the raw value of the signal from the payload
// and converts it into its physical value.
func (s *Signal) Decode(payload [codec.PayloadSize]byte) (uint64, float64, error) {
	raw, err := codec.ExtractRaw(payload, s.StartBit, s.Length, s.IsBigEndian())
	if err != nil {
		return 0, 0, err
	}

	phys, err := codec.ToPhysical(raw, s.Length, s.Factor, s.Offset, s.Signed)
	if err != nil {
		return 0, 0, err
	}

	return raw, phys, nil
}

// ValueTable returns the value table of the signal, nil if it has none.
func (s *Signal) ValueTable() *ValueTable {
	return s.values
}

// Label returns the value table label for a raw value.
// Signed signals are looked up by their sign extended value.
func (s *Signal) Label(raw uint64) (string, bool) {
	if s.values == nil {
		return "", false
	}

	key := int64(raw)
	if s.Signed {
		val, err := codec.SignExtend(raw, s.Length)
		if err != nil {
			return "", false
		}
		key = val
	}

	return s.values.Lookup(key)
}

// IsActive reports whether the signal is present in a frame instance
// whose selector carries the given raw value.
func (s *Signal) IsActive(selectorRaw uint64) bool {
	switch s.MuxRole {
	case MuxRoleNone, MuxRoleSelector:
		return true
	case MuxRoleData:
		return s.MuxID == selectorRaw
	default:
		return false
	}
}

func (s *Signal) addValue(raw int64, label string) error {
	if s.values == nil {
		s.values = newValueTable()
	}
	return s.values.add(raw, label)
}
