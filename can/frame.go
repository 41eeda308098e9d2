// Package can defines the raw CAN frame record consumed by the decoder.
package can

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MaxDataLen is the payload size of a classic CAN frame.
	MaxDataLen = 8

	// FlagEFF marks a 29 bit identifier, as in the kernel can_id.
	FlagEFF uint32 = 0x80000000
	// FlagRTR marks a remote transmission request.
	FlagRTR uint32 = 0x40000000
	// FlagERR marks an error frame.
	FlagERR uint32 = 0x20000000

	MaskSFF uint32 = 0x000007FF
	MaskEFF uint32 = 0x1FFFFFFF
)

var ErrInvalidLen = errors.New("can: invalid data length")

// Frame is a raw CAN frame as seen on the bus.
// The ID keeps the EFF flag bit, which is also how DBC files
// store extended identifiers, so it can be matched directly.
type Frame struct {
	ID        uint32
	Len       uint8
	Data      [MaxDataLen]byte
	Remote    bool
	Timestamp time.Time
	Device    string
}

// SplitKernelID converts a kernel can_id into a frame id
// and reports whether the RTR flag was set.
func SplitKernelID(canID uint32) (uint32, bool) {
	remote := canID&FlagRTR != 0

	if canID&FlagEFF != 0 {
		return FlagEFF | canID&MaskEFF, remote
	}

	return canID & MaskSFF, remote
}

// NewFrame builds a frame copying at most 8 bytes of data.
func NewFrame(id uint32, data []byte, timestamp time.Time, device string) (*Frame, error) {
	if len(data) > MaxDataLen {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLen, len(data))
	}

	f := &Frame{
		ID:        id,
		Len:       uint8(len(data)),
		Timestamp: timestamp,
		Device:    device,
	}
	copy(f.Data[:], data)

	return f, nil
}

func (f *Frame) IsExtended() bool {
	return f.ID&FlagEFF != 0
}

// RawID returns the identifier without flags.
func (f *Frame) RawID() uint32 {
	if f.IsExtended() {
		return f.ID & MaskEFF
	}
	return f.ID & MaskSFF
}

// KernelID returns the identifier with the RTR flag restored,
// as the kernel reports it in can_id.
func (f *Frame) KernelID() uint32 {
	if f.Remote {
		return f.ID | FlagRTR
	}
	return f.ID
}

// Payload returns the valid bytes of the frame.
func (f *Frame) Payload() []byte {
	return f.Data[:f.Len]
}
