// Package codec extracts signal values from a CAN payload.
//
// Start bits handled here are always in the normalized numbering produced by
// the dbc parser: the position of the signal's least significant bit, counted
// as byte*8 + bit with bit 0 being the least significant bit of byte 0.
// Intel signals read the payload as a little endian 64 bit field, Motorola
// signals read it as a big endian one.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// PayloadSize is the number of bytes of a classic CAN payload.
	PayloadSize = 8
	// PayloadBits is the number of bits of a classic CAN payload.
	PayloadBits = PayloadSize * 8
)

var (
	ErrInvalidLength = errors.New("codec: invalid signal length")
	ErrOutOfRange    = errors.New("codec: signal exceeds payload")
)

// Validate checks that a signal of the given layout fits in the payload.
func Validate(startBit, length int, isBigEndian bool) error {
	if length < 1 || length > PayloadBits {
		return fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	if startBit < 0 || startBit >= PayloadBits {
		return fmt.Errorf("%w: start bit %d", ErrOutOfRange, startBit)
	}

	shift := startBit
	if isBigEndian {
		shift = bigEndianIndex(startBit)
	}

	if shift+length > PayloadBits {
		return fmt.Errorf("%w: start bit %d, length %d", ErrOutOfRange, startBit, length)
	}

	return nil
}

// ExtractRaw returns the raw bit pattern of the signal.
func ExtractRaw(payload [PayloadSize]byte, startBit, length int, isBigEndian bool) (uint64, error) {
	if err := Validate(startBit, length, isBigEndian); err != nil {
		return 0, err
	}

	var field uint64
	var shift int
	if isBigEndian {
		field = binary.BigEndian.Uint64(payload[:])
		shift = bigEndianIndex(startBit)
	} else {
		field = binary.LittleEndian.Uint64(payload[:])
		shift = startBit
	}

	return (field >> shift) & mask(length), nil
}

// SignExtend interprets the low length bits of raw as a two's complement number.
func SignExtend(raw uint64, length int) (int64, error) {
	if length < 1 || length > PayloadBits {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}

	if length == PayloadBits {
		return int64(raw), nil
	}

	raw &= mask(length)
	if raw&(1<<(length-1)) != 0 {
		return int64(raw | ^mask(length)), nil
	}

	return int64(raw), nil
}

// ToPhysical scales a raw value: physical = raw * factor + offset.
// Min and max of the signal are never applied.
func ToPhysical(raw uint64, length int, factor, offset float64, isSigned bool) (float64, error) {
	if !isSigned {
		if length < 1 || length > PayloadBits {
			return 0, fmt.Errorf("%w: %d", ErrInvalidLength, length)
		}
		return float64(raw)*factor + offset, nil
	}

	val, err := SignExtend(raw, length)
	if err != nil {
		return 0, err
	}

	return float64(val)*factor + offset, nil
}

// MotorolaStartBit converts the start bit of a Motorola signal as written in
// a DBC file (position of the most significant bit) into the normalized
// position of its least significant bit.
func MotorolaStartBit(startBit, length int) int {
	pos := 7 - (startBit % 8) + (length - 1)
	if pos < 8 {
		return startBit - length + 1
	}

	cpos := 7 - (pos % 8)
	bytes := pos / 8

	return cpos + bytes*8 + (startBit/8)*8
}

// DBCMotorolaStartBit is the inverse of [MotorolaStartBit].
func DBCMotorolaStartBit(startBit, length int) int {
	return bigEndianIndex(bigEndianIndex(startBit) + length - 1)
}

// bigEndianIndex maps byte*8+bit to the bit index inside the payload read
// as a big endian integer. The mapping is its own inverse.
func bigEndianIndex(pos int) int {
	return (7-pos/8)*8 + pos%8
}

func mask(length int) uint64 {
	if length >= PayloadBits {
		return ^uint64(0)
	}
	return 1<<length - 1
}
