package codec

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ExtractRaw_intelAcrossBytes(t *testing.T) {
	assert := assert.New(t)

	payload := [8]byte{0x12, 0x34}

	// upper nibble of byte 0 is the low nibble, lower nibble of byte 1 the high one
	raw, err := ExtractRaw(payload, 4, 8, false)
	assert.NoError(err)
	assert.Equal(uint64(0x41), raw)

	raw, err = ExtractRaw(payload, 0, 16, false)
	assert.NoError(err)
	assert.Equal(uint64(0x3412), raw)

	raw, err = ExtractRaw(payload, 9, 3, false)
	assert.NoError(err)
	assert.Equal(uint64(0b010), raw)
}

func Test_ExtractRaw_motorola(t *testing.T) {
	assert := assert.New(t)

	payload := [8]byte{0x12, 0x34}

	// 16 bit signal, MSB at bit 7 of byte 0
	start := MotorolaStartBit(7, 16)
	assert.Equal(8, start)

	raw, err := ExtractRaw(payload, start, 16, true)
	assert.NoError(err)
	assert.Equal(uint64(0x1234), raw)

	// 12 bit signal, MSB at bit 3 of byte 0
	start = MotorolaStartBit(3, 12)
	raw, err = ExtractRaw(payload, start, 12, true)
	assert.NoError(err)
	assert.Equal(uint64(0x234), raw)

	// a single byte signal reads the same for both orders
	rawBE, err := ExtractRaw(payload, MotorolaStartBit(15, 8), 8, true)
	assert.NoError(err)
	rawLE, err := ExtractRaw(payload, 8, 8, false)
	assert.NoError(err)
	assert.Equal(rawLE, rawBE)
}

func Test_ExtractRaw_fullPayload(t *testing.T) {
	assert := assert.New(t)

	payload := [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	raw, err := ExtractRaw(payload, 0, 64, false)
	assert.NoError(err)
	assert.Equal(^uint64(0), raw)

	phys, err := ToPhysical(raw, 64, 1, 0, true)
	assert.NoError(err)
	assert.Equal(-1.0, phys)

	raw, err = ExtractRaw(payload, MotorolaStartBit(7, 64), 64, true)
	assert.NoError(err)
	assert.Equal(^uint64(0), raw)
}

func Test_ExtractRaw_invalid(t *testing.T) {
	var payload [8]byte

	_, err := ExtractRaw(payload, 0, 0, false)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = ExtractRaw(payload, 0, 65, false)
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, err = ExtractRaw(payload, 60, 8, false)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ExtractRaw(payload, 64, 1, false)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// LSB in byte 0 leaves no room for more bits in big endian order
	_, err = ExtractRaw(payload, 0, 9, true)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func Test_SignExtend(t *testing.T) {
	assert := assert.New(t)

	val, err := SignExtend(0b1111, 4)
	assert.NoError(err)
	assert.Equal(int64(-1), val)

	val, err = SignExtend(0b0111, 4)
	assert.NoError(err)
	assert.Equal(int64(7), val)

	val, err = SignExtend(0x80, 8)
	assert.NoError(err)
	assert.Equal(int64(-128), val)

	val, err = SignExtend(1<<63, 64)
	assert.NoError(err)
	assert.Equal(int64(-1<<63), val)

	_, err = SignExtend(1, 0)
	assert.ErrorIs(err, ErrInvalidLength)
}

func Test_ToPhysical(t *testing.T) {
	tests := []struct {
		name   string
		raw    uint64
		length int
		factor float64
		offset float64
		signed bool
		want   float64
	}{
		{"signed all ones", 0b1111, 4, 0.5, 10, true, 9.5},
		{"unsigned all ones", 0b1111, 4, 0.5, 10, false, 17.5},
		{"signed positive", 0b0011, 4, 2, -1, true, 5},
		{"no clamping", 255, 8, 1, 0, false, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToPhysical(tt.raw, tt.length, tt.factor, tt.offset, tt.signed)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := ToPhysical(0, 0, 1, 0, false)
	assert.ErrorIs(t, err, ErrInvalidLength)
	_, err = ToPhysical(0, 0, 1, 0, true)
	assert.ErrorIs(t, err, ErrInvalidLength)
}

// motorolaWalk reads a Motorola signal bit by bit starting from its most
// significant bit as declared in a DBC file.
func motorolaWalk(payload [8]byte, startBit, length int) (uint64, bool) {
	var raw uint64

	byteIdx := startBit / 8
	bitIdx := startBit % 8
	for range length {
		if byteIdx > 7 {
			return 0, false
		}

		raw = raw<<1 | uint64((payload[byteIdx]>>bitIdx)&1)

		bitIdx--
		if bitIdx < 0 {
			bitIdx = 7
			byteIdx++
		}
	}

	return raw, true
}

func Test_MotorolaStartBit_matchesBitWalk(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for range 16 {
		var payload [8]byte
		for i := range payload {
			payload[i] = byte(rng.IntN(256))
		}

		for startBit := range 64 {
			for length := 1; length <= 64; length++ {
				want, fits := motorolaWalk(payload, startBit, length)

				normStart := MotorolaStartBit(startBit, length)
				got, err := ExtractRaw(payload, normStart, length, true)

				if !fits {
					assert.Error(t, err, "start %d length %d", startBit, length)
					continue
				}

				require.NoError(t, err, "start %d length %d", startBit, length)
				require.Equal(t, want, got, "start %d length %d", startBit, length)

				assert.Equal(t, startBit, DBCMotorolaStartBit(normStart, length))
			}
		}
	}
}

func Benchmark_ExtractRaw(b *testing.B) {
	b.ReportAllocs()

	payload := [8]byte{0x1, 0x2, 0x3, 0x4, 0x5, 0x6, 0x7, 0x8}

	for b.Loop() {
		if _, err := ExtractRaw(payload, 12, 20, false); err != nil {
			b.Fatal(err)
		}
	}
}
