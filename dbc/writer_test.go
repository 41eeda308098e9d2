package dbc

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/squadracorsepolito/candecode/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Write_roundTrip(t *testing.T) {
	assert := assert.New(t)

	db, _ := parseString(t, testDBC)

	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, db))

	out := buf.String()
	assert.Contains(out, "BO_ 200 MuxFrame: 8 ECU")
	assert.Contains(out, " SG_ Selector M : 0|8@1+ (1,0) [0|255] \"\" DASH")
	assert.Contains(out, " SG_ Speed : 7|16@0+ (0.01,0) [0|655.35] \"km/h\" DASH")
	assert.Contains(out, "VAL_ 100 Gear 0 \"Neutral\" 1 \"First\" 2 \"Second\" ;")

	again, diags := parseString(t, out)
	assert.Empty(diags)
	assert.Equal(db.FrameCount(), again.FrameCount())
	assert.Equal(db.SignalCount(), again.SignalCount())

	rng := rand.New(rand.NewPCG(3, 4))
	payloads := make([][8]byte, 32)
	for i := range payloads {
		for j := range payloads[i] {
			payloads[i][j] = byte(rng.IntN(256))
		}
	}

	for frame := range db.Frames() {
		other, ok := again.FrameByID(frame.ID)
		require.True(t, ok)
		assert.Equal(frame.Name, other.Name)
		assert.Equal(frame.DLC, other.DLC)
		assert.Equal(frame.IsMultiplexed(), other.IsMultiplexed())

		for sig := range frame.Signals() {
			otherSig, ok := other.Signal(sig.Name)
			require.True(t, ok)

			assert.Equal(sig.StartBit, otherSig.StartBit, sig.Name)
			assert.Equal(sig.ByteOrder, otherSig.ByteOrder, sig.Name)
			assert.Equal(sig.MuxRole, otherSig.MuxRole, sig.Name)
			assert.Equal(sig.MuxID, otherSig.MuxID, sig.Name)
			assert.Equal(sig.Unit, otherSig.Unit, sig.Name)

			for _, payload := range payloads {
				raw, phys, err := sig.Decode(payload)
				require.NoError(t, err)
				otherRaw, otherPhys, err := otherSig.Decode(payload)
				require.NoError(t, err)

				assert.Equal(raw, otherRaw, sig.Name)
				assert.Equal(phys, otherPhys, sig.Name)

				label, hasLabel := sig.Label(raw)
				otherLabel, otherHasLabel := otherSig.Label(otherRaw)
				assert.Equal(hasLabel, otherHasLabel, sig.Name)
				assert.Equal(label, otherLabel, sig.Name)
			}
		}
	}
}

func Test_Write_motorolaLayouts(t *testing.T) {
	db := NewDatabase()
	require.NoError(t, db.AddFrame(NewFrame(1, "Layouts", 8, "")))

	for _, layout := range [][2]int{{7, 1}, {7, 8}, {3, 12}, {15, 24}, {39, 32}, {7, 64}} {
		sig := &Signal{
			Name:      fmt.Sprintf("S_%d_%d", layout[0], layout[1]),
			StartBit:  codec.MotorolaStartBit(layout[0], layout[1]),
			Length:    layout[1],
			ByteOrder: ByteOrderMotorola,
			Factor:    1,
		}
		require.NoError(t, db.AddSignal(1, sig))
	}

	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, db))

	again, diags := parseString(t, buf.String())
	require.Empty(t, diags)

	frame, _ := db.FrameByID(1)
	otherFrame, ok := again.FrameByID(1)
	require.True(t, ok)
	assert.Equal(t, noNode, otherFrame.Sender)

	for sig := range frame.Signals() {
		other, ok := otherFrame.Signal(sig.Name)
		require.True(t, ok)
		assert.Equal(t, sig.StartBit, other.StartBit, sig.Name)
	}
}

func Test_Write_unitVerbatim(t *testing.T) {
	db := NewDatabase()
	require.NoError(t, db.AddFrame(NewFrame(1, "Units", 8, "ECU")))
	require.NoError(t, db.AddSignal(1, &Signal{Name: "Slash", Length: 8, ByteOrder: ByteOrderIntel, Factor: 1, Unit: `m\s`}))
	require.NoError(t, db.AddSignal(1, &Signal{Name: "Degree", StartBit: 8, Length: 8, ByteOrder: ByteOrderIntel, Factor: 1, Unit: "°C"}))

	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, db))
	assert.Contains(t, buf.String(), `[0|0] "m\s" Vector__XXX`)

	again, diags := parseString(t, buf.String())
	require.Empty(t, diags)

	frame, ok := again.FrameByID(1)
	require.True(t, ok)

	slash, ok := frame.Signal("Slash")
	require.True(t, ok)
	assert.Equal(t, `m\s`, slash.Unit)

	degree, ok := frame.Signal("Degree")
	require.True(t, ok)
	assert.Equal(t, "°C", degree.Unit)
}
