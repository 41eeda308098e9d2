package output

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/squadracorsepolito/candecode/dbc"
	"github.com/squadracorsepolito/candecode/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testFrame = dbc.NewFrame(100, "EngineData", 8, "ECU")
	testTime  = time.Unix(12, 345000000)
)

func signalEvent(name string, raw uint64, value float64) *dispatch.Event {
	return &dispatch.Event{
		Frame:     testFrame,
		Signal:    &dbc.Signal{Name: name, Unit: "rpm"},
		CANID:     testFrame.ID,
		RawValue:  raw,
		Value:     value,
		Timestamp: testTime,
		Device:    "can0",
	}
}

func Test_FormatLine(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("(0012.345000) can0 RPM: 0x10 4.000000", FormatLine(signalEvent("RPM", 0x10, 4)))

	ev := signalEvent("Gear", 1, 1)
	ev.Label = "First"
	ev.HasLabel = true
	assert.Equal(`(0012.345000) can0 Gear: 0x01 "First"`, FormatLine(ev))

	unmatched := &dispatch.Event{CANID: 0x123, RawValue: 0x123, Timestamp: testTime, Device: "can0"}
	assert.Equal("(0012.345000) can0: Frame 0x123 not found", FormatLine(unmatched))
}

func Test_Printer_text(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinter(buf, FormatText)

	p.Observe(context.Background(), signalEvent("RPM", 0x10, 4))
	p.Observe(context.Background(), signalEvent("RPM", 0x20, 8))
	require.NoError(t, p.Close(context.Background()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"(0012.345000) can0 RPM: 0x10 4.000000",
		"(0012.345000) can0 RPM: 0x20 8.000000",
	}, lines)
}

func Test_Printer_lineBuffered(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinter(buf, FormatText)
	p.SetLineBuffered(true)

	p.Observe(context.Background(), signalEvent("RPM", 0x10, 4))
	assert.Equal(t, "(0012.345000) can0 RPM: 0x10 4.000000\n", buf.String())
}

func Test_Printer_json(t *testing.T) {
	assert := assert.New(t)

	buf := &bytes.Buffer{}
	p := NewPrinter(buf, FormatJSON)

	ev := signalEvent("Gear", 1, 1)
	ev.Label = "First"
	ev.HasLabel = true

	p.Observe(context.Background(), ev)
	require.NoError(t, p.Close(context.Background()))

	rec, err := UnmarshalRecord(bytes.TrimSpace(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal("EngineData", rec.Frame)
	assert.Equal("Gear", rec.Signal)
	assert.Equal(uint32(100), rec.CANID)
	assert.Equal(uint64(1), rec.RawValue)
	assert.Equal("First", rec.Label)
	assert.Equal("rpm", rec.Unit)
	assert.False(rec.Unmatched)
	assert.True(testTime.Equal(rec.Timestamp))
}

func Test_ParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	assert.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	assert.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
