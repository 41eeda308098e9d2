package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/squadracorsepolito/candecode/dbc"
	"github.com/squadracorsepolito/candecode/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func Test_Reader_handleMessage(t *testing.T) {
	assert := assert.New(t)

	ev := &dispatch.Event{
		Frame:     dbc.NewFrame(200, "MuxFrame", 8, "ECU"),
		Signal:    &dbc.Signal{Name: "DataA"},
		CANID:     200,
		RawValue:  0x1234,
		Value:     4660,
		Timestamp: time.Unix(10, 0),
		Device:    "vcan0",
	}

	msg, err := newMessage(ev)
	require.NoError(t, err)

	r := NewReader(NewDefaultReaderConfig())

	rec, ctx, err := r.handleMessage(context.Background(), msg)
	require.NoError(t, err)

	assert.NotNil(ctx)
	assert.Equal("MuxFrame", rec.Frame)
	assert.Equal("DataA", rec.Signal)
	assert.Equal(uint64(0x1234), rec.RawValue)
	assert.Equal("vcan0", rec.Device)
	assert.True(time.Unix(10, 0).Equal(rec.Timestamp))
}

func Test_Reader_handleMessage_invalid(t *testing.T) {
	r := NewReader(NewDefaultReaderConfig())

	_, ctx, err := r.handleMessage(context.Background(), &kafka.Message{Value: []byte("{")})
	assert.Error(t, err)
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())

	assert.NoError(t, r.Close())
}
