package can

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_NewFrame(t *testing.T) {
	assert := assert.New(t)

	f, err := NewFrame(0x10, []byte{1, 2, 3}, time.Time{}, "can0")
	assert.NoError(err)
	assert.Equal(uint8(3), f.Len)
	assert.Equal([8]byte{1, 2, 3}, f.Data)
	assert.Equal([]byte{1, 2, 3}, f.Payload())

	_, err = NewFrame(0x10, make([]byte, 9), time.Time{}, "can0")
	assert.ErrorIs(err, ErrInvalidLen)
}

func Test_SplitKernelID(t *testing.T) {
	assert := assert.New(t)

	id, remote := SplitKernelID(0x123)
	assert.Equal(uint32(0x123), id)
	assert.False(remote)

	id, remote = SplitKernelID(FlagRTR | 0x7ff)
	assert.Equal(uint32(0x7ff), id)
	assert.True(remote)

	id, remote = SplitKernelID(FlagEFF | FlagERR | 0x18fef100)
	assert.Equal(FlagEFF|0x18fef100, id)
	assert.False(remote)

	f := &Frame{ID: id}
	assert.True(f.IsExtended())
	assert.Equal(uint32(0x18fef100), f.RawID())
}

func Test_Frame_KernelID(t *testing.T) {
	assert := assert.New(t)

	f := &Frame{ID: 0x64}
	assert.Equal(uint32(0x64), f.KernelID())

	f.Remote = true
	assert.Equal(FlagRTR|0x64, f.KernelID())

	id, remote := SplitKernelID(f.KernelID())
	assert.Equal(uint32(0x64), id)
	assert.True(remote)
}
