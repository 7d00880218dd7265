package network

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	frame, err := Encode(MsgTypeLines, []byte(`{"lines":2}`))
	require.NoError(t, err)
	assert.Len(t, frame, 4+11)

	p, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(MsgTypeLines), p.MsgID)
	assert.Equal(t, uint16(11), p.Length)
	assert.Equal(t, `{"lines":2}`, string(p.Data))
}

func TestDecode_Short(t *testing.T) {
	_, err := Decode([]byte{0, 1})
	assert.ErrorIs(t, err, io.ErrShortBuffer)

	// Header claims 10 bytes, only 2 follow.
	_, err = Decode([]byte{0, 1, 0, 10, 'a', 'b'})
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestEncode_TooLarge(t *testing.T) {
	_, err := Encode(MsgTypeBoard, make([]byte, 0x10000))
	assert.ErrorIs(t, err, ErrPacketTooLarge)
}
