package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUInt64Conversion(t *testing.T) {
	original := uint64(0x0102030405060708)
	bytes := UInt64ToBytesLittleEndian(original)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, bytes[:])

	converted := BytesToUInt64LittleEndian(bytes)
	assert.Equal(t, original, converted)
}

func TestLEWriterReader(t *testing.T) {
	var w LEWriter
	w.U8(0xAB)
	w.U32(0x01020304)
	w.U64(0x1122334455667788)
	w.Bytes([]byte("tail"))
	assert.Equal(t, []byte{0xAB, 0x04, 0x03, 0x02, 0x01}, w.Buf[:5])

	r := LEReader{Buf: w.Buf}
	assert.Equal(t, uint8(0xAB), r.U8())
	assert.Equal(t, uint32(0x01020304), r.U32())
	assert.Equal(t, uint64(0x1122334455667788), r.U64())
	assert.Equal(t, []byte("tail"), r.Bytes(4))
	assert.False(t, r.Short)
	assert.Equal(t, 0, r.Len())

	t.Run("short read", func(t *testing.T) {
		r := LEReader{Buf: []byte{1, 2, 3}}
		assert.Equal(t, uint32(0), r.U32())
		assert.True(t, r.Short)
		assert.Equal(t, uint8(0), r.U8(), "reads after a short read stay zero")
	})
}
