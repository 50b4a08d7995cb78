package internal

import "encoding/binary"

func BytesToUInt64LittleEndian(b [8]byte) uint64 {
	return binary.LittleEndian.Uint64(b[:])
}

func UInt64ToBytesLittleEndian(i uint64) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], i)
	return b
}

// LEWriter appends little-endian fields to a byte slice.
type LEWriter struct {
	Buf []byte
}

func (w *LEWriter) U8(v uint8) { w.Buf = append(w.Buf, v) }

func (w *LEWriter) U32(v uint32) { w.Buf = binary.LittleEndian.AppendUint32(w.Buf, v) }

func (w *LEWriter) U64(v uint64) { w.Buf = binary.LittleEndian.AppendUint64(w.Buf, v) }

func (w *LEWriter) Bytes(b []byte) { w.Buf = append(w.Buf, b...) }

// LEReader consumes little-endian fields from a byte slice. Reading past
// the end sets Short and yields zero values, so callers check it once after
// a group of reads.
type LEReader struct {
	Buf   []byte
	Short bool
}

func (r *LEReader) take(n int) []byte {
	if r.Short || len(r.Buf) < n {
		r.Short = true
		return nil
	}
	b := r.Buf[:n]
	r.Buf = r.Buf[n:]
	return b
}

func (r *LEReader) U8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *LEReader) U32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *LEReader) U64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *LEReader) Bytes(n int) []byte {
	return r.take(n)
}

func (r *LEReader) Len() int {
	return len(r.Buf)
}
