package dedup

import (
	"errors"
	"fmt"
	"io"
)

// FixedCDC implements the CDC interface to create fixed-size chunkers. It
// is the baseline the content-defined chunker is compared against.
type FixedCDC struct {
	ChunkSize int
}

func (f *FixedCDC) Params() Chunking {
	size := uint32(f.ChunkSize)
	return Chunking{MinSize: size, AvgSize: size, MaxSize: size}
}

// NewChunker creates a new chunker that reads from r and produces fixed-size chunks.
func (f *FixedCDC) NewChunker(r io.Reader) (Chunker, error) {
	if f.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: fixed chunk size %d", ErrInvalidConfig, f.ChunkSize)
	}
	return &fixedChunker{
		r:         r,
		chunkSize: f.ChunkSize,
	}, nil
}

// fixedChunker implements the Chunker interface for fixed-size chunking.
type fixedChunker struct {
	r         io.Reader
	chunkSize int
	offset    uint64
}

// Next returns the next fixed-size chunk from the reader.
func (c *fixedChunker) Next() (Chunk, error) {
	buf := make([]byte, c.chunkSize)
	n, err := io.ReadFull(c.r, buf)

	switch {
	case err == io.EOF:
		return Chunk{}, io.EOF
	case err == nil, errors.Is(err, io.ErrUnexpectedEOF):
		chunk := Chunk{Offset: c.offset, Len: uint64(n), Data: buf[:n]}
		c.offset += uint64(n)
		return chunk, nil
	default:
		return Chunk{}, fmt.Errorf("%w: %w", ErrStreamRead, err)
	}
}
