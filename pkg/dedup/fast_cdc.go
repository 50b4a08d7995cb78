package dedup

import (
	"io"

	fastcdc "github.com/zhengshuai-xiao/git-fastcdc/pkg/cdc"
)

// FastCDC implements the CDC interface to create FastCDC chunkers.
// Normalization is taken literally, so 0 disables normalized chunking.
type FastCDC struct {
	MinChunkSize  int
	AvgChunkSize  int
	MaxChunkSize  int
	Normalization int
	Seed          uint64
}

// NewFastCDC builds a FastCDC from manifest parameters.
func NewFastCDC(c Chunking) *FastCDC {
	return &FastCDC{
		MinChunkSize:  int(c.MinSize),
		AvgChunkSize:  int(c.AvgSize),
		MaxChunkSize:  int(c.MaxSize),
		Normalization: int(c.Normalization),
	}
}

func (f *FastCDC) Options() fastcdc.Options {
	return fastcdc.Options{
		MinSize:              f.MinChunkSize,
		AverageSize:          f.AvgChunkSize,
		MaxSize:              f.MaxChunkSize,
		Normalization:        f.Normalization,
		DisableNormalization: f.Normalization == 0,
		Seed:                 f.Seed,
	}
}

// Validate reports bad parameters as ErrInvalidConfig without reading input.
func (f *FastCDC) Validate() error {
	return f.Options().Validate()
}

func (f *FastCDC) Params() Chunking {
	return Chunking{
		MinSize:       uint32(f.MinChunkSize),
		AvgSize:       uint32(f.AvgChunkSize),
		MaxSize:       uint32(f.MaxChunkSize),
		Normalization: uint8(f.Normalization),
	}
}

// NewChunker creates a new chunker that reads from r and produces variable-size chunks using FastCDC.
func (f *FastCDC) NewChunker(r io.Reader) (Chunker, error) {
	chunker, err := fastcdc.NewChunker(r, f.Options())
	if err != nil {
		return nil, err
	}
	return &fastCDCChunker{
		chunker: chunker,
	}, nil
}

// fastCDCChunker implements the Chunker interface for FastCDC.
type fastCDCChunker struct {
	chunker *fastcdc.Chunker
}

// Next returns the next content-defined chunk from the reader.
func (c *fastCDCChunker) Next() (Chunk, error) {
	fc, err := c.chunker.Next()
	if err != nil {
		return Chunk{}, err
	}

	// fc.Data points into the chunker's buffer
	dataCopy := make([]byte, fc.Length)
	copy(dataCopy, fc.Data)

	return Chunk{
		Offset: uint64(fc.Offset),
		Len:    uint64(fc.Length),
		Data:   dataCopy,
	}, nil
}
