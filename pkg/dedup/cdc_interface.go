package dedup

import (
	"io"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
)

var logger = internal.GetLogger("dedup")

// Chunk is a piece of an ingested stream.
type Chunk struct {
	FP      Digest
	Offset  uint64
	Len     uint64
	Data    []byte
	Deduped bool
}

// Chunker is an interface that returns the next chunk from a stream. It
// returns io.EOF after the last chunk. Unlike the underlying chunkers, the
// returned Data is owned by the caller.
type Chunker interface {
	Next() (Chunk, error)
}

// CDC is an interface for creating chunkers from a reader.
type CDC interface {
	NewChunker(r io.Reader) (Chunker, error)
	// Params are the parameters recorded in manifests built with this CDC.
	Params() Chunking
}
