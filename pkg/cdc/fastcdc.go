// Package fastcdc implements FastCDC content-defined chunking with
// normalized chunking, as described in "The Design of Fast Content-Defined
// Chunking for Data Deduplication Based Storage Systems" (Xia et al., 2020).
//
// Boundaries depend only on the bytes near them, so an insertion early in a
// stream only moves the boundaries around the edit and every later chunk is
// found again.
package fastcdc

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
)

var logger = internal.GetLogger("fastcdc")

var (
	ErrInvalidConfig = errors.New("invalid chunker config")
	ErrStreamRead    = errors.New("stream read failed")
)

const (
	MinimumMinSize = WindowSize
	MaximumMaxSize = 1 << 30

	DefaultNormalization = 2
	MaxNormalization     = 3

	minMaskBits = 5
	maxMaskBits = len(masks) - 1
)

// Options configures a Chunker. MinSize, AverageSize and MaxSize are
// required; the rest have defaults.
type Options struct {
	MinSize     int
	AverageSize int
	MaxSize     int

	// Normalization is the NC level, 1..3. Zero selects DefaultNormalization
	// unless DisableNormalization is set.
	Normalization        int
	DisableNormalization bool

	// Seed XORs the gear table. Zero keeps the reference table.
	Seed uint64

	// BufSize is the read buffer, default 2*MaxSize. It must exceed MaxSize.
	BufSize int
}

// Level returns the effective normalization level.
func (o Options) Level() int {
	if o.DisableNormalization {
		return 0
	}
	if o.Normalization == 0 {
		return DefaultNormalization
	}
	return o.Normalization
}

// MaskBits returns round(log2(AverageSize)), the index of the mask used at
// the average size.
func (o Options) MaskBits() int {
	return int(math.Round(math.Log2(float64(o.AverageSize))))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate reports the first violated constraint, wrapped in ErrInvalidConfig.
func (o Options) Validate() error {
	if o.AverageSize <= 0 {
		return invalid("AverageSize is required")
	}
	if o.MinSize < MinimumMinSize {
		return invalid("MinSize %d is below %d", o.MinSize, MinimumMinSize)
	}
	if o.MaxSize > MaximumMaxSize {
		return invalid("MaxSize %d exceeds %d", o.MaxSize, MaximumMaxSize)
	}
	if o.MinSize >= o.MaxSize {
		return invalid("MinSize %d must be less than MaxSize %d", o.MinSize, o.MaxSize)
	}
	if o.AverageSize <= o.MinSize || o.AverageSize >= o.MaxSize {
		return invalid("AverageSize %d must lie strictly between MinSize %d and MaxSize %d",
			o.AverageSize, o.MinSize, o.MaxSize)
	}
	if !o.DisableNormalization && (o.Normalization < 0 || o.Normalization > MaxNormalization) {
		return invalid("Normalization %d must be within 0..%d", o.Normalization, MaxNormalization)
	}
	if o.BufSize != 0 && o.BufSize <= o.MaxSize {
		return invalid("BufSize %d must be greater than MaxSize %d", o.BufSize, o.MaxSize)
	}
	bits, n := o.MaskBits(), o.Level()
	if bits+n > maxMaskBits || bits-n < minMaskBits {
		return invalid("AverageSize %d with normalization %d is outside the mask table", o.AverageSize, n)
	}
	return nil
}

// Chunk is one content-defined piece of the stream.
type Chunk struct {
	Offset      int    // position of the first byte in the stream
	Length      int    // number of bytes
	Data        []byte // valid until the next call to Next
	Fingerprint uint64 // gear hash at the boundary, 0 for short tails
}

// Chunker splits a stream into chunks. It is not safe for concurrent use;
// chunk several streams with several Chunkers.
type Chunker struct {
	opts      Options
	minSize   int
	avgSize   int
	maxSize   int
	maskSmall uint64
	maskLarge uint64

	hasher *GearHasher

	reader    io.Reader
	buf       []byte
	bufCursor int
	bufEnd    int
	streamPos int
	readerEOF bool
	err       error
}

// NewChunker validates opts and returns a Chunker reading from r.
func NewChunker(r io.Reader, opts Options) (*Chunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.BufSize == 0 {
		opts.BufSize = 2 * opts.MaxSize
	}
	bits, n := opts.MaskBits(), opts.Level()

	c := &Chunker{
		opts:      opts,
		minSize:   opts.MinSize,
		avgSize:   opts.AverageSize,
		maxSize:   opts.MaxSize,
		maskSmall: masks[bits+n],
		maskLarge: masks[bits-n],
		hasher:    NewGearHasher(opts.Seed),
		buf:       make([]byte, opts.BufSize),
	}
	c.Reset(r)
	logger.Tracef("new chunker min=%d avg=%d max=%d nc=%d mask bits=%d",
		c.minSize, c.avgSize, c.maxSize, n, bits)
	return c, nil
}

// Options returns the options in effect, defaults filled in.
func (c *Chunker) Options() Options {
	return c.opts
}

// Reset restarts the chunker on a new stream, reusing its buffer.
func (c *Chunker) Reset(r io.Reader) {
	c.reader = r
	c.streamPos = 0
	c.readerEOF = false
	c.err = nil
	// an empty buffer is one whose cursor sits at its end
	c.bufCursor = len(c.buf)
	c.bufEnd = len(c.buf)
	c.hasher.Reset()
}

func (c *Chunker) fillBuffer() error {
	available := c.bufEnd - c.bufCursor
	// a chunk never exceeds maxSize, so that much buffered data is enough
	if available >= c.maxSize || c.readerEOF {
		if c.readerEOF && c.bufCursor > 0 {
			copy(c.buf, c.buf[c.bufCursor:c.bufEnd])
			c.bufCursor, c.bufEnd = 0, available
		}
		return nil
	}

	copy(c.buf, c.buf[c.bufCursor:c.bufEnd])
	c.bufCursor = 0
	c.bufEnd = available

	n, err := io.ReadFull(c.reader, c.buf[available:])
	c.bufEnd += n
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.readerEOF = true
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrStreamRead, err)
	}
}

// Next returns the next chunk, or io.EOF once the stream is exhausted. A
// read error from the underlying reader is returned wrapped in ErrStreamRead
// and repeated on every later call.
func (c *Chunker) Next() (Chunk, error) {
	if c.err != nil {
		return Chunk{}, c.err
	}
	if err := c.fillBuffer(); err != nil {
		c.err = err
		return Chunk{}, err
	}
	if c.bufEnd == c.bufCursor {
		return Chunk{}, io.EOF
	}

	data := c.buf[c.bufCursor:c.bufEnd]
	length, fp := c.cut(data)
	chunk := Chunk{
		Offset:      c.streamPos,
		Length:      length,
		Data:        data[:length:length],
		Fingerprint: fp,
	}
	c.bufCursor += length
	c.streamPos += length
	return chunk, nil
}

// cut returns the length of the chunk at the head of data and the hash at
// the boundary. A check at position i that matches ends the chunk after
// byte i.
func (c *Chunker) cut(data []byte) (int, uint64) {
	n := len(data)
	if n <= c.minSize {
		return n, 0
	}
	end := min(n, c.maxSize)
	normal := min(end, c.avgSize)

	h := c.hasher
	h.Reset()
	// bytes older than the window cannot influence the hash at minSize
	for i := c.minSize - WindowSize; i < c.minSize; i++ {
		h.Update(data[i])
	}
	for i := c.minSize; i < normal; i++ {
		if h.Update(data[i])&c.maskSmall == 0 {
			return i + 1, h.Sum()
		}
	}
	for i := normal; i < end; i++ {
		if h.Update(data[i])&c.maskLarge == 0 {
			return i + 1, h.Sum()
		}
	}
	return end, h.Sum()
}
