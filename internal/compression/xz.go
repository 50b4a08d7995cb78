package compression

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"
)

// XZCompressor implements the Compressor interface using LZMA2 in an xz container.
type XZCompressor struct{}

func NewXZ() *XZCompressor {
	return &XZCompressor{}
}

func (c *XZCompressor) Type() CompressionType {
	return Compress_xz
}

func (c *XZCompressor) TypeString() string {
	return "xz"
}

func (c *XZCompressor) Compress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w, err := xz.NewWriter(&b)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *XZCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
