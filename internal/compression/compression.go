package compression

import (
	"errors"
	"fmt"
	"sort"
)

// CompressionType is persisted in every chunk entry header, so the values
// below must never be renumbered.
type CompressionType byte

const (
	Compress_none   CompressionType = 0
	Compress_zlib   CompressionType = 1
	Compress_snappy CompressionType = 2
	Compress_xz     CompressionType = 3
)

var ErrInvalidCompressionType = errors.New("invalid compression type")

var (
	CompressionMethods = map[string]CompressionType{
		"none":   Compress_none,
		"zlib":   Compress_zlib,
		"snappy": Compress_snappy,
		"xz":     Compress_xz,
	}
)

// Compressor defines the interface for data compression and decompression algorithms.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)

	// TypeString returns the name used in configuration, e.g. "zlib".
	TypeString() string
	Type() CompressionType
}

// GetCompressorViaString maps a configured name to its Compressor. "none"
// yields a nil Compressor and no error.
func GetCompressorViaString(compressionStr string) (Compressor, error) {
	compressionType, ok := CompressionMethods[compressionStr]
	if !ok {
		return nil, ErrInvalidCompressionType
	}
	return GetCompressorViaType(compressionType)
}

func GetCompressorViaType(compressionType CompressionType) (Compressor, error) {
	switch compressionType {
	case Compress_none:
		return nil, nil
	case Compress_zlib:
		return NewZlib(), nil
	case Compress_snappy:
		return NewSnappy(), nil
	case Compress_xz:
		return NewXZ(), nil
	default:
		return nil, ErrInvalidCompressionType
	}
}

func (t CompressionType) String() string {
	for name, v := range CompressionMethods {
		if v == t {
			return name
		}
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Names lists the accepted configuration names in sorted order.
func Names() []string {
	names := make([]string, 0, len(CompressionMethods))
	for name := range CompressionMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
