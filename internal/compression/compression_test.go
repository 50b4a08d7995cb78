package compression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCompressor(t *testing.T) {
	t.Run("GetCompressorViaString", func(t *testing.T) {
		c, err := GetCompressorViaString("zlib")
		assert.NoError(t, err)
		assert.IsType(t, &ZlibCompressor{}, c)

		c, err = GetCompressorViaString("snappy")
		assert.NoError(t, err)
		assert.IsType(t, &SnappyCompressor{}, c)

		c, err = GetCompressorViaString("xz")
		assert.NoError(t, err)
		assert.IsType(t, &XZCompressor{}, c)

		c, err = GetCompressorViaString("none")
		assert.NoError(t, err)
		assert.Nil(t, c)

		c, err = GetCompressorViaString("invalid")
		assert.Error(t, err)
		assert.Equal(t, ErrInvalidCompressionType, err)
		assert.Nil(t, c)
	})

	t.Run("GetCompressorViaType", func(t *testing.T) {
		c, err := GetCompressorViaType(Compress_zlib)
		assert.NoError(t, err)
		assert.IsType(t, &ZlibCompressor{}, c)

		c, err = GetCompressorViaType(Compress_snappy)
		assert.NoError(t, err)
		assert.IsType(t, &SnappyCompressor{}, c)

		c, err = GetCompressorViaType(Compress_xz)
		assert.NoError(t, err)
		assert.IsType(t, &XZCompressor{}, c)

		c, err = GetCompressorViaType(Compress_none)
		assert.NoError(t, err)
		assert.Nil(t, c)

		c, err = GetCompressorViaType(99)
		assert.Error(t, err)
		assert.Equal(t, ErrInvalidCompressionType, err)
		assert.Nil(t, c)
	})
}

func TestCompressionTypeString(t *testing.T) {
	for name, ct := range CompressionMethods {
		assert.Equal(t, name, ct.String())
	}
	assert.Equal(t, "unknown(42)", CompressionType(42).String())
	assert.Equal(t, []string{"none", "snappy", "xz", "zlib"}, Names())
}

func TestCompressorsRoundTrip(t *testing.T) {
	payload := []byte("the same payload goes through every codec the store can be configured with")
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := GetCompressorViaString(name)
			require.NoError(t, err)
			if c == nil {
				return
			}
			enc, err := c.Compress(payload)
			require.NoError(t, err)
			dec, err := c.Decompress(enc)
			require.NoError(t, err)
			assert.Equal(t, payload, dec)
			assert.Equal(t, name, c.TypeString())
		})
	}
}
