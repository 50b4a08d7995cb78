package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengshuai-xiao/git-fastcdc/internal/compression"
)

func TestStoreConfigSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreConfigName)
	c := DefaultStoreConfig()
	c.Compression = "snappy"
	c.Chunking.AvgSize = 32 << 10
	require.NoError(t, c.Save(path))

	got, err := LoadStoreConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, compression.Compress_snappy, got.CompressionType())
}

func TestLoadStoreConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreConfigName)
	require.NoError(t, os.WriteFile(path, []byte("uuid: 2f0c7a3e-8b7e-4f3a-9d0e-3b1c2d4e5f60\nformat: 1\ncompression: zlib\n"), 0o644))

	c, err := LoadStoreConfig(path)
	require.NoError(t, err)
	assert.True(t, c.Verify)
	assert.Equal(t, uint32(64<<10), c.Chunking.AvgSize)
	assert.Equal(t, uint8(2), c.Chunking.Normalization)
	assert.Equal(t, "zlib", c.Compression)
}

func TestLoadStoreConfigInvalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"missing uuid", "format: 1\n"},
		{"bad compression", "uuid: 2f0c7a3e-8b7e-4f3a-9d0e-3b1c2d4e5f60\nformat: 1\ncompression: lz4\n"},
		{"future format", "uuid: 2f0c7a3e-8b7e-4f3a-9d0e-3b1c2d4e5f60\nformat: 9\n"},
		{"newer client required", "uuid: 2f0c7a3e-8b7e-4f3a-9d0e-3b1c2d4e5f60\nformat: 1\nmin_version: 99.0.0\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), StoreConfigName)
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o644))
			_, err := LoadStoreConfig(path)
			assert.Error(t, err)
		})
	}
}
