package internal

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "1023 Bytes", FormatBytes(1023))
	assert.Equal(t, "1.00 KiB (1024 Bytes)", FormatBytes(1024))
	assert.Equal(t, "1.50 KiB (1536 Bytes)", FormatBytes(1536))
	assert.Equal(t, "1.00 MiB (1048576 Bytes)", FormatBytes(1024*1024))
	assert.Equal(t, "1.00 GiB (1073741824 Bytes)", FormatBytes(1024*1024*1024))
}

func TestParseBytes(t *testing.T) {
	testCases := []struct {
		in   string
		want uint64
	}{
		{"4096", 4096},
		{"16KiB", 16 << 10},
		{"64 KiB", 64 << 10},
		{"1MiB", 1 << 20},
		{"1MB", 1000 * 1000},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseBytes(tc.in)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	_, err := ParseBytes("lots")
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"Seconds", "5s", 5 * time.Second, false},
		{"Minutes and Seconds", "1m30s", 90 * time.Second, false},
		{"Days and Hours", "1d2h", 26 * time.Hour, false},
		{"Days only", "2d", 48 * time.Hour, false},
		{"Float seconds", "1.5", 1500 * time.Millisecond, false},
		{"Empty string", "", 0, false},
		{"Invalid string", "abc", 0, true},
		{"Invalid day suffix", "1dxyz", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDuration(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, d)
		})
	}
}

func TestExists(t *testing.T) {
	tmpfile, err := os.CreateTemp(t.TempDir(), "exists_test")
	assert.NoError(t, err)
	tmpfile.Close()

	assert.True(t, Exists(tmpfile.Name()))
	assert.False(t, Exists(tmpfile.Name()+".nonexistent"))
}
