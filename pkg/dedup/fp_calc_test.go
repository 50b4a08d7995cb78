package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcFP(t *testing.T) {
	testCases := []struct {
		name string
		data string
		hex  string
	}{
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello", "hello", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := CalcFP([]byte(tc.data))
			assert.Equal(t, tc.hex, d.String())
			assert.Equal(t, tc.hex[:12], d.Short())

			parsed, err := ParseDigest(tc.hex)
			require.NoError(t, err)
			assert.Equal(t, d, parsed)
		})
	}
}

func TestParseDigestInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "zz" + CalcFP(nil).String()[2:], CalcFP(nil).String() + "00"} {
		_, err := ParseDigest(s)
		assert.Error(t, err, s)
	}
	assert.True(t, Digest{}.IsZero())
	assert.False(t, CalcFP(nil).IsZero())
}

func TestCalcFPs(t *testing.T) {
	chunks := []Chunk{{Data: []byte("a"), Len: 1}, {Data: []byte("b"), Len: 1}}
	CalcFPs(chunks)
	assert.Equal(t, CalcFP([]byte("a")), chunks[0].FP)
	assert.Equal(t, CalcFP([]byte("b")), chunks[1].FP)
}
