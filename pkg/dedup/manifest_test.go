package dedup

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
)

func testEntries() []Entry {
	return []Entry{
		{Digest: CalcFP([]byte("fp1")), Length: 1024},
		{Digest: CalcFP([]byte("fp2")), Length: 2048},
		{Digest: CalcFP([]byte("fp1")), Length: 1024},
	}
}

func TestManifestOperations(t *testing.T) {
	m, err := Build(testChunking, testEntries())
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), m.TotalLength)
	assert.Equal(t, uint32(ManifestVersion), m.Version)
	assert.Equal(t, uint64(3072), m.UniqueLength())
	assert.Equal(t, 2, m.Digests().Len())

	t.Run("SerializeLayout", func(t *testing.T) {
		data := m.Serialize()
		require.Len(t, data, 48+3*40+4)
		assert.Equal(t, ManifestMagic, string(data[:8]))
		assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[8:]))
		assert.Equal(t, uint32(48), binary.LittleEndian.Uint32(data[12:]))
		assert.Equal(t, uint64(4096), binary.LittleEndian.Uint64(data[16:]))
		assert.Equal(t, testChunking.AvgSize, binary.LittleEndian.Uint32(data[28:]))
		assert.Equal(t, byte(2), data[36])
		assert.Equal(t, byte(DigestAlgSHA256), data[37])
		assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(data[40:]))
	})

	t.Run("WriteAndReadManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "big.iso"+ManifestExt)
		require.NoError(t, m.WriteFile(path))

		read, err := ReadFile(path)
		require.NoError(t, err)
		assert.True(t, m.Equal(read))
		assert.Equal(t, m.Entries, read.Entries)
	})

	t.Run("ReadMissingManifest", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "absent.cdc"))
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("ReadCorruptManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.cdc")
		require.NoError(t, os.WriteFile(path, []byte("not a manifest"), 0o644))
		_, err := ReadFile(path)
		assert.ErrorIs(t, err, ErrCorruptManifest)
		var pe *PathError
		assert.ErrorAs(t, err, &pe)
		assert.Equal(t, path, pe.Path)
	})
}

func TestManifestEdgeCases(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		m, err := Build(testChunking, nil)
		require.NoError(t, err)
		assert.NotNil(t, m.Entries)
		assert.Zero(t, m.TotalLength)

		data := m.Serialize()
		assert.Len(t, data, 48+4)
		read, err := Deserialize(data)
		require.NoError(t, err)
		assert.True(t, m.Equal(read))
		assert.Empty(t, read.Entries)
	})

	t.Run("ZeroLengthEntry", func(t *testing.T) {
		_, err := Build(testChunking, []Entry{{Digest: CalcFP(nil), Length: 0}})
		assert.ErrorIs(t, err, ErrCorruptManifest)
	})

	t.Run("BuildCopiesEntries", func(t *testing.T) {
		entries := testEntries()
		m, err := Build(testChunking, entries)
		require.NoError(t, err)
		entries[0].Length = 7
		assert.Equal(t, uint64(1024), m.Entries[0].Length)
	})

	t.Run("LargerHeaderIsSkipped", func(t *testing.T) {
		m, err := Build(testChunking, testEntries())
		require.NoError(t, err)
		data := m.Serialize()
		body := data[:len(data)-4]

		// a later writer may append header fields we do not know about
		grown := append([]byte{}, body[:48]...)
		grown = append(grown, make([]byte, 16)...)
		grown = append(grown, body[48:]...)
		binary.LittleEndian.PutUint32(grown[12:], 64)
		grown = binary.LittleEndian.AppendUint32(grown, internal.CalculateCRC32(grown))

		read, err := Deserialize(grown)
		require.NoError(t, err)
		assert.True(t, m.Equal(read))
	})
}

// resign recomputes the CRC trailer so a test can corrupt a field without
// tripping the checksum first.
func resign(data []byte) []byte {
	body := data[:len(data)-4]
	binary.LittleEndian.PutUint32(data[len(body):], internal.CalculateCRC32(body))
	return data
}

func TestManifestCorruption(t *testing.T) {
	m, err := Build(testChunking, testEntries())
	require.NoError(t, err)
	good := m.Serialize()

	testCases := []struct {
		name   string
		mangle func(b []byte) []byte
	}{
		{"Empty", func(b []byte) []byte { return nil }},
		{"BadMagic", func(b []byte) []byte { b[0] = 'X'; return resign(b) }},
		{"BadVersion", func(b []byte) []byte { b[8] = 9; return resign(b) }},
		{"SmallHeaderSize", func(b []byte) []byte { b[12] = 40; return resign(b) }},
		{"HugeHeaderSize", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[12:], 1<<30); return resign(b) }},
		{"TruncatedHeader", func(b []byte) []byte { return b[:30] }},
		{"TruncatedEntries", func(b []byte) []byte { return resign(append(b[:48+40+10:48+40+10], 0, 0, 0, 0)) }},
		{"FlippedBit", func(b []byte) []byte { b[60] ^= 1; return b }},
		{"BadCRC", func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }},
		{"UnknownDigestAlg", func(b []byte) []byte { b[37] = 2; return resign(b) }},
		{"CountTooLarge", func(b []byte) []byte { b[40] = 4; return resign(b) }},
		{"CountOverflow", func(b []byte) []byte { binary.LittleEndian.PutUint64(b[40:], 1<<62); return resign(b) }},
		{"TotalMismatch", func(b []byte) []byte { b[16]++; return resign(b) }},
		{"ZeroLengthEntry", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[48+32:], 0)
			binary.LittleEndian.PutUint64(b[16:], 3072)
			return resign(b)
		}},
		{"LengthOverflow", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[48+32:], ^uint64(0))
			binary.LittleEndian.PutUint64(b[16:], 3071)
			return resign(b)
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.mangle(append([]byte{}, good...))
			_, err := Deserialize(data)
			assert.ErrorIs(t, err, ErrCorruptManifest)
			assert.Equal(t, ErrCorruptManifest, KindOf(err))
		})
	}
}

func TestManifestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "entries")
		entries := make([]Entry, n)
		for i := range entries {
			seed := rapid.SliceOfN(rapid.Byte(), 1, 8).Draw(t, "seed")
			entries[i] = Entry{Digest: CalcFP(seed), Length: rapid.Uint64Range(1, 1<<40).Draw(t, "length")}
		}
		chunking := Chunking{
			MinSize:       rapid.Uint32().Draw(t, "min"),
			AvgSize:       rapid.Uint32().Draw(t, "avg"),
			MaxSize:       rapid.Uint32().Draw(t, "max"),
			Normalization: rapid.Uint8().Draw(t, "nc"),
		}
		m, err := Build(chunking, entries)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		read, err := Deserialize(m.Serialize())
		if err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		if !m.Equal(read) {
			t.Fatalf("round trip changed the manifest")
		}
	})
}
