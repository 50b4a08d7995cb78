// Copyright 2025 zhengshuai.xiao@outlook.com
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
package dedup

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
)

// Manifest binary layout, all integers little-endian:
//
//	magic "CDCMNFST"     8
//	version              u32
//	header size          u32   bytes from magic to the first entry
//	total length         u64
//	min/avg/max size     3 x u32
//	normalization        u8
//	digest algorithm     u8    1 = sha256
//	reserved             2
//	entry count          u64
//	entries              count x (digest[32] + length u64)
//	crc32 (IEEE)         u32   of everything before it
const (
	ManifestMagic   = "CDCMNFST"
	ManifestVersion = 1

	DigestAlgSHA256 = 1

	manifestHeaderSize = 48
	manifestEntrySize  = DigestSize + 8
	manifestCRCSize    = 4

	// ManifestExt is appended to a file name to name its manifest.
	ManifestExt = ".cdc"
)

// Chunking records the chunker parameters a manifest was built with.
type Chunking struct {
	MinSize       uint32
	AvgSize       uint32
	MaxSize       uint32
	Normalization uint8
}

// Entry is one chunk reference; Length is the raw chunk length.
type Entry struct {
	Digest Digest
	Length uint64
}

// Manifest is the ordered list of chunks that reassembles one stream.
type Manifest struct {
	Version     uint32
	TotalLength uint64
	Chunking    Chunking
	Entries     []Entry
}

// Build returns a manifest over entries, which are kept in order. Zero
// length entries are rejected since no chunker emits them.
func Build(chunking Chunking, entries []Entry) (*Manifest, error) {
	m := &Manifest{
		Version:  ManifestVersion,
		Chunking: chunking,
		Entries:  make([]Entry, len(entries)),
	}
	copy(m.Entries, entries)
	for i, e := range m.Entries {
		if e.Length == 0 {
			return nil, corruptManifest("entry %d (%s) has zero length", i, e.Digest.Short())
		}
		m.TotalLength += e.Length
	}
	return m, nil
}

func (m *Manifest) Serialize() []byte {
	var w internal.LEWriter
	w.Buf = make([]byte, 0, manifestHeaderSize+len(m.Entries)*manifestEntrySize+manifestCRCSize)
	w.Bytes([]byte(ManifestMagic))
	w.U32(ManifestVersion)
	w.U32(manifestHeaderSize)
	w.U64(m.TotalLength)
	w.U32(m.Chunking.MinSize)
	w.U32(m.Chunking.AvgSize)
	w.U32(m.Chunking.MaxSize)
	w.U8(m.Chunking.Normalization)
	w.U8(DigestAlgSHA256)
	w.Bytes([]byte{0, 0})
	w.U64(uint64(len(m.Entries)))
	for _, e := range m.Entries {
		w.Bytes(e.Digest[:])
		w.U64(e.Length)
	}
	w.U32(internal.CalculateCRC32(w.Buf))
	return w.Buf
}

// Deserialize parses and fully validates a serialized manifest. Every
// failure matches ErrCorruptManifest.
func Deserialize(data []byte) (*Manifest, error) {
	if len(data) < len(ManifestMagic) || !bytes.Equal(data[:len(ManifestMagic)], []byte(ManifestMagic)) {
		return nil, corruptManifest("bad magic")
	}
	r := internal.LEReader{Buf: data[len(ManifestMagic):]}
	version := r.U32()
	headerSize := r.U32()
	if r.Short {
		return nil, corruptManifest("truncated header")
	}
	if version != ManifestVersion {
		return nil, corruptManifest("unsupported version %d", version)
	}
	if headerSize < manifestHeaderSize {
		return nil, corruptManifest("header size %d below %d", headerSize, manifestHeaderSize)
	}
	if uint64(len(data)) < uint64(headerSize)+manifestCRCSize {
		return nil, corruptManifest("truncated header")
	}

	body := data[:len(data)-manifestCRCSize]
	trailer := internal.LEReader{Buf: data[len(body):]}
	if !internal.VerifyCRC32(body, trailer.U32()) {
		return nil, corruptManifest("checksum mismatch")
	}

	m := &Manifest{Version: version}
	m.TotalLength = r.U64()
	m.Chunking.MinSize = r.U32()
	m.Chunking.AvgSize = r.U32()
	m.Chunking.MaxSize = r.U32()
	m.Chunking.Normalization = r.U8()
	alg := r.U8()
	r.Bytes(2)
	count := r.U64()
	if alg != DigestAlgSHA256 {
		return nil, corruptManifest("unsupported digest algorithm %d", alg)
	}

	records := body[headerSize:]
	if count > uint64(len(records))/manifestEntrySize || count*manifestEntrySize != uint64(len(records)) {
		return nil, corruptManifest("%d entries do not fit a %d byte record area", count, len(records))
	}

	m.Entries = make([]Entry, count)
	rr := internal.LEReader{Buf: records}
	var sum uint64
	for i := range m.Entries {
		e := &m.Entries[i]
		copy(e.Digest[:], rr.Bytes(DigestSize))
		e.Length = rr.U64()
		if e.Length == 0 {
			return nil, corruptManifest("entry %d has zero length", i)
		}
		if sum+e.Length < sum {
			return nil, corruptManifest("entry lengths overflow")
		}
		sum += e.Length
	}
	if sum != m.TotalLength {
		return nil, corruptManifest("entries sum to %d, header says %d", sum, m.TotalLength)
	}
	return m, nil
}

// Equal compares every field, entry order included.
func (m *Manifest) Equal(o *Manifest) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Version != o.Version || m.TotalLength != o.TotalLength ||
		m.Chunking != o.Chunking || len(m.Entries) != len(o.Entries) {
		return false
	}
	for i := range m.Entries {
		if m.Entries[i] != o.Entries[i] {
			return false
		}
	}
	return true
}

// Digests returns the distinct chunks the manifest references.
func (m *Manifest) Digests() *internal.Set[Digest] {
	set := internal.NewSet[Digest]()
	for _, e := range m.Entries {
		set.Add(e.Digest)
	}
	return set
}

// UniqueLength is the number of bytes the distinct chunks hold, which is
// what the manifest costs in a store that holds nothing else.
func (m *Manifest) UniqueLength() uint64 {
	seen := internal.NewSet[Digest]()
	var n uint64
	for _, e := range m.Entries {
		if !seen.Contains(e.Digest) {
			seen.Add(e.Digest)
			n += e.Length
		}
	}
	return n
}

// WriteFile stores the manifest at path, replacing any previous file
// atomically.
func (m *Manifest) WriteFile(path string) error {
	if err := internal.WriteFileAtomic(path, m.Serialize(), 0o644); err != nil {
		return &PathError{Op: "write manifest", Path: path, Err: err}
	}
	logger.Tracef("wrote manifest %s with %d entries", path, len(m.Entries))
	return nil
}

// ReadFile loads and validates the manifest at path. Corruption errors
// carry the path as well.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, &PathError{Op: "read manifest", Path: path, Err: err})
		}
		return nil, &PathError{Op: "read manifest", Path: path, Err: err}
	}
	m, err := Deserialize(data)
	if err != nil {
		return nil, &PathError{Op: "read manifest", Path: path, Err: err}
	}
	return m, nil
}
