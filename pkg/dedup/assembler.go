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
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Assembler turns manifests back into byte streams.
type Assembler struct {
	store ChunkStore
}

func NewAssembler(store ChunkStore) *Assembler {
	return &Assembler{store: store}
}

// fetch loads one entry and checks it against the manifest. Absent chunks
// become MissingChunk; the store's own corruption errors pass through.
func (a *Assembler) fetch(ctx context.Context, e Entry) ([]byte, error) {
	data, err := a.store.Get(ctx, e.Digest)
	if err != nil {
		if errors.Is(err, ErrNotFound) && !errors.Is(err, ErrMissingChunk) {
			return nil, MissingChunk(e.Digest)
		}
		return nil, err
	}
	if uint64(len(data)) != e.Length {
		return nil, CorruptChunk(e.Digest, "stored length %d, manifest says %d", len(data), e.Length)
	}
	return data, nil
}

// Assemble writes the chunks of m to w in manifest order and returns the
// number of bytes written. It stops at the first failure; bytes written
// before it stay written.
func (a *Assembler) Assemble(ctx context.Context, m *Manifest, w io.Writer) (int64, error) {
	var written int64
	for i, e := range m.Entries {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		data, err := a.fetch(ctx, e)
		if err != nil {
			logger.Debugf("Assemble: entry %d/%d: %v", i+1, len(m.Entries), err)
			return written, err
		}
		n, err := w.Write(data)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write output: %w", err)
		}
	}
	logger.Tracef("Assemble: wrote %d bytes from %d entries", written, len(m.Entries))
	return written, nil
}

// NewReader returns the stream of m, fetching one chunk at a time as it is
// read. Closing the reader early stops further fetches.
func (a *Assembler) NewReader(ctx context.Context, m *Manifest) io.ReadCloser {
	return &assembledReader{a: a, ctx: ctx, entries: m.Entries}
}

type assembledReader struct {
	a       *Assembler
	ctx     context.Context
	entries []Entry
	next    int
	cur     []byte
	err     error
}

func (r *assembledReader) Read(p []byte) (int, error) {
	for len(r.cur) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.next == len(r.entries) {
			r.err = io.EOF
			continue
		}
		if err := r.ctx.Err(); err != nil {
			r.err = err
			continue
		}
		data, err := r.a.fetch(r.ctx, r.entries[r.next])
		if err != nil {
			r.err = err
			continue
		}
		r.next++
		r.cur = data
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

func (r *assembledReader) Close() error {
	if r.err == os.ErrClosed {
		return nil
	}
	r.cur = nil
	r.entries = nil
	r.err = os.ErrClosed
	return nil
}
