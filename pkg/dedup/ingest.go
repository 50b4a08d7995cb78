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
	"fmt"
	"io"

	"github.com/zhengshuai-xiao/git-fastcdc/pkg/metrics"
)

// IngestStats describes what one Ingest call added to the store.
type IngestStats struct {
	Chunks     int
	NewChunks  int
	Bytes      int64
	NewBytes   int64
	DedupBytes int64
}

func (s IngestStats) DedupChunks() int {
	return s.Chunks - s.NewChunks
}

func (s *IngestStats) record(c Chunk) {
	s.Chunks++
	s.Bytes += int64(c.Len)
	if c.Deduped {
		s.DedupBytes += int64(c.Len)
		return
	}
	s.NewChunks++
	s.NewBytes += int64(c.Len)
}

// Add accumulates o into s, for totals over several files.
func (s *IngestStats) Add(o IngestStats) {
	s.Chunks += o.Chunks
	s.NewChunks += o.NewChunks
	s.Bytes += o.Bytes
	s.NewBytes += o.NewBytes
	s.DedupBytes += o.DedupBytes
}

// Ingester chunks streams into a store.
type Ingester struct {
	Store   ChunkStore
	CDC     CDC
	Metrics *metrics.Metrics
	// Progress, when set, is called with the length of every stored chunk.
	Progress func(n int)
}

// Ingest reads r to the end, stores every chunk and returns the manifest
// that reassembles it. Cancellation is honored between chunks; chunks
// stored before a failure stay in the store for prune to collect.
func (ing *Ingester) Ingest(ctx context.Context, r io.Reader) (*Manifest, IngestStats, error) {
	var stats IngestStats
	chunker, err := ing.CDC.NewChunker(r)
	if err != nil {
		return nil, stats, err
	}

	entries := []Entry{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, err
		}

		d, isNew, err := ing.Store.Put(ctx, chunk.Data)
		if err != nil {
			return nil, stats, fmt.Errorf("chunk at offset %d: %w", chunk.Offset, err)
		}
		chunk.FP = d
		chunk.Deduped = !isNew
		entries = append(entries, Entry{Digest: chunk.FP, Length: chunk.Len})
		stats.record(chunk)
		ing.Metrics.ObserveChunk(len(chunk.Data))
		if ing.Progress != nil {
			ing.Progress(len(chunk.Data))
		}
	}

	m, err := Build(ing.CDC.Params(), entries)
	if err != nil {
		return nil, stats, err
	}
	ing.Metrics.ObserveManifest()
	logger.Debugf("Ingest: %d bytes in %d chunks, %d new (%d bytes)",
		stats.Bytes, stats.Chunks, stats.NewChunks, stats.NewBytes)
	return m, stats, nil
}
