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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
)

// ManifestSource enumerates manifests that keep chunks alive.
type ManifestSource interface {
	Each(ctx context.Context, fn func(name string, m *Manifest) error) error
}

// ManifestFiles is a ManifestSource over manifest files and directories
// searched recursively for *.cdc files. The store directory itself is
// skipped when it lies below one of them.
type ManifestFiles struct {
	Paths []string
	Skip  string
}

func (mf ManifestFiles) Each(ctx context.Context, fn func(name string, m *Manifest) error) error {
	for _, root := range mf.Paths {
		err := filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if de.IsDir() {
				if mf.Skip != "" && path != root && sameFile(path, mf.Skip) {
					return filepath.SkipDir
				}
				return nil
			}
			if path != root && !strings.HasSuffix(path, ManifestExt) {
				return nil
			}
			m, err := ReadFile(path)
			if err != nil {
				return err
			}
			return fn(path, m)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func sameFile(a, b string) bool {
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}

type PruneOptions struct {
	// DryRun reports what would be deleted without deleting.
	DryRun bool
	// GracePeriod protects entries modified more recently than this, which
	// may belong to an ingest whose manifest is not written yet.
	GracePeriod time.Duration
	now         func() time.Time
}

type PruneStats struct {
	Manifests    int
	LiveChunks   int
	Scanned      int
	Deleted      int
	DeletedBytes int64
	// Young counts unreferenced entries kept because of the grace period.
	Young       int
	TempRemoved int
}

// LiveSet collects every digest referenced by the manifests of roots. Any
// error aborts, since a manifest that cannot be read could reference
// anything.
func LiveSet(ctx context.Context, roots []ManifestSource) (*internal.Set[Digest], int, error) {
	live := internal.NewSet[Digest]()
	manifests := 0
	for _, src := range roots {
		err := src.Each(ctx, func(name string, m *Manifest) error {
			manifests++
			for _, e := range m.Entries {
				live.Add(e.Digest)
			}
			logger.Tracef("LiveSet: %s references %d entries", name, len(m.Entries))
			return nil
		})
		if err != nil {
			return nil, manifests, fmt.Errorf("collect live chunks: %w", err)
		}
	}
	return live, manifests, nil
}

// Prune deletes every entry not referenced by a manifest of roots. The
// caller must keep writers out of the store for the duration, which the
// POSIX store's exclusive Lock does.
func Prune(ctx context.Context, store ChunkStore, roots []ManifestSource, opts PruneOptions) (PruneStats, error) {
	var stats PruneStats
	now := time.Now
	if opts.now != nil {
		now = opts.now
	}
	cutoff := now().Add(-opts.GracePeriod)

	live, manifests, err := LiveSet(ctx, roots)
	if err != nil {
		return stats, err
	}
	stats.Manifests = manifests
	stats.LiveChunks = live.Len()

	var doomed []Digest
	var doomedBytes []int64
	err = store.Walk(ctx, func(d Digest, info os.FileInfo) error {
		stats.Scanned++
		if live.Contains(d) {
			return nil
		}
		if info.ModTime().After(cutoff) {
			stats.Young++
			return nil
		}
		doomed = append(doomed, d)
		doomedBytes = append(doomedBytes, info.Size())
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan store: %w", err)
	}

	for i, d := range doomed {
		if opts.DryRun {
			logger.Infof("would delete %s", d)
		} else {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := store.Delete(ctx, d); err != nil && !errors.Is(err, ErrNotFound) {
				return stats, err
			}
			logger.Debugf("deleted %s", d)
		}
		stats.Deleted++
		stats.DeletedBytes += doomedBytes[i]
	}

	if hk, ok := store.(housekeeper); ok && !opts.DryRun {
		if stats.TempRemoved, err = hk.Housekeep(ctx, opts.GracePeriod); err != nil {
			return stats, err
		}
	}
	logger.Infof("prune: %d manifests, %d live chunks, %d scanned, %d deleted (%s), %d kept by grace period",
		stats.Manifests, stats.LiveChunks, stats.Scanned, stats.Deleted,
		internal.FormatBytes(uint64(stats.DeletedBytes)), stats.Young)
	return stats, nil
}

type FsckReport struct {
	Checked int
	Bytes   int64
	// Corrupt entries fail decoding or hash to something else.
	Corrupt []Digest
	// Missing chunks are referenced by a manifest of roots but absent.
	Missing []Digest
}

func (r FsckReport) OK() bool {
	return len(r.Corrupt) == 0 && len(r.Missing) == 0
}

// Fsck reads and rehashes every entry of store, and checks that every
// chunk referenced from roots exists. It only reports; nothing is repaired
// or deleted.
func Fsck(ctx context.Context, store ChunkStore, roots ...ManifestSource) (FsckReport, error) {
	var report FsckReport
	err := store.Walk(ctx, func(d Digest, info os.FileInfo) error {
		report.Checked++
		data, err := store.Get(ctx, d)
		if err == nil && CalcFP(data) != d {
			err = CorruptChunk(d, "content hashes to %s", CalcFP(data).Short())
		}
		switch {
		case err == nil:
			report.Bytes += int64(len(data))
		case errors.Is(err, ErrCorruptChunk):
			logger.Warnf("fsck: %v", err)
			report.Corrupt = append(report.Corrupt, d)
		case errors.Is(err, ErrNotFound):
			// deleted while walking
			report.Checked--
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if len(roots) > 0 {
		live, _, err := LiveSet(ctx, roots)
		if err != nil {
			return report, err
		}
		for _, d := range live.Elements() {
			ok, err := store.Exists(ctx, d)
			if err != nil {
				return report, err
			}
			if !ok {
				logger.Warnf("fsck: %v", MissingChunk(d))
				report.Missing = append(report.Missing, d)
			}
		}
	}
	return report, nil
}
