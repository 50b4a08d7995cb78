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
	"github.com/zhengshuai-xiao/git-fastcdc/internal/compression"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/metrics"
)

// Entry file layout: a 16 byte header followed by the payload.
//
//	magic "CDCK"     4
//	version          u8
//	compression      u8
//	reserved         2
//	raw length       u64 little-endian
const (
	entryMagic      = "CDCK"
	entryVersion    = 1
	entryHeaderSize = 16

	objectsDirName = "objects"
	lockFileName   = "lock"
	tmpPrefix      = ".tmp-"
)

type POSIXStoreOptions struct {
	// Compression applies to new entries; entries are always read with the
	// codec recorded in their own header.
	Compression compression.CompressionType
	// Verify rehashes every entry read by Get.
	Verify  bool
	Metrics *metrics.Metrics
}

// POSIXStore keeps one file per chunk under <root>/objects/ab/cd/<hex>.
type POSIXStore struct {
	root       string
	objects    string
	compressor compression.Compressor
	verify     bool
	readOnly   bool
	metrics    *metrics.Metrics
	locks      *internal.KeyLock[Digest]
}

// NewPOSIXStore opens the object tree under root, creating it if needed.
// It does not read or require config.yaml; see OpenPOSIXStore.
func NewPOSIXStore(root string, opts POSIXStoreOptions) (*POSIXStore, error) {
	compressor, err := compression.GetCompressorViaType(opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	objects := filepath.Join(root, objectsDirName)
	if err := os.MkdirAll(objects, 0o755); err != nil {
		return nil, storeWrite("create", objects, err)
	}
	return &POSIXStore{
		root:       root,
		objects:    objects,
		compressor: compressor,
		verify:     opts.Verify,
		metrics:    opts.Metrics,
		locks:      internal.NewKeyLock[Digest](),
	}, nil
}

// InitPOSIXStore creates a store at root described by cfg. It refuses to
// overwrite an existing store.
func InitPOSIXStore(root string, cfg *internal.StoreConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfgPath := filepath.Join(root, internal.StoreConfigName)
	if internal.Exists(cfgPath) {
		return fmt.Errorf("store already initialized at %s", root)
	}
	if err := os.MkdirAll(filepath.Join(root, objectsDirName), 0o755); err != nil {
		return storeWrite("create", root, err)
	}
	if err := cfg.Save(cfgPath); err != nil {
		return storeWrite("write", cfgPath, err)
	}
	logger.Infof("initialized store %s (uuid %s, compression %s)", root, cfg.UUID, cfg.Compression)
	return nil
}

// OpenPOSIXStore opens the store at root with the settings of its
// config.yaml.
func OpenPOSIXStore(root string, m *metrics.Metrics) (*POSIXStore, *internal.StoreConfig, error) {
	cfg, err := internal.LoadStoreConfig(filepath.Join(root, internal.StoreConfigName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%s: %w", root, internal.ErrNoStore)
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s, err := NewPOSIXStore(root, POSIXStoreOptions{
		Compression: cfg.CompressionType(),
		Verify:      cfg.Verify,
		Metrics:     m,
	})
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}

func (s *POSIXStore) Root() string {
	return s.root
}

func (s *POSIXStore) SetVerify(verify bool) {
	s.verify = verify
}

// SetReadOnly marks a store on read-only media. Put and Delete fail with
// ErrReadOnly, shared locks are skipped and exclusive locks refused.
func (s *POSIXStore) SetReadOnly(readOnly bool) {
	s.readOnly = readOnly
}

// Lock takes the store-wide advisory lock, shared or exclusive, waiting up
// to timeout. Ingest holds it shared and prune exclusive, so prune never
// deletes a chunk a concurrent ingest has just deduplicated against.
func (s *POSIXStore) Lock(ctx context.Context, exclusive bool, timeout time.Duration) (unlock func(), err error) {
	l := internal.NewStoreFLock(filepath.Join(s.root, lockFileName))
	l.Readonly = s.readOnly
	if exclusive {
		if s.readOnly {
			return nil, storeWrite("lock", l.Path, ErrReadOnly)
		}
		err = l.GetLock(ctx, timeout)
	} else {
		err = l.GetRLock(ctx, timeout)
	}
	if err != nil {
		return nil, err
	}
	return l.Unlock, nil
}

// getLocalPath shards entries over two directory levels,
// e.g. abcdef... -> <root>/objects/ab/cd/abcdef...
func (s *POSIXStore) getLocalPath(d Digest) string {
	name := d.String()
	return filepath.Join(s.objects, name[0:2], name[2:4], name)
}

func (s *POSIXStore) encodeEntry(raw []byte) ([]byte, error) {
	ctype := compression.Compress_none
	payload := raw
	if s.compressor != nil {
		packed, err := s.compressor.Compress(raw)
		if err != nil {
			return nil, err
		}
		// incompressible chunks are kept raw
		if len(packed) < len(raw) {
			ctype = s.compressor.Type()
			payload = packed
		}
	}
	buf := make([]byte, entryHeaderSize, entryHeaderSize+len(payload))
	copy(buf, entryMagic)
	buf[4] = entryVersion
	buf[5] = byte(ctype)
	rawLen := internal.UInt64ToBytesLittleEndian(uint64(len(raw)))
	copy(buf[8:], rawLen[:])
	return append(buf, payload...), nil
}

func decodeEntry(d Digest, data []byte) ([]byte, error) {
	if len(data) < entryHeaderSize || string(data[:4]) != entryMagic {
		return nil, CorruptChunk(d, "bad entry header")
	}
	if data[4] != entryVersion {
		return nil, CorruptChunk(d, "unsupported entry version %d", data[4])
	}
	rawLen := internal.BytesToUInt64LittleEndian([8]byte(data[8:16]))
	payload := data[entryHeaderSize:]

	ctype := compression.CompressionType(data[5])
	c, err := compression.GetCompressorViaType(ctype)
	if err != nil {
		return nil, CorruptChunk(d, "entry compression %s: %v", ctype, err)
	}
	raw := payload
	if c != nil {
		if raw, err = c.Decompress(payload); err != nil {
			return nil, CorruptChunk(d, "%s payload: %v", ctype, err)
		}
	}
	if uint64(len(raw)) != rawLen {
		return nil, CorruptChunk(d, "entry holds %d bytes, header says %d", len(raw), rawLen)
	}
	return raw, nil
}

// Put writes the entry to a temp file in its final directory, fsyncs it and
// links it into place. A link that fails with EEXIST means another writer
// got there first, which is a dedup hit. Filesystems without hard links
// fall back to rename.
func (s *POSIXStore) Put(ctx context.Context, data []byte) (Digest, bool, error) {
	d := CalcFP(data)
	if err := ctx.Err(); err != nil {
		return d, false, err
	}
	unlock := s.locks.Lock(d)
	defer unlock()

	path := s.getLocalPath(d)
	if _, err := os.Stat(path); err == nil {
		s.metrics.ObservePut(false, len(data), 0)
		logger.Tracef("Put: %s already stored", d.Short())
		return d, false, nil
	}

	if s.readOnly {
		return d, false, storeWrite("put", path, ErrReadOnly)
	}

	entry, err := s.encodeEntry(data)
	if err != nil {
		return d, false, storeWrite("encode", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return d, false, storeWrite("mkdir", dir, err)
	}

	tmp := internal.TempName(path)
	if err := writeSynced(tmp, entry); err != nil {
		os.Remove(tmp)
		return d, false, storeWrite("write", tmp, err)
	}
	isNew := true
	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			isNew = false
		} else if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return d, false, storeWrite("rename", path, err)
		}
	}
	os.Remove(tmp)
	if err := internal.SyncDir(dir); err != nil {
		return d, false, storeWrite("sync", dir, err)
	}

	stored := 0
	if isNew {
		stored = len(entry)
	}
	s.metrics.ObservePut(isNew, len(data), stored)
	logger.Tracef("Put: %s len %d stored %d new %v", d.Short(), len(data), stored, isNew)
	return d, isNew, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := internal.WriteAll(f, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *POSIXStore) Get(ctx context.Context, d Digest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.getLocalPath(d)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(d, nil)
		}
		return nil, &PathError{Op: "read", Path: path, Err: err}
	}
	raw, err := decodeEntry(d, data)
	if err == nil && s.verify {
		if got := CalcFP(raw); got != d {
			err = CorruptChunk(d, "content hashes to %s", got.Short())
		}
	}
	if err != nil {
		s.metrics.ObserveCorrupt()
		return nil, err
	}
	s.metrics.ObserveRead(len(raw))
	return raw, nil
}

func (s *POSIXStore) Exists(ctx context.Context, d Digest) (bool, error) {
	_, err := os.Stat(s.getLocalPath(d))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *POSIXStore) Delete(ctx context.Context, d Digest) error {
	if s.readOnly {
		return storeWrite("delete", s.getLocalPath(d), ErrReadOnly)
	}
	unlock := s.locks.Lock(d)
	defer unlock()

	path := s.getLocalPath(d)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(d, nil)
		}
		return &PathError{Op: "stat", Path: path, Err: err}
	}
	if err := os.Remove(path); err != nil {
		return &PathError{Op: "delete", Path: path, Err: err}
	}
	s.metrics.ObserveDelete(info.Size())
	logger.Tracef("Delete: %s", d.Short())
	return nil
}

func (s *POSIXStore) Walk(ctx context.Context, fn func(d Digest, info os.FileInfo) error) error {
	return filepath.WalkDir(s.objects, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if de.IsDir() || strings.HasPrefix(de.Name(), tmpPrefix) {
			return nil
		}
		d, perr := ParseDigest(de.Name())
		if perr != nil {
			logger.Debugf("Walk: skipping stray file %s", path)
			return nil
		}
		info, err := de.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		} else if err != nil {
			return err
		}
		return fn(d, info)
	})
}

func (s *POSIXStore) Stats(ctx context.Context) (StoreStats, error) {
	var st StoreStats
	err := s.Walk(ctx, func(_ Digest, info os.FileInfo) error {
		st.Entries++
		st.DiskBytes += info.Size()
		return nil
	})
	return st, err
}

// Housekeep removes temp files older than grace, left by writers that died
// before linking them, and then every empty shard directory.
func (s *POSIXStore) Housekeep(ctx context.Context, grace time.Duration) (int, error) {
	var dirs []string
	removed := 0
	cutoff := time.Now().Add(-grace)
	err := filepath.WalkDir(s.objects, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if de.IsDir() {
			if path != s.objects {
				dirs = append(dirs, path)
			}
			return nil
		}
		if !strings.HasPrefix(de.Name(), tmpPrefix) {
			return nil
		}
		info, err := de.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
			logger.Debugf("Housekeep: removed stale temp file %s", path)
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	// children come after their parents in walk order
	for i := len(dirs) - 1; i >= 0; i-- {
		if entries, err := os.ReadDir(dirs[i]); err == nil && len(entries) == 0 {
			os.Remove(dirs[i])
		}
	}
	return removed, nil
}
