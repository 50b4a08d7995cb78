// Package catalog records which manifests exist, so that prune can find
// every live chunk without being told where the manifests are. Each entry
// keeps a copy of the manifest itself, so moving or deleting the .cdc file
// does not release its chunks; only Forget does.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/zhengshuai-xiao/git-fastcdc/internal"
	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

var logger = internal.GetLogger("catalog")

// DirName is the catalog directory inside a store root.
const DirName = "catalog"

const (
	manifestPrefix = "m/"
	openRetry      = 50 * time.Millisecond
)

var ErrNotRegistered = fmt.Errorf("manifest not registered: %w", dedup.ErrNotFound)

type Catalog struct {
	db  *badger.DB
	dir string
}

// badgerLogger routes badger's messages to our logger one level down;
// badger reports routine compaction work at info level.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{})   { logger.Errorf(format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { logger.Warnf(format, args...) }
func (badgerLogger) Infof(format string, args ...interface{})    { logger.Debugf(format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{})   { logger.Tracef(format, args...) }

// Open opens the catalog of the store at root. Only one process can hold
// a catalog open; Open waits up to timeout for another to close it.
func Open(ctx context.Context, root string, timeout time.Duration) (*Catalog, error) {
	return open(ctx, root, timeout, false)
}

// OpenReadOnly opens the catalog for lookups only, for stores on read-only
// media. Any number of read-only handles can be open at once.
func OpenReadOnly(ctx context.Context, root string, timeout time.Duration) (*Catalog, error) {
	return open(ctx, root, timeout, true)
}

func open(ctx context.Context, root string, timeout time.Duration, readOnly bool) (*Catalog, error) {
	dir := filepath.Join(root, DirName)
	opts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{}).
		WithSyncWrites(true).
		WithValueLogFileSize(16 << 20).
		WithNumVersionsToKeep(1).
		WithReadOnly(readOnly)

	deadline := time.Now().Add(timeout)
	for {
		db, err := badger.Open(opts)
		if err == nil {
			logger.Debugf("opened catalog %s (read-only %t)", dir, readOnly)
			return &Catalog{db: db, dir: dir}, nil
		}
		if !isLocked(err) || !time.Now().Before(deadline) {
			return nil, fmt.Errorf("open catalog %s: %w", dir, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(openRetry):
		}
	}
}

// isLocked reports whether badger failed to open because another process
// holds the directory lock. Badger formats that error without wrapping the
// flock errno, so only its message identifies it.
func isLocked(err error) bool {
	return strings.Contains(err.Error(), "Cannot acquire directory lock")
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func key(path string) ([]byte, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	return []byte(manifestPrefix + abs), abs, nil
}

// Register records m under path, replacing any earlier manifest there.
func (c *Catalog) Register(path string, m *dedup.Manifest) error {
	k, abs, err := key(path)
	if err != nil {
		return err
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, m.Serialize())
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", abs, err)
	}
	logger.Debugf("registered %s (%d entries)", abs, len(m.Entries))
	return nil
}

// Forget drops the manifest registered under path. Its chunks become
// garbage unless another manifest references them.
func (c *Catalog) Forget(path string) error {
	k, abs, err := key(path)
	if err != nil {
		return err
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", abs, ErrNotRegistered)
	}
	if err != nil {
		return fmt.Errorf("forget %s: %w", abs, err)
	}
	logger.Debugf("forgot %s", abs)
	return nil
}

// Lookup returns the manifest registered under path, or ErrNotRegistered.
func (c *Catalog) Lookup(path string) (*dedup.Manifest, error) {
	k, abs, err := key(path)
	if err != nil {
		return nil, err
	}
	var m *dedup.Manifest
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			m, err = dedup.Deserialize(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotRegistered)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", abs, err)
	}
	return m, nil
}

// Each calls fn for every registered manifest in path order. It makes the
// catalog a dedup.ManifestSource.
func (c *Catalog) Each(ctx context.Context, fn func(name string, m *dedup.Manifest) error) error {
	prefix := []byte(manifestPrefix)
	return c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			var m *dedup.Manifest
			err := item.Value(func(val []byte) error {
				var err error
				m, err = dedup.Deserialize(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("catalog entry %s: %w", name, err)
			}
			if err := fn(name, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// Paths lists the registered manifest paths.
func (c *Catalog) Paths() ([]string, error) {
	var paths []string
	prefix := []byte(manifestPrefix)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			paths = append(paths, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return paths, err
}
