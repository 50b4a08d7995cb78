package internal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempName returns a hidden, collision-free sibling name for path.
func TempName(path string) string {
	return filepath.Join(filepath.Dir(path), ".tmp-"+uuid.NewString())
}

func WriteAll(file *os.File, buf []byte) (int, error) {
	total := 0
	remaining := len(buf)
	for remaining > 0 {
		n, err := file.Write(buf[total:])
		if err != nil {
			return total, fmt.Errorf("failed to write file: %w", err)
		}

		total += n
		remaining -= n
	}

	return total, nil
}

// WriteFileAtomic writes data to a temp file next to path, fsyncs it and
// renames it over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	_, err := WriteReaderToFile(path, func(f *os.File) (int64, error) {
		n, err := WriteAll(f, data)
		return int64(n), err
	}, perm)
	return err
}

// CopyToFileAtomic is WriteFileAtomic for a stream.
func CopyToFileAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	return WriteReaderToFile(path, func(f *os.File) (int64, error) {
		return io.Copy(f, r)
	}, perm)
}

// WriteReaderToFile runs fill against a fresh temp file and publishes it at
// path only when fill and fsync succeed. The temp file never outlives a
// failure.
func WriteReaderToFile(path string, fill func(*os.File) (int64, error), perm os.FileMode) (n int64, err error) {
	tmp := TempName(path)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if n, err = fill(f); err != nil {
		return n, err
	}
	if err = f.Sync(); err != nil {
		return n, err
	}
	if err = f.Close(); err != nil {
		return n, err
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return n, err
	}
	return n, SyncDir(filepath.Dir(path))
}

// SyncDir fsyncs a directory so that a rename or link inside it is durable.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !os.IsPermission(err) {
		return err
	}
	return nil
}
