package internal

import (
	"context"
	"fmt"
	"os"
	"time"
)

// StoreFLock is the store-wide advisory lock on <root>/lock. Writers that
// only add entries share it; prune takes it exclusively.
type StoreFLock struct {
	Path string
	// Readonly turns every operation into a no-op, for stores on read-only
	// media where the lock file cannot be created.
	Readonly bool

	f *os.File
}

const flockRetryInterval = 5 * time.Millisecond

func NewStoreFLock(path string) *StoreFLock {
	return &StoreFLock{Path: path}
}

// GetLock takes the lock exclusively, retrying until timeout (0 means a
// single attempt) or ctx is done.
func (j *StoreFLock) GetLock(ctx context.Context, timeout time.Duration) error {
	return j.getFlockWithTimeOut(ctx, true, timeout)
}

// GetRLock takes the lock shared.
func (j *StoreFLock) GetRLock(ctx context.Context, timeout time.Duration) error {
	return j.getFlockWithTimeOut(ctx, false, timeout)
}

func (j *StoreFLock) getFlockWithTimeOut(ctx context.Context, exclusive bool, timeout time.Duration) error {
	if j.Readonly {
		return nil
	}
	if j.f != nil {
		return fmt.Errorf("lock %s already held", j.Path)
	}
	f, err := os.OpenFile(j.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	lockStr := "shared"
	if exclusive {
		lockStr = "exclusive"
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := tryFlock(f, exclusive)
		if err != nil {
			f.Close()
			return fmt.Errorf("flock %s: %w", j.Path, err)
		}
		if ok {
			j.f = f
			logger.Tracef("took %s lock on %s", lockStr, j.Path)
			return nil
		}
		if !time.Now().Before(deadline) {
			f.Close()
			return fmt.Errorf("get %s lock on %s: %w", lockStr, j.Path, ErrLocked)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return ctx.Err()
		case <-time.After(flockRetryInterval):
		}
	}
}

// Unlock releases whichever lock is held. Closing the descriptor drops the
// flock as well.
func (j *StoreFLock) Unlock() {
	if j.Readonly || j.f == nil {
		return
	}
	if err := unFlock(j.f); err != nil {
		logger.Warnf("release lock %s: %v", j.Path, err)
	}
	j.f.Close()
	j.f = nil
}
