//go:build unix

package internal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreFLockSharedAndExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	ctx := context.Background()

	a, b := NewStoreFLock(path), NewStoreFLock(path)
	require.NoError(t, a.GetRLock(ctx, 0))
	require.NoError(t, b.GetRLock(ctx, 0), "shared holders coexist")

	excl := NewStoreFLock(path)
	err := excl.GetLock(ctx, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLocked)

	a.Unlock()
	b.Unlock()
	require.NoError(t, excl.GetLock(ctx, time.Second))

	reader := NewStoreFLock(path)
	assert.ErrorIs(t, reader.GetRLock(ctx, 0), ErrLocked)
	excl.Unlock()
	assert.NoError(t, reader.GetRLock(ctx, 0))
	reader.Unlock()
}

func TestStoreFLockContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	holder := NewStoreFLock(path)
	require.NoError(t, holder.GetLock(context.Background(), 0))
	defer holder.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewStoreFLock(path).GetLock(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStoreFLockReadonly(t *testing.T) {
	l := &StoreFLock{Path: filepath.Join(t.TempDir(), "missing", "lock"), Readonly: true}
	assert.NoError(t, l.GetLock(context.Background(), 0))
	l.Unlock()
}
