package dedup

import (
	"context"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zhengshuai-xiao/git-fastcdc/internal/compression"
)

// setupTestStore creates a verifying POSIXStore in a temporary directory.
// It returns the store and a teardown function that removes the directory.
func setupTestStore(t *testing.T, ctype compression.CompressionType) (*POSIXStore, func()) {
	root, err := os.MkdirTemp("", "dedup-test-store-")
	require.NoError(t, err)

	store, err := NewPOSIXStore(root, POSIXStoreOptions{Compression: ctype, Verify: true})
	require.NoError(t, err)

	teardown := func() {
		os.RemoveAll(root)
	}
	return store, teardown
}

// randomBytes returns deterministic pseudo-random data.
func randomBytes(seed int64, n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(data)
	return data
}

// testChunking is the 4/16/64 KiB configuration used by the end-to-end
// scenarios.
var testChunking = Chunking{MinSize: 4 << 10, AvgSize: 16 << 10, MaxSize: 64 << 10, Normalization: 2}

// MockStore is a mock implementation of the ChunkStore interface for testing.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Put(ctx context.Context, data []byte) (Digest, bool, error) {
	args := m.Called(ctx, data)
	return args.Get(0).(Digest), args.Bool(1), args.Error(2)
}

func (m *MockStore) Get(ctx context.Context, d Digest) ([]byte, error) {
	args := m.Called(ctx, d)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockStore) Exists(ctx context.Context, d Digest) (bool, error) {
	args := m.Called(ctx, d)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, d Digest) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockStore) Walk(ctx context.Context, fn func(d Digest, info os.FileInfo) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *MockStore) Stats(ctx context.Context) (StoreStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(StoreStats), args.Error(1)
}
