package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengshuai-xiao/git-fastcdc/pkg/dedup"
)

var _ dedup.ManifestSource = (*Catalog)(nil)

func setupTestCatalog(t *testing.T) (*Catalog, string, func()) {
	root, err := os.MkdirTemp("", "catalog-test-")
	require.NoError(t, err)

	c, err := Open(context.Background(), root, 0)
	require.NoError(t, err)

	teardown := func() {
		c.Close()
		os.RemoveAll(root)
	}
	return c, root, teardown
}

func testManifest(t *testing.T, parts ...string) *dedup.Manifest {
	entries := make([]dedup.Entry, len(parts))
	for i, p := range parts {
		entries[i] = dedup.Entry{Digest: dedup.CalcFP([]byte(p)), Length: uint64(len(p))}
	}
	m, err := dedup.Build(dedup.Chunking{MinSize: 1, AvgSize: 2, MaxSize: 3, Normalization: 2}, entries)
	require.NoError(t, err)
	return m
}

func TestCatalogOperations(t *testing.T) {
	c, root, teardown := setupTestCatalog(t)
	defer teardown()
	ctx := context.Background()

	a := testManifest(t, "alpha", "beta")
	b := testManifest(t, "gamma")
	pathA := filepath.Join(root, "a.iso.cdc")
	pathB := filepath.Join(root, "dir", "b.iso.cdc")

	t.Run("RegisterAndLookup", func(t *testing.T) {
		require.NoError(t, c.Register(pathA, a))
		require.NoError(t, c.Register(pathB, b))

		got, err := c.Lookup(pathA)
		require.NoError(t, err)
		assert.True(t, a.Equal(got))

		paths, err := c.Paths()
		require.NoError(t, err)
		assert.Equal(t, []string{pathA, pathB}, paths)
	})

	t.Run("RegisterReplaces", func(t *testing.T) {
		require.NoError(t, c.Register(pathB, a))
		got, err := c.Lookup(pathB)
		require.NoError(t, err)
		assert.True(t, a.Equal(got))
		require.NoError(t, c.Register(pathB, b))
	})

	t.Run("Each", func(t *testing.T) {
		seen := map[string]*dedup.Manifest{}
		err := c.Each(ctx, func(name string, m *dedup.Manifest) error {
			seen[name] = m
			return nil
		})
		require.NoError(t, err)
		require.Len(t, seen, 2)
		assert.True(t, a.Equal(seen[pathA]))
		assert.True(t, b.Equal(seen[pathB]))

		live, n, err := dedup.LiveSet(ctx, []dedup.ManifestSource{c})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 3, live.Len())
	})

	t.Run("Forget", func(t *testing.T) {
		require.NoError(t, c.Forget(pathA))
		_, err := c.Lookup(pathA)
		assert.ErrorIs(t, err, ErrNotRegistered)
		assert.ErrorIs(t, err, dedup.ErrNotFound)

		err = c.Forget(pathA)
		assert.ErrorIs(t, err, ErrNotRegistered)

		paths, err := c.Paths()
		require.NoError(t, err)
		assert.Equal(t, []string{pathB}, paths)
	})

	t.Run("RelativePaths", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, c.Register("rel.cdc", a))
		_, err = c.Lookup(filepath.Join(wd, "rel.cdc"))
		assert.NoError(t, err)
		require.NoError(t, c.Forget("rel.cdc"))
	})

	t.Run("CancelledEach", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := c.Each(cancelled, func(string, *dedup.Manifest) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCatalogPersists(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	m := testManifest(t, "persisted")

	c, err := Open(ctx, root, 0)
	require.NoError(t, err)
	require.NoError(t, c.Register("/data/x.cdc", m))

	_, err = Open(ctx, root, 100*time.Millisecond)
	assert.Error(t, err, "a second opener waits and then gives up")
	require.NoError(t, c.Close())

	c, err = Open(ctx, root, 0)
	require.NoError(t, err)
	defer c.Close()
	got, err := c.Lookup("/data/x.cdc")
	require.NoError(t, err)
	assert.True(t, m.Equal(got))
}

func TestCatalogReadOnly(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	m := testManifest(t, "archived")

	c, err := Open(ctx, root, 0)
	require.NoError(t, err)
	require.NoError(t, c.Register("/data/archive.cdc", m))
	require.NoError(t, c.Close())

	first, err := OpenReadOnly(ctx, root, 0)
	require.NoError(t, err)
	defer first.Close()
	second, err := OpenReadOnly(ctx, root, 0)
	require.NoError(t, err, "read-only handles share the directory")
	defer second.Close()

	got, err := second.Lookup("/data/archive.cdc")
	require.NoError(t, err)
	assert.True(t, m.Equal(got))
	_, err = first.Lookup("/data/other.cdc")
	assert.ErrorIs(t, err, ErrNotRegistered)

	assert.Error(t, first.Register("/data/new.cdc", m))
	assert.Error(t, first.Forget("/data/archive.cdc"))
}

// TestCatalogKeepsChunksAlive shows that a registered manifest protects its
// chunks from prune even after its file is gone.
func TestCatalogKeepsChunksAlive(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := dedup.NewPOSIXStore(root, dedup.POSIXStoreOptions{Verify: true})
	require.NoError(t, err)
	c, err := Open(ctx, root, 0)
	require.NoError(t, err)
	defer c.Close()

	ing := &dedup.Ingester{Store: store, CDC: &dedup.FixedCDC{ChunkSize: 4}}
	m, _, err := ing.Ingest(ctx, bytes.NewReader([]byte("aaaabbbbcccc")))
	require.NoError(t, err)
	require.NoError(t, c.Register(filepath.Join(root, "gone.cdc"), m))
	_, _, err = ing.Ingest(ctx, bytes.NewReader([]byte("dddd")))
	require.NoError(t, err)

	// a negative grace period puts every entry in the past
	stats, err := dedup.Prune(ctx, store, []dedup.ManifestSource{c}, dedup.PruneOptions{GracePeriod: -time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	var out bytes.Buffer
	_, err = dedup.NewAssembler(store).Assemble(ctx, m, &out)
	require.NoError(t, err)
	assert.Equal(t, "aaaabbbbcccc", out.String())
}
