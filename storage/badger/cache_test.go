package badger

import (
	"context"
	"testing"

	"github.com/poiesic/projectsearch/core"
	"github.com/poiesic/projectsearch/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache_PutGet(t *testing.T) {
	cache, err := NewMemoryCache()
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	fp := core.Fingerprint(0xdeadbeef)
	vec := []float32{0.1, -0.2, 0.3}

	require.NoError(t, cache.Put(ctx, fp, vec))

	got, err := cache.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	// Overwrite replaces the vector.
	require.NoError(t, cache.Put(ctx, fp, []float32{1}))
	got, err = cache.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, got)
}

func TestEmbeddingCache_Missing(t *testing.T) {
	cache, err := NewMemoryCache()
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Get(context.Background(), core.Fingerprint(42))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEmbeddingCache_DeleteAndCount(t *testing.T) {
	cache, err := NewMemoryCache()
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, cache.Put(ctx, core.Fingerprint(i), []float32{float32(i)}))
	}

	count, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, cache.Delete(ctx, core.Fingerprint(2)))
	require.NoError(t, cache.Delete(ctx, core.Fingerprint(99)), "deleting a missing entry is not an error")

	count, err = cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = cache.Get(ctx, core.Fingerprint(2))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEmbeddingCache_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	page := &core.Summer2025Page{URL: "https://summer.hackclub.com/projects/3", Name: "robot"}
	fp := core.FingerprintOf(page)

	cache, err := OpenEmbeddingCache(dir)
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, fp, []float32{4, 5, 6}))
	require.NoError(t, cache.Close())

	reopened, err := OpenEmbeddingCache(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, got)
}

func TestEmbeddingCache_SharedBackend(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	cache := NewEmbeddingCache(backend)
	require.NoError(t, cache.Close())
	assert.False(t, backend.IsClosed(), "cache does not close a backend it did not open")
}

func TestEmbeddingCache_Closed(t *testing.T) {
	cache, err := NewMemoryCache()
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	ctx := context.Background()
	_, err = cache.Get(ctx, core.Fingerprint(1))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, cache.Put(ctx, core.Fingerprint(1), []float32{1}), storage.ErrStorageClosed)
}

func TestMakeEmbeddingKey_Ordering(t *testing.T) {
	a := makeEmbeddingKey(core.Fingerprint(1))
	b := makeEmbeddingKey(core.Fingerprint(256))

	assert.Len(t, a, len(embeddingPrefix)+8)
	assert.Less(t, string(a), string(b))
}
