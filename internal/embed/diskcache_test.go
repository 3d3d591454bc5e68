package embed

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentCache_PutGetRoundTrip(t *testing.T) {
	cache, err := NewContentCache(t.TempDir())
	require.NoError(t, err)

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, cache.Put("model-a", "hello", vec))

	got, ok, err := cache.Get("model-a", "hello")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestContentCache_MissReturnsFalse(t *testing.T) {
	cache, err := NewContentCache(t.TempDir())
	require.NoError(t, err)

	_, ok, err := cache.Get("model-a", "never written")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContentCache_KeyedByModelAndText(t *testing.T) {
	cache, err := NewContentCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Put("model-a", "text", []float32{1, 2}))
	_, ok, err := cache.Get("model-b", "text")
	require.NoError(t, err)
	assert.False(t, ok, "different model must not share a cache entry")
}

func TestContentCache_Size(t *testing.T) {
	cache, err := NewContentCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Put("m", "a", []float32{1, 2, 3}))
	require.NoError(t, cache.Put("m", "b", []float32{1, 2, 3, 4}))

	count, bytes, err := cache.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(4+3*4)+int64(4+4*4), bytes)
}

func TestContentCache_Clear(t *testing.T) {
	cache, err := NewContentCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, cache.Put("m", "a", []float32{1}))
	require.NoError(t, cache.Clear())

	count, _, err := cache.Size()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestContentCache_CleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewContentCache(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Put("m", "fresh", []float32{1}))
	require.NoError(t, cache.Put("m", "stale", []float32{1}))

	staleFile := cache.pathFor(cacheKey("m", "stale"))
	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(staleFile, old, old))

	removed, err := cache.CleanupOlderThan(5)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := cache.Get("m", "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = cache.Get("m", "stale")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeVector_RejectsTruncated(t *testing.T) {
	_, err := decodeVector([]byte{1, 2})
	require.Error(t, err)
}

func TestDecodeVector_RejectsOversizedDimensions(t *testing.T) {
	buf := encodeVector(make([]float32, 1))
	buf[0] = 0xFF
	buf[1] = 0xFF
	buf[2] = 0xFF
	buf[3] = 0xFF
	_, err := decodeVector(buf)
	require.Error(t, err)
}
