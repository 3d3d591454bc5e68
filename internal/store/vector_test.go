package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWIndex_StoreAndSearchSimilar(t *testing.T) {
	idx := NewHNSWIndex("")
	defer idx.Close()

	require.NoError(t, idx.Store(EntityScene, 1, "static-768", []float32{1, 0, 0}))
	require.NoError(t, idx.Store(EntityScene, 2, "static-768", []float32{0, 1, 0}))
	require.NoError(t, idx.Store(EntityScene, 3, "static-768", []float32{0.9, 0.1, 0}))

	results, err := idx.SearchSimilar(EntityScene, "static-768", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].EntityID)
}

func TestHNSWIndex_DistinctModelGraphsAreIsolated(t *testing.T) {
	idx := NewHNSWIndex("")
	defer idx.Close()

	require.NoError(t, idx.Store(EntityScene, 1, "model-a", []float32{1, 0}))

	results, err := idx.SearchSimilar(EntityScene, "model-b", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWIndex_DeleteRemovesFromResults(t *testing.T) {
	idx := NewHNSWIndex("")
	defer idx.Close()

	require.NoError(t, idx.Store(EntityScene, 1, "m", []float32{1, 0}))
	require.NoError(t, idx.Delete(EntityScene, 1))

	results, err := idx.SearchSimilar(EntityScene, "m", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWIndex_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.idx")

	idx := NewHNSWIndex(path)
	require.NoError(t, idx.Store(EntityScene, 1, "m", []float32{1, 0, 0}))
	require.NoError(t, idx.Store(EntityBibleChunk, 2, "m", []float32{0, 1, 0}))
	require.NoError(t, idx.Save())
	require.NoError(t, idx.Close())

	reloaded := NewHNSWIndex(path)
	require.NoError(t, reloaded.Load())
	defer reloaded.Close()

	results, err := reloaded.SearchSimilar(EntityScene, "m", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].EntityID)
}

func TestDistanceToScore_CosineRange(t *testing.T) {
	assert.InDelta(t, 1.0, distanceToScore(0), 1e-6)
	assert.InDelta(t, 0.0, distanceToScore(2), 1e-6)
	assert.InDelta(t, 0.5, distanceToScore(1), 1e-6)
}

func TestEncodeDecodeEmbeddingBlob_RoundTrip(t *testing.T) {
	vec := []float32{0.1, -0.2, 0.3, 1.0}
	blob := EncodeEmbeddingBlob(vec)
	decoded, err := DecodeEmbeddingBlob(blob)
	require.NoError(t, err)
	require.Len(t, decoded, len(vec))
	for i := range vec {
		assert.InDelta(t, vec[i], decoded[i], 1e-6)
	}
}

func TestMigrateFromBlobStorage(t *testing.T) {
	idx := NewHNSWIndex("")
	defer idx.Close()

	rows := []BlobEmbeddingRow{
		{EntityType: EntityScene, EntityID: 1, Model: "m", Vector: EncodeEmbeddingBlob([]float32{1, 0})},
		{EntityType: EntityScene, EntityID: 2, Model: "m", Vector: EncodeEmbeddingBlob([]float32{0, 1})},
	}
	n, err := idx.MigrateFromBlobStorage(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := idx.SearchSimilar(EntityScene, "m", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
}
