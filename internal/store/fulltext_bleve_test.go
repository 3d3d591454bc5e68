package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveFullText_IndexAndSearch(t *testing.T) {
	idx, err := NewBleveFullText("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []FullTextDocument{
		{EntityType: EntityScene, EntityID: 1, Kind: "body", Text: "Alice confronts the detective in the warehouse."},
		{EntityType: EntityScene, EntityID: 2, Kind: "body", Text: "Bob bakes bread in a quiet kitchen."},
	}))

	results, err := idx.Search(ctx, "detective", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].Doc.EntityID)
}

func TestBleveFullText_Delete(t *testing.T) {
	idx, err := NewBleveFullText("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []FullTextDocument{
		{EntityType: EntityScene, EntityID: 1, Kind: "body", Text: "warehouse confrontation"},
	}))
	require.NoError(t, idx.Delete(ctx, EntityScene, 1))

	results, err := idx.Search(ctx, "warehouse", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
