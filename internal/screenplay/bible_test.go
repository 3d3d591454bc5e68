package screenplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkBible_HeadingTree(t *testing.T) {
	doc := `# World

Overview of the world.

## Characters

### Alice

Protagonist.

### Bob

Antagonist.

## Locations

The office building.
`

	chunks := ChunkBible(doc)
	require.Len(t, chunks, 5)

	byHeading := map[string]*BibleChunk{}
	for _, c := range chunks {
		byHeading[c.Heading] = c
	}

	world := byHeading["World"]
	require.NotNil(t, world)
	assert.Nil(t, world.ParentChunkID)
	assert.Equal(t, 1, world.Level)

	characters := byHeading["Characters"]
	require.NotNil(t, characters)
	require.NotNil(t, characters.ParentChunkID)
	assert.Equal(t, world.ChunkNumber, int(*characters.ParentChunkID))

	alice := byHeading["Alice"]
	require.NotNil(t, alice)
	require.NotNil(t, alice.ParentChunkID)
	assert.Equal(t, characters.ChunkNumber, int(*alice.ParentChunkID))

	locations := byHeading["Locations"]
	require.NotNil(t, locations)
	require.NotNil(t, locations.ParentChunkID)
	assert.Equal(t, world.ChunkNumber, int(*locations.ParentChunkID))

	// Parents always precede their children in chunk-number order.
	for _, c := range chunks {
		if c.ParentChunkID != nil {
			assert.Less(t, int(*c.ParentChunkID), c.ChunkNumber)
		}
	}
}

func TestChunkBible_Empty(t *testing.T) {
	assert.Nil(t, ChunkBible(""))
	assert.Nil(t, ChunkBible("   \n  "))
}

func TestChunkBible_NoHeadings(t *testing.T) {
	chunks := ChunkBible("Just a paragraph of prose with no headings.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Level)
	assert.Nil(t, chunks[0].ParentChunkID)
}
