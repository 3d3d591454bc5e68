package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearchFixture(t *testing.T, s *Store) int64 {
	t.Helper()
	ctx := context.Background()

	scriptID, err := s.SaveScript(ctx, &ScriptRow{Title: "The Pilot", FilePath: "shows/pilot/pilot.fountain"})
	require.NoError(t, err)

	sceneID, err := s.SaveScene(ctx, &SceneRow{
		ScriptID: scriptID, SceneNumber: 1, Heading: "INT. OFFICE - DAY",
		Location: "OFFICE", TimeOfDay: "DAY", Content: "Alice reviews the quarterly numbers.",
		ContentHash: "a", BoneyardMetaJSON: "{}",
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveDialogue(ctx, sceneID, []DialogueRow{
		{SceneID: sceneID, Character: "ALICE", Text: "We need to ship the rocket by Friday.", OrderInScene: 1},
	}))
	require.NoError(t, s.SaveAction(ctx, sceneID, []ActionRow{
		{SceneID: sceneID, Text: "Alice paces by the window.", OrderInScene: 1},
	}))

	_, err = s.SaveScene(ctx, &SceneRow{
		ScriptID: scriptID, SceneNumber: 2, Heading: "EXT. LAUNCH PAD - NIGHT",
		Location: "LAUNCH PAD", TimeOfDay: "NIGHT", Content: "The rocket stands ready.",
		ContentHash: "b", BoneyardMetaJSON: "{}",
	})
	require.NoError(t, err)

	return scriptID
}

func TestSearchScenes_MatchesDialogueAboveAction(t *testing.T) {
	s := openTestStore(t)
	seedSearchFixture(t, s)

	matches, total, err := s.SearchScenes(context.Background(), SceneFilter{TextQuery: "rocket", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, matches, 2)
	assert.Equal(t, "dialogue", matches[0].MatchKind)
	assert.True(t, matches[0].Score >= matches[1].Score)
}

func TestSearchScenes_FiltersByCharacter(t *testing.T) {
	s := openTestStore(t)
	seedSearchFixture(t, s)

	matches, total, err := s.SearchScenes(context.Background(), SceneFilter{Characters: []string{"ALICE"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].Scene.SceneNumber)
}

func TestSearchScenes_FiltersByLocation(t *testing.T) {
	s := openTestStore(t)
	seedSearchFixture(t, s)

	matches, _, err := s.SearchScenes(context.Background(), SceneFilter{Locations: []string{"LAUNCH PAD"}, Limit: 10})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].Scene.SceneNumber)
}

func TestSearchScenes_RespectsLimit(t *testing.T) {
	s := openTestStore(t)
	seedSearchFixture(t, s)

	matches, total, err := s.SearchScenes(context.Background(), SceneFilter{TextQuery: "rocket", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, matches, 1)
}

func TestSearchScenes_NoMatches(t *testing.T) {
	s := openTestStore(t)
	seedSearchFixture(t, s)

	matches, total, err := s.SearchScenes(context.Background(), SceneFilter{TextQuery: "nonexistentterm", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, matches)
}

func TestSearchBibleChunks_MatchesTextQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	scriptID := seedSearchFixture(t, s)

	bibleID, err := s.SaveBible(ctx, &BibleRow{ScriptID: scriptID, FilePath: "bible.md", Title: "Series Bible", FileHash: "h"})
	require.NoError(t, err)
	require.NoError(t, s.SaveBibleChunks(ctx, bibleID, []BibleChunkRow{
		{BibleID: bibleID, ChunkNumber: 1, Heading: "Alice", Content: "Alice is the lead engineer on the rocket program."},
	}))

	matches, total, err := s.SearchBibleChunks(ctx, SceneFilter{TextQuery: "rocket program", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, matches, 1)
	assert.Equal(t, "Alice", matches[0].Chunk.Heading)
}

func TestGetSceneByID_ResolvesRow(t *testing.T) {
	s := openTestStore(t)
	scriptID := seedSearchFixture(t, s)

	scene, err := s.GetScene(context.Background(), scriptID, 1)
	require.NoError(t, err)

	byID, err := s.GetSceneByID(context.Background(), scene.ID)
	require.NoError(t, err)
	assert.Equal(t, scene.Heading, byID.Heading)
}

func TestGetSceneByID_UnknownIDReturnsNil(t *testing.T) {
	s := openTestStore(t)

	byID, err := s.GetSceneByID(context.Background(), 999999)
	require.NoError(t, err)
	assert.Nil(t, byID)
}
