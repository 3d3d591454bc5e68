package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trieloff/scriptrag/internal/search"
	"github.com/trieloff/scriptrag/internal/store"
)

func TestFormatSearchResults_NoMatches(t *testing.T) {
	out := FormatSearchResults("kitchen", &search.Result{})
	assert.Contains(t, out, "No results found")
	assert.Contains(t, out, "kitchen")
}

func TestFormatSearchResults_NilResult(t *testing.T) {
	out := FormatSearchResults("kitchen", nil)
	assert.Contains(t, out, "No results found")
}

func TestFormatSearchResults_ScenesAndBibles(t *testing.T) {
	result := &search.Result{
		Scenes: []search.SceneResult{
			{
				Scene:     store.SceneRow{SceneNumber: 3, Heading: "INT. KITCHEN - DAY", Content: "Alice makes coffee."},
				Script:    store.ScriptRow{Title: "The Pilot"},
				Score:     4.0,
				MatchKind: "dialogue",
			},
		},
		Bibles: []search.BibleResult{
			{
				Chunk:  store.BibleChunkRow{Heading: "Alice", Content: "The protagonist."},
				Script: store.ScriptRow{Title: "The Pilot"},
				Score:  10.0,
			},
		},
		Total:   2,
		Methods: []string{"sql"},
	}

	out := FormatSearchResults("alice", result)
	assert.Contains(t, out, "Found 1 scene")
	assert.Contains(t, out, "1 bible passage")
	assert.Contains(t, out, "The Pilot")
	assert.Contains(t, out, "INT. KITCHEN - DAY")
	assert.Contains(t, out, "Alice makes coffee.")
	assert.Contains(t, out, "The protagonist.")
	assert.Contains(t, out, "sql")
}

func TestFormatSearchResults_MarksSemanticMatches(t *testing.T) {
	result := &search.Result{
		Scenes: []search.SceneResult{
			{
				Scene:      store.SceneRow{SceneNumber: 1, Heading: "INT. OFFICE - DAY"},
				Script:     store.ScriptRow{Title: "The Pilot"},
				FromVector: true,
			},
		},
		Total:   1,
		Methods: []string{"sql", "semantic"},
	}

	out := FormatSearchResults("office", result)
	assert.Contains(t, out, "semantic")
	assert.Contains(t, out, "sql+semantic")
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 20, clampLimit(0, 20, 1, 200))
	assert.Equal(t, 1, clampLimit(-5, 20, 1, 200))
	assert.Equal(t, 200, clampLimit(1000, 20, 1, 200))
	assert.Equal(t, 50, clampLimit(50, 20, 1, 200))
}

func TestToSceneResultOutput(t *testing.T) {
	r := search.SceneResult{
		Scene:     store.SceneRow{SceneNumber: 5, Heading: "EXT. PARK - NIGHT", Content: "Bob walks."},
		Script:    store.ScriptRow{Title: "The Pilot"},
		Score:     2.5,
		MatchKind: "action",
	}
	out := toSceneResultOutput(r)
	assert.Equal(t, "The Pilot", out.Project)
	assert.Equal(t, 5, out.SceneNumber)
	assert.Equal(t, "EXT. PARK - NIGHT", out.Heading)
	assert.Equal(t, "action", out.MatchKind)
}

func TestToBibleResultOutput(t *testing.T) {
	r := search.BibleResult{
		Chunk:  store.BibleChunkRow{Heading: "Locations", Content: "The office is downtown."},
		Script: store.ScriptRow{Title: "The Pilot"},
		Score:  7.0,
	}
	out := toBibleResultOutput(r)
	assert.Equal(t, "The Pilot", out.Project)
	assert.Equal(t, "Locations", out.Heading)
	assert.Equal(t, 7.0, out.Score)
}
