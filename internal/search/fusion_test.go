package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trieloff/scriptrag/internal/store"
)

func TestMergeVectorHits_KeepsBestScorePerScene(t *testing.T) {
	sql := []SceneResult{
		{Scene: store.SceneRow{ID: 1, SceneNumber: 1}, Score: 2},
	}
	vecHits := map[int64]float64{1: 9}

	merged := mergeVectorHits(sql, vecHits, func(int64) (*SceneResult, bool) {
		t.Fatal("hydrate should not be called for an already-present scene")
		return nil, false
	})

	assert.Len(t, merged, 1)
	assert.Equal(t, float64(9), merged[0].Score)
}

func TestMergeVectorHits_HydratesNewSceneIDs(t *testing.T) {
	sql := []SceneResult{
		{Scene: store.SceneRow{ID: 1, SceneNumber: 1}, Score: 5},
	}
	vecHits := map[int64]float64{2: 3}

	merged := mergeVectorHits(sql, vecHits, func(sceneID int64) (*SceneResult, bool) {
		assert.Equal(t, int64(2), sceneID)
		return &SceneResult{Scene: store.SceneRow{ID: 2, SceneNumber: 2}}, true
	})

	assert.Len(t, merged, 2)
	assert.Equal(t, int64(1), merged[0].Scene.ID)
	assert.Equal(t, int64(2), merged[1].Scene.ID)
	assert.True(t, merged[1].FromVector)
}

func TestMergeVectorHits_DropsUnhydratableHits(t *testing.T) {
	vecHits := map[int64]float64{404: 1}

	merged := mergeVectorHits(nil, vecHits, func(int64) (*SceneResult, bool) {
		return nil, false
	})

	assert.Empty(t, merged)
}

func TestCompareSceneResults_OrdersByScoreThenScriptThenSceneNumber(t *testing.T) {
	high := SceneResult{Score: 9}
	low := SceneResult{Score: 1}
	assert.True(t, compareSceneResults(high, low))
	assert.False(t, compareSceneResults(low, high))

	sameScoreEarlierScript := SceneResult{Score: 5, Script: store.ScriptRow{ID: 1}}
	sameScoreLaterScript := SceneResult{Score: 5, Script: store.ScriptRow{ID: 2}}
	assert.True(t, compareSceneResults(sameScoreEarlierScript, sameScoreLaterScript))

	earlierScene := SceneResult{Score: 5, Script: store.ScriptRow{ID: 1}, Scene: store.SceneRow{SceneNumber: 1}}
	laterScene := SceneResult{Score: 5, Script: store.ScriptRow{ID: 1}, Scene: store.SceneRow{SceneNumber: 2}}
	assert.True(t, compareSceneResults(earlierScene, laterScene))
}
