package search

import "sort"

// mergeVectorHits union-merges vec's scene hits into sql's existing scene
// results, keeping the best score per scene_id (§4.7 vector augmentation),
// then re-sorts by score. hydrate resolves a scene_id the SQL pass never
// returned into a full SceneResult; it is only called for genuinely new
// hits, so a lookup failure there is logged and the hit dropped rather than
// failing the whole search.
func mergeVectorHits(sql []SceneResult, vecHits map[int64]float64, hydrate func(sceneID int64) (*SceneResult, bool)) []SceneResult {
	bySceneID := make(map[int64]*SceneResult, len(sql)+len(vecHits))
	merged := make([]SceneResult, len(sql))
	copy(merged, sql)
	for i := range merged {
		bySceneID[merged[i].Scene.ID] = &merged[i]
	}

	for sceneID, score := range vecHits {
		if existing, ok := bySceneID[sceneID]; ok {
			if score > existing.Score {
				existing.Score = score
			}
			continue
		}
		r, ok := hydrate(sceneID)
		if !ok {
			continue
		}
		r.Score = score
		r.FromVector = true
		merged = append(merged, *r)
	}

	sort.Slice(merged, func(i, j int) bool {
		return compareSceneResults(merged[i], merged[j])
	})
	return merged
}

// compareSceneResults orders by score descending, then scripts/scene number
// ascending for a deterministic tie-break.
func compareSceneResults(a, b SceneResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Script.ID != b.Script.ID {
		return a.Script.ID < b.Script.ID
	}
	return a.Scene.SceneNumber < b.Scene.SceneNumber
}
