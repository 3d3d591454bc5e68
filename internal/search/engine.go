package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	screrrors "github.com/trieloff/scriptrag/internal/errors"
	"github.com/trieloff/scriptrag/internal/embed"
	"github.com/trieloff/scriptrag/internal/store"
	"github.com/trieloff/scriptrag/internal/telemetry"
)

// Dependencies are the collaborators the engine needs. Metadata is
// required; Vector and Embedder are optional — without them the engine
// only ever reports {"sql"} as its methods, never augmenting with a
// semantic pass.
type Dependencies struct {
	Metadata store.MetadataStore
	Vector   store.VectorIndex
	Embedder embed.Embedder
	Metrics  *telemetry.QueryMetrics

	// VectorModel names the embedding model the vector index was built
	// with, passed through to SearchSimilar unchanged.
	VectorModel string
}

// Engine is the query planner and executor described in §4.7.
type Engine struct {
	deps   Dependencies
	config Config
}

// NewEngine constructs an Engine. Metadata must not be nil.
func NewEngine(deps Dependencies, cfg Config) (*Engine, error) {
	if deps.Metadata == nil {
		return nil, fmt.Errorf("search: metadata store is required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg = DefaultConfig()
	}
	return &Engine{deps: deps, config: cfg}, nil
}

// Search runs q against the store, racing the configured
// search_thread_timeout. The actual work happens on its own goroutine; if
// the timeout wins the race, that goroutine is simply abandoned to finish
// and discard its result rather than being forcibly cancelled — the
// equivalent of the daemon-thread semantics §4.7 calls for, since nothing
// in the caller's path depends on it completing.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	if q.RawQuery == "" {
		return nil, fmt.Errorf("search: raw_query is required")
	}

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := e.execute(ctx, q)
		done <- outcome{r, err}
	}()

	timeout := e.config.SearchThreadTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().SearchThreadTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.result, o.err
	case <-timer.C:
		return nil, screrrors.SearchTimeout(q.RawQuery, timeout)
	}
}

func (e *Engine) execute(ctx context.Context, q Query) (result *Result, err error) {
	start := time.Now()
	defer func() {
		if e.deps.Metrics != nil {
			count := 0
			if result != nil {
				count = len(result.Scenes) + len(result.Bibles)
			}
			e.deps.Metrics.Record(telemetry.QueryEvent{
				Query:       q.RawQuery,
				QueryType:   telemetry.QueryTypeMixed,
				ResultCount: count,
				Latency:     time.Since(start),
				Timestamp:   time.Now(),
			})
		}
	}()

	filter := e.buildFilter(q)
	res := &Result{Methods: []string{"sql"}}

	if !q.OnlyBible {
		matches, total, sqlErr := e.deps.Metadata.SearchScenes(ctx, filter)
		if sqlErr != nil {
			return nil, fmt.Errorf("search scenes: %w", sqlErr)
		}
		res.Total = total
		res.Scenes = make([]SceneResult, len(matches))
		for i, m := range matches {
			res.Scenes[i] = SceneResult{Scene: m.Scene, Script: m.Script, Score: m.Score, MatchKind: m.MatchKind}
		}

		if e.shouldAugmentWithVector(q.Mode, len(matches)) {
			augmented, augErr := e.augmentWithVector(ctx, q, res.Scenes)
			if augErr != nil {
				slog.Warn("vector augmentation failed, returning SQL-only results", "error", augErr)
			} else {
				res.Scenes = augmented
				res.Methods = []string{"sql", "semantic"}
			}
		}
	}

	if q.IncludeBible || q.OnlyBible {
		chunks, _, bibErr := e.deps.Metadata.SearchBibleChunks(ctx, filter)
		if bibErr != nil {
			return nil, fmt.Errorf("search bible chunks: %w", bibErr)
		}
		res.Bibles = make([]BibleResult, len(chunks))
		for i, c := range chunks {
			res.Bibles[i] = BibleResult{Chunk: c.Chunk, Bible: c.Bible, Script: c.Script, Score: c.Score}
		}
	}

	if len(res.Scenes) > filter.Limit {
		res.Scenes = res.Scenes[:filter.Limit]
	}
	return res, nil
}

func (e *Engine) buildFilter(q Query) store.SceneFilter {
	limit := q.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}
	return store.SceneFilter{
		TextQuery:    q.TextQuery,
		Project:      q.Project,
		SeasonStart:  q.SeasonStart,
		SeasonEnd:    q.SeasonEnd,
		EpisodeStart: q.EpisodeStart,
		EpisodeEnd:   q.EpisodeEnd,
		Characters:   q.Characters,
		Locations:    q.Locations,
		Dialogue:     q.Dialogue,
		Action:       q.Action,
		Limit:        limit,
		Offset:       q.Offset,
	}
}

func (e *Engine) shouldAugmentWithVector(mode Mode, sqlCount int) bool {
	if e.deps.Vector == nil || e.deps.Embedder == nil {
		return false
	}
	if mode == ModeFuzzy {
		return true
	}
	return mode != ModeStrict && sqlCount < e.config.VectorThreshold
}

// augmentWithVector embeds the raw query, searches the vector index for
// scenes, and union-merges the hits into sql by scene_id, keeping the best
// score per scene (§4.7).
func (e *Engine) augmentWithVector(ctx context.Context, q Query, sql []SceneResult) ([]SceneResult, error) {
	vec, err := e.deps.Embedder.Embed(ctx, q.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := e.deps.Vector.SearchSimilar(store.EntityScene, e.deps.VectorModel, vec, e.config.VectorTopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	byScene := make(map[int64]float64, len(hits))
	for _, h := range hits {
		if h.Score > byScene[h.EntityID] {
			byScene[h.EntityID] = h.Score
		}
	}

	return mergeVectorHits(sql, byScene, func(sceneID int64) (*SceneResult, bool) {
		sc, err := e.deps.Metadata.GetSceneByID(ctx, sceneID)
		if err != nil || sc == nil {
			return nil, false
		}
		script, err := e.deps.Metadata.GetScript(ctx, sc.ScriptID)
		if err != nil || script == nil {
			return nil, false
		}
		return &SceneResult{Scene: *sc, Script: *script}, true
	}), nil
}
