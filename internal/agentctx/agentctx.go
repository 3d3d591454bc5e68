// Package agentctx implements the agent context executor (§4.9): running
// parameterized SQL an agent author wrote, with `:name` placeholders bound
// from a ContextParameters record built from the scene the agent is
// currently working on. Failures never propagate — agent prompts are
// expected to tolerate missing context, so any error here is logged and
// answered with an empty result set.
package agentctx

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/trieloff/scriptrag/internal/screenplay"
	"github.com/trieloff/scriptrag/internal/store"
)

// ContextParameters carries the scene- and script-level fields an agent's
// SQL may reference by `:name`.
type ContextParameters struct {
	ContentHash        string
	SceneNumber        int
	SceneID            int64
	SceneHeading        string
	ScriptID            int64
	FilePath            string
	ProjectName         string
	Episode             *int
	Season              *int
	Series              string
	PreviousSceneHash   string
	NextSceneHash       string
}

// FromScene derives a ContextParameters record from a parsed scene and its
// owning script, computing neighbor hashes by walking the script's scene
// list and deriving ProjectName from the script's parent directory when
// configuredProjectName is empty.
func FromScene(scene *screenplay.Scene, script *screenplay.Script, configuredProjectName string) *ContextParameters {
	p := &ContextParameters{
		ContentHash: scene.ContentHash,
		SceneNumber: scene.Number,
		SceneID:     scene.ID,
		SceneHeading: scene.Heading,
	}

	if script != nil {
		p.ScriptID = script.ID
		p.FilePath = script.FilePath
		p.Episode = script.Episode
		p.Season = script.Season
		p.Series = script.Title

		if configuredProjectName != "" {
			p.ProjectName = configuredProjectName
		} else if script.FilePath != "" {
			p.ProjectName = filepath.Base(filepath.Dir(script.FilePath))
		}

		for i, sc := range script.Scenes {
			if sc.Number != scene.Number {
				continue
			}
			if i > 0 {
				p.PreviousSceneHash = script.Scenes[i-1].ContentHash
			}
			if i+1 < len(script.Scenes) {
				p.NextSceneHash = script.Scenes[i+1].ContentHash
			}
			break
		}
	}

	return p
}

// asMap exposes only the record's non-null fields, by the placeholder name
// an agent's SQL would use for them.
func (p *ContextParameters) asMap() map[string]any {
	m := map[string]any{}
	if p.ContentHash != "" {
		m["content_hash"] = p.ContentHash
	}
	if p.SceneNumber != 0 {
		m["scene_number"] = p.SceneNumber
	}
	if p.SceneID != 0 {
		m["scene_id"] = p.SceneID
	}
	if p.SceneHeading != "" {
		m["scene_heading"] = p.SceneHeading
	}
	if p.ScriptID != 0 {
		m["script_id"] = p.ScriptID
	}
	if p.FilePath != "" {
		m["file_path"] = p.FilePath
	}
	if p.ProjectName != "" {
		m["project_name"] = p.ProjectName
	}
	if p.Episode != nil {
		m["episode"] = *p.Episode
	}
	if p.Season != nil {
		m["season"] = *p.Season
	}
	if p.Series != "" {
		m["series"] = p.Series
	}
	if p.PreviousSceneHash != "" {
		m["previous_scene_hash"] = p.PreviousSceneHash
	}
	if p.NextSceneHash != "" {
		m["next_scene_hash"] = p.NextSceneHash
	}
	return m
}

// Executor runs agent-authored parameterized SQL against the store's
// read-only path.
type Executor struct {
	store store.MetadataStore
}

// New constructs an Executor.
func New(s store.MetadataStore) *Executor {
	return &Executor{store: s}
}

// Run binds params' non-null fields into sqlText's `:name` placeholders and
// executes it. Any failure is logged and answered with an empty, non-nil
// result — never an error — so a calling agent prompt degrades gracefully.
func (e *Executor) Run(ctx context.Context, sqlText string, params *ContextParameters) []map[string]any {
	rows, err := e.store.RunReadQuery(ctx, sqlText, params.asMap())
	if err != nil {
		slog.Warn("agent context query failed, returning empty context", "error", err)
		return []map[string]any{}
	}
	return rows
}
