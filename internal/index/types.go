// Package index implements the indexer pipeline: walking a project's
// screenplay files, parsing them, and reconciling the result into the
// metadata store, full-text index, and vector index.
package index

import (
	"context"

	"github.com/trieloff/scriptrag/internal/store"
)

// Stage names an indexer pipeline phase, reported through ProgressCallback.
type Stage string

const (
	StageScan   Stage = "scan"
	StageScript Stage = "script"
	StageScenes Stage = "scenes"
	StageBibles Stage = "bibles"
	StageEmbed  Stage = "embed"
)

// ProgressEvent reports incremental progress during a Run. Current/Total are
// 1-indexed counts within the named Stage; Total is 0 when not yet known
// (e.g. before file enumeration completes).
type ProgressEvent struct {
	Stage   Stage
	Path    string
	Current int
	Total   int
}

// ProgressCallback is invoked from Run as each unit of work completes. It
// may be nil, in which case progress is not reported.
type ProgressCallback func(ProgressEvent)

// Options configures one Run of the indexer.
type Options struct {
	// RootPath is the directory to enumerate screenplay files under.
	RootPath string

	// Recursive descends into subdirectories. When false, only files
	// directly under RootPath are considered.
	Recursive bool

	// Force reinserts every scene and bible chunk regardless of whether
	// its content hash matches the stored row, forcing re-embedding too.
	Force bool

	// DryRun performs enumeration, parsing, and hash comparison but opens
	// no write transaction against the store; the reported Result
	// reflects what a real run would have changed.
	DryRun bool

	// SkipEmbeddings omits the embedding phase entirely, regardless of
	// DryRun. Useful for offline reindex-only runs.
	SkipEmbeddings bool

	// Progress is called as files, scenes, bibles, and embeddings are
	// processed. May be nil.
	Progress ProgressCallback
}

// Result is the structured outcome of a Run.
type Result struct {
	FilesUpdated      int
	ScenesUpdated     int
	EmbeddingsCreated int
	Errors            []error
}

func (r *Result) reportProgress(cb ProgressCallback, stage Stage, path string, current, total int) {
	if cb == nil {
		return
	}
	cb(ProgressEvent{Stage: stage, Path: path, Current: current, Total: total})
}

func (r *Result) addError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// pendingEmbedding is one scene or bible chunk body awaiting an embedding
// call, queued during the scene/bible phases and drained during the
// embedding phase.
type pendingEmbedding struct {
	entityType store.EntityType
	entityID   int64
	text       string
}

// runContext carries the inter-stage state a single Run accumulates; it
// exists so the per-phase methods on Indexer don't need long parameter
// lists.
type runContext struct {
	ctx     context.Context
	opts    Options
	result  *Result
	pending []pendingEmbedding

	// dirScripts maps a directory to the script_id of the screenplay file
	// indexed from it this run, so a bible found in the same directory
	// can be attributed to the right script without a directory-scoped
	// store query.
	dirScripts map[string]int64
}
