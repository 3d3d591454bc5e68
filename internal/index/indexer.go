package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trieloff/scriptrag/internal/embed"
	"github.com/trieloff/scriptrag/internal/screenplay"
	"github.com/trieloff/scriptrag/internal/store"
)

// Dependencies are the injected collaborators an Indexer needs. Parser and
// Cache are optional: a nil Parser defaults to screenplay.NewFountainParser,
// and a nil Cache simply skips the disk-backed embedding cache (every
// embedding is requested fresh from Embedder).
type Dependencies struct {
	Metadata store.MetadataStore
	FullText store.FullTextIndex
	Vector   store.VectorIndex
	Embedder embed.Embedder
	Parser   screenplay.Parser
	Cache    *embed.ContentCache

	// EmbedConcurrency bounds how many embedding calls run concurrently
	// during the embedding phase. Defaults to 4.
	EmbedConcurrency int
}

// Indexer runs the indexing pipeline: enumerate screenplay files, parse
// each into a Script, reconcile scenes and bibles against the store on
// content hash, and embed whatever changed.
type Indexer struct {
	metadata    store.MetadataStore
	fullText    store.FullTextIndex
	vector      store.VectorIndex
	embedder    embed.Embedder
	parser      screenplay.Parser
	cache       *embed.ContentCache
	concurrency int
}

// NewIndexer validates deps and returns an Indexer.
func NewIndexer(deps Dependencies) (*Indexer, error) {
	if deps.Metadata == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if deps.FullText == nil {
		return nil, fmt.Errorf("full-text index is required")
	}
	if deps.Vector == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	parser := deps.Parser
	if parser == nil {
		parser = screenplay.NewFountainParser()
	}

	concurrency := deps.EmbedConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Indexer{
		metadata:    deps.Metadata,
		fullText:    deps.FullText,
		vector:      deps.Vector,
		embedder:    deps.Embedder,
		parser:      parser,
		cache:       deps.Cache,
		concurrency: concurrency,
	}, nil
}

// Run executes one indexing pass over opts.RootPath.
func (ix *Indexer) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{}
	rc := &runContext{ctx: ctx, opts: opts, result: result, dirScripts: make(map[string]int64)}

	paths, err := enumerateFiles(opts.RootPath, opts.Recursive)
	if err != nil {
		return nil, err
	}
	result.reportProgress(opts.Progress, StageScan, opts.RootPath, 0, len(paths))

	for i, path := range paths {
		if err := ix.indexFile(rc, path); err != nil {
			result.addError(fmt.Errorf("index %s: %w", path, err))
		}
		result.reportProgress(opts.Progress, StageScan, path, i+1, len(paths))
	}

	bibles, err := enumerateBibles(opts.RootPath, opts.Recursive)
	if err != nil {
		return nil, err
	}
	for i, path := range bibles {
		if err := ix.indexBible(rc, path); err != nil {
			result.addError(fmt.Errorf("index bible %s: %w", path, err))
		}
		result.reportProgress(opts.Progress, StageBibles, path, i+1, len(bibles))
	}

	if !opts.DryRun && !opts.SkipEmbeddings && len(rc.pending) > 0 {
		if ix.cache != nil {
			if err := ensureGitAttributesLFS(opts.RootPath); err != nil {
				slog.Warn("failed to update .gitattributes for embedding cache",
					slog.String("error", err.Error()))
			}
		}
		if err := ix.runEmbeddingPhase(rc); err != nil {
			result.addError(fmt.Errorf("embedding phase: %w", err))
		}
	}

	slog.Info("index_run_complete",
		slog.String("root", opts.RootPath),
		slog.Bool("dry_run", opts.DryRun),
		slog.Int("files_updated", result.FilesUpdated),
		slog.Int("scenes_updated", result.ScenesUpdated),
		slog.Int("embeddings_created", result.EmbeddingsCreated),
		slog.Int("errors", len(result.Errors)),
		slog.String("duration", time.Since(start).String()))

	return result, nil
}

// indexFile parses one screenplay file and reconciles its Script and Scene
// rows against the store.
func (ix *Indexer) indexFile(rc *runContext, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	script, err := ix.parser.Parse(rc.ctx, path, content)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	rc.result.reportProgress(rc.opts.Progress, StageScript, path, 0, 1)

	scriptID, fileChanged, err := ix.upsertScript(rc, script)
	if err != nil {
		return fmt.Errorf("upsert script: %w", err)
	}
	if fileChanged {
		rc.result.FilesUpdated++
	}
	if scriptID != 0 {
		rc.dirScripts[filepath.Dir(path)] = scriptID
	}

	if err := ix.reconcileScenes(rc, scriptID, script); err != nil {
		return fmt.Errorf("reconcile scenes: %w", err)
	}
	return nil
}

// upsertScript saves the Script row (unless dry-run), reporting whether the
// row is new or its metadata changed.
func (ix *Indexer) upsertScript(rc *runContext, script *screenplay.Script) (scriptID int64, changed bool, err error) {
	existing, err := ix.metadata.GetScriptByPath(rc.ctx, script.FilePath)
	if err != nil {
		return 0, false, err
	}

	metaJSON, err := json.Marshal(script.Metadata)
	if err != nil {
		return 0, false, fmt.Errorf("marshal script metadata: %w", err)
	}

	row := &store.ScriptRow{
		Title:        script.Title,
		Author:       script.Author,
		Season:       script.Season,
		Episode:      script.Episode,
		FilePath:     script.FilePath,
		MetadataJSON: string(metaJSON),
	}

	changed = existing == nil || existing.Title != row.Title || existing.Author != row.Author
	if existing != nil {
		row.ID = existing.ID
	}

	if rc.opts.DryRun {
		if existing != nil {
			return existing.ID, changed, nil
		}
		return 0, changed, nil
	}

	id, err := ix.metadata.SaveScript(rc.ctx, row)
	if err != nil {
		return 0, false, err
	}
	return id, changed, nil
}

// reconcileScenes hash-compares the freshly parsed scenes against whatever
// is stored for scriptID, inserting new or changed scenes, skipping
// unchanged ones, and deleting stored scenes beyond the new scene count.
// Re-deriving scene numbers from parse order on every run keeps numbering
// dense and 1-indexed without a separate renumbering pass.
func (ix *Indexer) reconcileScenes(rc *runContext, scriptID int64, script *screenplay.Script) error {
	var stored []*store.SceneRow
	if scriptID != 0 {
		var err error
		stored, err = ix.metadata.ListScenes(rc.ctx, scriptID)
		if err != nil {
			return err
		}
	}
	storedByNumber := make(map[int]*store.SceneRow, len(stored))
	for _, sr := range stored {
		storedByNumber[sr.SceneNumber] = sr
	}

	for i, scene := range script.Scenes {
		existing := storedByNumber[scene.Number]
		unchanged := existing != nil && !rc.opts.Force && existing.ContentHash == scene.ContentHash
		rc.result.reportProgress(rc.opts.Progress, StageScenes, script.FilePath, i+1, len(script.Scenes))
		if unchanged {
			continue
		}

		rc.result.ScenesUpdated++
		if rc.opts.DryRun {
			continue
		}

		sceneID, err := ix.saveScene(rc.ctx, scriptID, scene)
		if err != nil {
			return fmt.Errorf("scene %d: %w", scene.Number, err)
		}
		rc.pending = append(rc.pending, pendingEmbedding{
			entityType: store.EntityScene,
			entityID:   sceneID,
			text:       scene.Content,
		})
	}

	for number, sr := range storedByNumber {
		if number <= len(script.Scenes) {
			continue
		}
		rc.result.ScenesUpdated++
		if rc.opts.DryRun {
			continue
		}
		if err := ix.metadata.DeleteScene(rc.ctx, sr.ID); err != nil {
			return fmt.Errorf("delete stale scene %d: %w", number, err)
		}
		if err := ix.vector.Delete(store.EntityScene, sr.ID); err != nil {
			return fmt.Errorf("delete stale scene vector %d: %w", number, err)
		}
		if err := ix.fullText.Delete(rc.ctx, store.EntityScene, sr.ID); err != nil {
			return fmt.Errorf("delete stale scene full-text %d: %w", number, err)
		}
	}
	return nil
}

// saveScene persists a scene's row, dialogue, action, and full-text
// documents, returning its database id.
func (ix *Indexer) saveScene(ctx context.Context, scriptID int64, scene *screenplay.Scene) (int64, error) {
	boneyardJSON, err := json.Marshal(scene.BoneyardMetadata)
	if err != nil {
		return 0, fmt.Errorf("marshal boneyard metadata: %w", err)
	}

	row := &store.SceneRow{
		ScriptID:         scriptID,
		SceneNumber:      scene.Number,
		Heading:          scene.Heading,
		Location:         scene.Location,
		TimeOfDay:        scene.TimeOfDay,
		Content:          scene.Content,
		ContentHash:      scene.ContentHash,
		BoneyardMetaJSON: string(boneyardJSON),
	}
	sceneID, err := ix.metadata.SaveScene(ctx, row)
	if err != nil {
		return 0, err
	}

	dialogueRows := make([]store.DialogueRow, 0, len(scene.Dialogue))
	for _, d := range scene.Dialogue {
		dialogueRows = append(dialogueRows, store.DialogueRow{
			SceneID: sceneID, Character: d.Character, Text: d.Text, OrderInScene: d.Order,
		})
	}
	if err := ix.metadata.SaveDialogue(ctx, sceneID, dialogueRows); err != nil {
		return 0, err
	}

	actionRows := make([]store.ActionRow, 0, len(scene.Action))
	for _, a := range scene.Action {
		actionRows = append(actionRows, store.ActionRow{SceneID: sceneID, Text: a.Text, OrderInScene: a.Order})
	}
	if err := ix.metadata.SaveAction(ctx, sceneID, actionRows); err != nil {
		return 0, err
	}

	docs := []store.FullTextDocument{
		{ID: fmt.Sprintf("scene:%d:body", sceneID), EntityType: store.EntityScene, EntityID: sceneID,
			ScriptID: scriptID, Kind: "body", Text: scene.Content},
		{ID: fmt.Sprintf("scene:%d:heading", sceneID), EntityType: store.EntityScene, EntityID: sceneID,
			ScriptID: scriptID, Kind: "heading", Text: scene.Heading},
	}
	for i, d := range scene.Dialogue {
		docs = append(docs, store.FullTextDocument{
			ID: fmt.Sprintf("scene:%d:dialogue:%d", sceneID, i), EntityType: store.EntityScene,
			EntityID: sceneID, ScriptID: scriptID, Kind: "dialogue", Character: d.Character, Text: d.Text,
		})
	}
	for i, a := range scene.Action {
		docs = append(docs, store.FullTextDocument{
			ID: fmt.Sprintf("scene:%d:action:%d", sceneID, i), EntityType: store.EntityScene,
			EntityID: sceneID, ScriptID: scriptID, Kind: "action", Text: a.Text,
		})
	}
	if err := ix.fullText.Index(ctx, docs); err != nil {
		return 0, fmt.Errorf("index scene full-text: %w", err)
	}

	return sceneID, nil
}

// indexBible parses one bible file and reconciles its chunks against the
// store, keyed by the whole document's content hash: any change rewrites
// every chunk (cascading through SaveBibleChunks' delete-then-insert),
// which in turn is what marks their embeddings stale.
func (ix *Indexer) indexBible(rc *runContext, path string) error {
	// A bible is attributed to the script indexed from the same directory
	// this run; a bible with no sibling script indexed yet is skipped.
	scriptID, ok := rc.dirScripts[filepath.Dir(path)]
	if !ok {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bible: %w", err)
	}
	fileHash := screenplay.ComputeSceneHash(string(content), false)

	existing, err := ix.metadata.GetBibleByPath(rc.ctx, scriptID, path)
	if err != nil {
		return err
	}
	unchanged := existing != nil && !rc.opts.Force && existing.FileHash == fileHash
	if unchanged {
		return nil
	}
	rc.result.ScenesUpdated++ // a changed bible counts as one updated unit of content

	if rc.opts.DryRun {
		return nil
	}

	bibleID, err := ix.metadata.SaveBible(rc.ctx, &store.BibleRow{
		ScriptID: scriptID, FilePath: path, Title: filepath.Base(path),
		FileHash: fileHash, MetadataJSON: "{}",
	})
	if err != nil {
		return fmt.Errorf("save bible: %w", err)
	}

	chunks := screenplay.ChunkBible(string(content))
	rows := make([]store.BibleChunkRow, 0, len(chunks))
	for _, c := range chunks {
		chunkMeta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal bible chunk metadata: %w", err)
		}
		rows = append(rows, store.BibleChunkRow{
			ChunkNumber: c.ChunkNumber, Heading: c.Heading, Level: c.Level,
			Content: c.Content, ContentHash: c.ContentHash, ParentChunkID: c.ParentChunkID,
			MetadataJSON: string(chunkMeta),
		})
	}
	if err := ix.metadata.SaveBibleChunks(rc.ctx, bibleID, rows); err != nil {
		return fmt.Errorf("save bible chunks: %w", err)
	}

	// SaveBibleChunks assigns database ids; read them back to queue
	// embeddings and full-text documents against real entity ids.
	saved, err := ix.metadata.ListBibleChunks(rc.ctx, bibleID)
	if err != nil {
		return fmt.Errorf("list saved bible chunks: %w", err)
	}

	docs := make([]store.FullTextDocument, 0, len(saved))
	for _, c := range saved {
		docs = append(docs, store.FullTextDocument{
			ID: fmt.Sprintf("bible_chunk:%d", c.ID), EntityType: store.EntityBibleChunk,
			EntityID: c.ID, ScriptID: scriptID, Kind: "bible", Text: c.Content,
		})
		rc.pending = append(rc.pending, pendingEmbedding{
			entityType: store.EntityBibleChunk, entityID: c.ID, text: c.Content,
		})
	}
	if err := ix.fullText.Index(rc.ctx, docs); err != nil {
		return fmt.Errorf("index bible full-text: %w", err)
	}
	return nil
}

// runEmbeddingPhase dispatches one embedding call per queued scene or bible
// chunk, bounded to ix.concurrency in flight at a time. A disk-cache hit
// skips the provider call entirely; a miss calls the provider once (retry,
// if any, is the embedder implementation's own concern — see
// openai_compatible.go's use of DownloadWithRetry) and populates the cache
// on success. A per-item failure is recorded in the result and does not
// abort the rest of the phase.
func (ix *Indexer) runEmbeddingPhase(rc *runContext) error {
	model := ix.embedder.ModelName()
	total := len(rc.pending)

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(rc.ctx)
	group.SetLimit(ix.concurrency)

	for i, item := range rc.pending {
		i, item := i, item
		group.Go(func() error {
			vec, err := ix.embedOne(gctx, model, item.text)
			mu.Lock()
			defer mu.Unlock()
			rc.result.reportProgress(rc.opts.Progress, StageEmbed, "", i+1, total)
			if err != nil {
				rc.result.addError(fmt.Errorf("embed %s:%d: %w", item.entityType, item.entityID, err))
				return nil
			}
			if err := ix.vector.Store(item.entityType, item.entityID, model, vec); err != nil {
				rc.result.addError(fmt.Errorf("store vector %s:%d: %w", item.entityType, item.entityID, err))
				return nil
			}
			rc.result.EmbeddingsCreated++
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return ix.vector.Save()
}

// embedOne resolves one embedding via the disk cache before falling back to
// the provider, populating the cache on a fresh call.
func (ix *Indexer) embedOne(ctx context.Context, model, text string) ([]float32, error) {
	if ix.cache != nil {
		if vec, ok, err := ix.cache.Get(model, text); err == nil && ok {
			return vec, nil
		}
	}

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if ix.cache != nil {
		if err := ix.cache.Put(model, text, vec); err != nil {
			slog.Warn("failed to write embedding cache entry", slog.String("error", err.Error()))
		}
	}
	return vec, nil
}
