// Package store implements ScriptRAG's single-writer embedded store: a
// SQLite-backed relational schema for scripts/scenes/dialogue/action/bibles,
// an optional full-text index (SQLite FTS5 by default, Bleve as an
// alternate single-process backend), and a per-model dense-vector index
// backed by an in-memory HNSW graph.
package store

import (
	"context"
	"time"
)

// CurrentSchemaVersion is the schema version this binary expects. Opening a
// database with a newer schema_version is fatal (SchemaMismatch) — the
// caller built against an older binary than the one that wrote the file.
const CurrentSchemaVersion = 1

// EntityType tags what a vector or full-text row belongs to.
type EntityType string

const (
	EntityScene      EntityType = "scene"
	EntityBibleChunk EntityType = "bible_chunk"
)

// ScriptRow mirrors the scripts table.
type ScriptRow struct {
	ID           int64
	Title        string
	Author       string
	Season       *int
	Episode      *int
	FilePath     string
	MetadataJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SceneRow mirrors the scenes table.
type SceneRow struct {
	ID                 int64
	ScriptID           int64
	SceneNumber        int
	Heading            string
	Location           string
	TimeOfDay          string
	Content            string
	ContentHash        string
	BoneyardMetaJSON   string
	LastReadAt         time.Time
	UpdatedAt          time.Time
}

// DialogueRow mirrors the dialogues table.
type DialogueRow struct {
	ID           int64
	SceneID      int64
	Character    string
	Text         string
	OrderInScene int
}

// ActionRow mirrors the actions table.
type ActionRow struct {
	ID           int64
	SceneID      int64
	Text         string
	OrderInScene int
}

// BibleRow mirrors the script_bibles table.
type BibleRow struct {
	ID           int64
	ScriptID     int64
	FilePath     string
	Title        string
	FileHash     string
	MetadataJSON string
	UpdatedAt    time.Time
}

// BibleChunkRow mirrors the bible_chunks table.
type BibleChunkRow struct {
	ID            int64
	BibleID       int64
	ChunkNumber   int
	Heading       string
	Level         int
	Content       string
	ContentHash   string
	ParentChunkID *int64
	MetadataJSON  string
}

// SearchMode selects how the query planner augments a structured SQL search
// with the vector index (§4.7).
type SearchMode string

const (
	ModeAuto   SearchMode = "auto"
	ModeStrict SearchMode = "strict"
	ModeFuzzy  SearchMode = "fuzzy"
)

// SceneFilter is the compiled form of a query planner request: free-text
// search plus the structured filters §4.7 names. All fields are optional
// except Limit, which the caller is expected to have defaulted.
type SceneFilter struct {
	TextQuery    string
	Project      string
	SeasonStart  *int
	SeasonEnd    *int
	EpisodeStart *int
	EpisodeEnd   *int
	Characters   []string
	Locations    []string
	Dialogue     string
	Action       string
	Limit        int
	Offset       int
}

// SceneMatch is one ranked hit from SearchScenes: the scene row, its parent
// script, and the rank contributors that produced Score.
type SceneMatch struct {
	Scene     SceneRow
	Script    ScriptRow
	Score     float64
	MatchKind string // "dialogue" | "action" | "heading" | "body"
}

// BibleChunkMatch is one ranked hit from SearchBibleChunks.
type BibleChunkMatch struct {
	Chunk  BibleChunkRow
	Bible  BibleRow
	Script ScriptRow
	Score  float64
}

// IndexCheckpoint records where an indexer run left off, used to resume or
// validate startup reconciliation.
type IndexCheckpoint struct {
	ScriptID    int64
	GitignoreHash string
	LastIndexed time.Time
}

// HealthStatus is returned by Store.CheckHealth.
type HealthStatus struct {
	Status       string
	ActiveConns  int
	IdleConns    int
	SchemaOK     bool
}

// MetadataStore is the relational persistence contract the rest of
// ScriptRAG is built against. A single *Store implements it; tests may
// substitute a fake.
type MetadataStore interface {
	// Scripts
	SaveScript(ctx context.Context, s *ScriptRow) (int64, error)
	GetScriptByPath(ctx context.Context, filePath string) (*ScriptRow, error)
	GetScript(ctx context.Context, id int64) (*ScriptRow, error)
	FindScript(ctx context.Context, project string, season, episode *int) (*ScriptRow, error)

	// Scenes
	SaveScene(ctx context.Context, sc *SceneRow) (int64, error)
	GetScene(ctx context.Context, scriptID int64, sceneNumber int) (*SceneRow, error)
	GetSceneByID(ctx context.Context, sceneID int64) (*SceneRow, error)
	ListScenes(ctx context.Context, scriptID int64) ([]*SceneRow, error)
	DeleteScene(ctx context.Context, sceneID int64) error
	ShiftSceneNumbers(ctx context.Context, scriptID int64, fromNumber, delta int) error
	TouchLastRead(ctx context.Context, sceneID int64, at time.Time) error

	// Dialogue / action
	SaveDialogue(ctx context.Context, sceneID int64, lines []DialogueRow) error
	SaveAction(ctx context.Context, sceneID int64, lines []ActionRow) error

	// Bibles
	SaveBible(ctx context.Context, b *BibleRow) (int64, error)
	GetBibleByPath(ctx context.Context, scriptID int64, filePath string) (*BibleRow, error)
	SaveBibleChunks(ctx context.Context, bibleID int64, chunks []BibleChunkRow) error
	ListBibleChunks(ctx context.Context, bibleID int64) ([]*BibleChunkRow, error)
	DeleteBible(ctx context.Context, bibleID int64) error

	// Checkpoints
	SaveIndexCheckpoint(ctx context.Context, cp *IndexCheckpoint) error
	LoadIndexCheckpoint(ctx context.Context, scriptID int64) (*IndexCheckpoint, error)

	// Query planner (§4.7): SearchScenes compiles f into one SQL statement
	// over scripts JOIN scenes [LEFT JOIN dialogues] [LEFT JOIN actions],
	// with WHERE-clause input bound rather than interpolated (the ranking
	// expression embeds the text query as an escaped literal), and returns the
	// page of ranked matches plus the total match count before LIMIT was
	// applied. SearchBibleChunks answers the same filter's Project/
	// TextQuery fields against script_bibles/bible_chunks for the
	// include_bible / only_bible response paths.
	SearchScenes(ctx context.Context, f SceneFilter) ([]SceneMatch, int, error)
	SearchBibleChunks(ctx context.Context, f SceneFilter) ([]BibleChunkMatch, int, error)

	// RunReadQuery executes query against the read pool with args bound by
	// `:name` placeholder, for the agent context executor (§4.9). Each row
	// is returned as a column-name-to-value map.
	RunReadQuery(ctx context.Context, query string, args map[string]any) ([]map[string]any, error)

	CheckHealth(ctx context.Context) (*HealthStatus, error)
	Close() error
}

// FullTextDocument is one indexable unit for the full-text backend: a
// scene body, a dialogue line, an action line, or a bible chunk body.
type FullTextDocument struct {
	ID       string // "{entity_type}:{entity_id}[:dialogue|:action:n]"
	EntityType EntityType
	EntityID   int64
	ScriptID   int64
	Kind       string // "heading" | "body" | "dialogue" | "action" | "bible"
	Character  string // set for Kind == "dialogue"
	Text       string
}

// FullTextResult is one ranked hit from the full-text backend.
type FullTextResult struct {
	Doc   FullTextDocument
	Score float64
}

// FullTextIndex is the contract both the SQLite-FTS5 backend and the Bleve
// backend satisfy.
type FullTextIndex interface {
	Index(ctx context.Context, docs []FullTextDocument) error
	Delete(ctx context.Context, entityType EntityType, entityID int64) error
	Search(ctx context.Context, query string, limit int) ([]FullTextResult, error)
	Close() error
}

// VectorResult is one ranked hit from the vector index.
type VectorResult struct {
	EntityType EntityType
	EntityID   int64
	Score      float64
}

// VectorIndex is the per-model dense-vector search contract (§4.5).
type VectorIndex interface {
	Store(entityType EntityType, entityID int64, model string, vec []float32) error
	Delete(entityType EntityType, entityID int64) error
	SearchSimilar(entityType EntityType, model string, queryVec []float32, topK int) ([]VectorResult, error)
	Save() error
	Close() error
}
