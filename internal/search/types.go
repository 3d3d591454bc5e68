// Package search implements the query planner and engine (§4.7): compiling
// a structured query into one SQL statement over the store's scene tables,
// optionally augmented with a vector-index search when the SQL result set
// is thin or the caller asked for fuzzy matching.
package search

import (
	"time"

	"github.com/trieloff/scriptrag/internal/store"
)

// Mode selects how aggressively the engine reaches for the vector index.
type Mode = store.SearchMode

const (
	ModeAuto   = store.ModeAuto
	ModeStrict = store.ModeStrict
	ModeFuzzy  = store.ModeFuzzy
)

// Query is one query planner request. RawQuery is the only required field;
// every other filter narrows the scan.
type Query struct {
	RawQuery string

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

	IncludeBible bool
	OnlyBible    bool

	Limit  int
	Offset int
	Mode   Mode
}

// SceneResult is one ranked scene hit in a Result.
type SceneResult struct {
	Scene      store.SceneRow
	Script     store.ScriptRow
	Score      float64
	MatchKind  string
	FromVector bool
}

// BibleResult is one ranked bible-chunk hit in a Result.
type BibleResult struct {
	Chunk  store.BibleChunkRow
	Bible  store.BibleRow
	Script store.ScriptRow
	Score  float64
}

// Result is the query planner's response: the ranked page, the total match
// count before Limit was applied, and the set of retrieval methods that
// contributed to it ("sql", optionally "semantic").
type Result struct {
	Scenes  []SceneResult
	Bibles  []BibleResult
	Total   int
	Methods []string
}

// Config tunes the engine's ranking and concurrency behavior.
type Config struct {
	// DefaultLimit is used when a Query does not set Limit.
	DefaultLimit int

	// MaxLimit caps Query.Limit regardless of what the caller requested.
	MaxLimit int

	// VectorThreshold is the SQL result count below which AUTO mode also
	// consults the vector index.
	VectorThreshold int

	// VectorTopK bounds how many vector hits are requested per augmentation.
	VectorTopK int

	// SearchThreadTimeout bounds how long Search may run before the caller
	// receives SearchTimeout; the in-flight search is left to finish on its
	// own goroutine rather than being forcibly cancelled (§4.7 "daemon"
	// semantics — nothing blocks process exit on it).
	SearchThreadTimeout time.Duration
}

// DefaultConfig returns the engine defaults SPEC_FULL §10.3 documents.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:        20,
		MaxLimit:            200,
		VectorThreshold:     5,
		VectorTopK:          20,
		SearchThreadTimeout: 5 * time.Second,
	}
}
