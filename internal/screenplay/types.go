// Package screenplay holds the pure, side-effect-free screenplay data model:
// scripts, scenes, dialogue, action, and long-form bible documents, plus the
// hashing, boneyard, and formatting operations that give a scene its stable
// identity. Nothing here touches a database or a network — that is the job
// of internal/store and internal/embed.
package screenplay

import "time"

// Script is a logical screenplay. One Script owns many Scenes and may own
// many Bibles.
type Script struct {
	ID        int64
	Title     string
	Author    string
	Season    *int
	Episode   *int
	FilePath  string
	Metadata  map[string]any
	Scenes    []*Scene
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scene is one screenplay scene, owned by exactly one Script.
//
// Invariant: (ScriptID, Number) is unique and scene numbers within a script
// form the contiguous range [1..N] at all times outside a transaction.
type Scene struct {
	ID               int64
	ScriptID         int64
	Number           int
	Heading          string
	Location         string
	TimeOfDay        string
	Content          string
	ContentHash      string
	BoneyardMetadata map[string]any
	Dialogue         []Dialogue
	Action           []Action
	LastReadAt       time.Time
	UpdatedAt        time.Time

	// OriginalText, when set, is the verbatim source text for this scene
	// (including any boneyard block) as produced by the screenplay parser.
	// format_for_embedding prefers this over reconstructing from the
	// structured fields.
	OriginalText string
}

// Dialogue is one scene-owned dialogue line.
type Dialogue struct {
	Character string
	Text      string
	Order     int
}

// Action is one scene-owned action line.
type Action struct {
	Text  string
	Order int
}

// Bible is a long-form reference document attached to a Script.
type Bible struct {
	ID        int64
	ScriptID  int64
	FilePath  string
	Title     string
	FileHash  string
	Metadata  map[string]any
	Chunks    []*BibleChunk
	UpdatedAt time.Time
}

// BibleChunk is one node of a Bible's heading tree.
//
// Invariant: ParentChunkID, when non-nil, refers to a chunk earlier in the
// same bible's Chunks slice — the tree is built bottom-up as headings are
// encountered, so cycles are structurally impossible.
type BibleChunk struct {
	ID            int64
	BibleID       int64
	ChunkNumber   int
	Heading       string
	Level         int
	Content       string
	ContentHash   string
	ParentChunkID *int64
	Metadata      map[string]string
}

// SceneHeadingType is the parsed interior/exterior designation of a scene
// heading.
type SceneHeadingType string

const (
	HeadingInt    SceneHeadingType = "INT"
	HeadingExt    SceneHeadingType = "EXT"
	HeadingIntExt SceneHeadingType = "INT/EXT"
	HeadingNone   SceneHeadingType = ""
)
