// Package editor implements the five scene-editing operations of §4.8:
// read, add, update, delete, and the scene-number renumbering they rely on.
// A read issues an unguessable session token bound to the scene's
// updated_at; update enforces that token against concurrent modification,
// while delete takes no token and requires an explicit confirm flag. Full-text and vector reconciliation for an edited scene is
// left to the next indexer run, the same as a scene edited directly on disk.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	screrrors "github.com/trieloff/scriptrag/internal/errors"
	"github.com/trieloff/scriptrag/internal/screenplay"
	"github.com/trieloff/scriptrag/internal/store"
)

// Position is where AddScene inserts relative to the reference scene.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// SceneIdentifier names a scene within a project, optionally scoped to a
// season/episode for serialized shows.
type SceneIdentifier struct {
	Project     string
	SceneNumber int
	Season      *int
	Episode     *int
}

// ReadResult is ReadScene's response.
type ReadResult struct {
	Scene        store.SceneRow
	SessionToken string
	ExpiresAt    time.Time
}

// AddResult is AddScene's response.
type AddResult struct {
	CreatedScene store.SceneRow
	Renumbered   []int
}

// UpdateResult is UpdateScene's response.
type UpdateResult struct {
	UpdatedScene store.SceneRow
}

// DeleteResult is DeleteScene's response.
type DeleteResult struct {
	Renumbered []int
}

// Editor implements §4.8's five operations against a MetadataStore.
type Editor struct {
	store    store.MetadataStore
	parser   screenplay.Parser
	sessions *sessionStore
}

// Dependencies are Editor's collaborators.
type Dependencies struct {
	Store store.MetadataStore
	// Parser builds a single scene from raw content; defaults to
	// screenplay.NewFountainParser() when nil.
	Parser screenplay.Parser
	// SessionTTL bounds how long a read token stays valid; defaults to 10m.
	SessionTTL time.Duration
}

// New constructs an Editor.
func New(deps Dependencies) (*Editor, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("editor: store is required")
	}
	parser := deps.Parser
	if parser == nil {
		parser = screenplay.NewFountainParser()
	}
	return &Editor{
		store:    deps.Store,
		parser:   parser,
		sessions: newSessionStore(deps.SessionTTL),
	}, nil
}

// PruneSessions drops expired read tokens and reports how many were
// removed; callers may run this periodically, as internal/session's
// Manager.Prune does for named project sessions.
func (e *Editor) PruneSessions() int {
	return e.sessions.prune()
}

func (e *Editor) resolveScene(ctx context.Context, id SceneIdentifier) (*store.ScriptRow, *store.SceneRow, error) {
	script, err := e.store.FindScript(ctx, id.Project, id.Season, id.Episode)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve project: %w", err)
	}
	if script == nil {
		return nil, nil, screrrors.SceneNotFound(id.Project, id.SceneNumber)
	}
	scene, err := e.store.GetScene(ctx, script.ID, id.SceneNumber)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve scene: %w", err)
	}
	if scene == nil {
		return nil, nil, screrrors.SceneNotFound(id.Project, id.SceneNumber)
	}
	return script, scene, nil
}

// ReadScene resolves id, issues a fresh session token bound to the scene's
// current updated_at, and refreshes last_read_at.
func (e *Editor) ReadScene(ctx context.Context, id SceneIdentifier) (*ReadResult, error) {
	_, scene, err := e.resolveScene(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token, expiresAt, err := e.sessions.issue(scene.ID, scene.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	if err := e.store.TouchLastRead(ctx, scene.ID, now); err != nil {
		return nil, fmt.Errorf("touch last_read_at: %w", err)
	}
	scene.LastReadAt = now

	return &ReadResult{Scene: *scene, SessionToken: token, ExpiresAt: expiresAt}, nil
}

// validateHeading enforces §4.8's structural check: content must begin with
// a recognized scene-heading prefix.
func validateHeading(content string) error {
	if !screenplay.HasSceneHeading(content) {
		return screrrors.InvalidScene([]string{"Missing scene heading"})
	}
	return nil
}

// parseScene parses content (one scene's worth of Fountain text) into a
// screenplay.Scene via the configured parser.
func (e *Editor) parseScene(ctx context.Context, number int, content string) (*screenplay.Scene, error) {
	script, err := e.parser.Parse(ctx, "", []byte(content))
	if err != nil {
		return nil, screrrors.New(screrrors.ErrCodeScreenplayParse, "failed to parse scene content", err)
	}
	if len(script.Scenes) == 0 {
		return nil, screrrors.InvalidScene([]string{"Missing scene heading"})
	}
	scene := script.Scenes[0]
	scene.Number = number
	return scene, nil
}

func (e *Editor) saveSceneRow(ctx context.Context, scriptID int64, scene *screenplay.Scene) (*store.SceneRow, error) {
	boneyardJSON, err := json.Marshal(scene.BoneyardMetadata)
	if err != nil {
		return nil, fmt.Errorf("marshal boneyard metadata: %w", err)
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
	sceneID, err := e.store.SaveScene(ctx, row)
	if err != nil {
		return nil, err
	}
	row.ID = sceneID

	dialogueRows := make([]store.DialogueRow, 0, len(scene.Dialogue))
	for _, d := range scene.Dialogue {
		dialogueRows = append(dialogueRows, store.DialogueRow{
			SceneID: sceneID, Character: d.Character, Text: d.Text, OrderInScene: d.Order,
		})
	}
	if err := e.store.SaveDialogue(ctx, sceneID, dialogueRows); err != nil {
		return nil, err
	}

	actionRows := make([]store.ActionRow, 0, len(scene.Action))
	for _, a := range scene.Action {
		actionRows = append(actionRows, store.ActionRow{SceneID: sceneID, Text: a.Text, OrderInScene: a.Order})
	}
	if err := e.store.SaveAction(ctx, sceneID, actionRows); err != nil {
		return nil, err
	}

	saved, err := e.store.GetScene(ctx, scriptID, scene.Number)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// AddScene validates content, shifts subsequent scenes to make room, and
// inserts the new scene at the position requested relative to id.
func (e *Editor) AddScene(ctx context.Context, id SceneIdentifier, content string, position Position) (*AddResult, error) {
	if err := validateHeading(content); err != nil {
		return nil, err
	}
	script, refScene, err := e.resolveScene(ctx, id)
	if err != nil {
		return nil, err
	}

	newNumber := refScene.SceneNumber
	if position == PositionAfter {
		newNumber++
	}

	existing, err := e.store.ListScenes(ctx, script.ID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	var renumbered []int
	for _, sc := range existing {
		if sc.SceneNumber >= newNumber {
			renumbered = append(renumbered, sc.SceneNumber+1)
		}
	}

	if err := e.store.ShiftSceneNumbers(ctx, script.ID, newNumber, 1); err != nil {
		return nil, fmt.Errorf("shift scene numbers: %w", err)
	}

	scene, err := e.parseScene(ctx, newNumber, content)
	if err != nil {
		return nil, err
	}
	saved, err := e.saveSceneRow(ctx, script.ID, scene)
	if err != nil {
		return nil, err
	}

	return &AddResult{CreatedScene: *saved, Renumbered: renumbered}, nil
}

// UpdateScene validates the session token against id's current scene state,
// rewrites its content, and bumps updated_at.
func (e *Editor) UpdateScene(ctx context.Context, id SceneIdentifier, content, sessionToken string) (*UpdateResult, error) {
	if err := validateHeading(content); err != nil {
		return nil, err
	}
	script, scene, err := e.resolveScene(ctx, id)
	if err != nil {
		return nil, err
	}

	boundSceneID, boundAt, ok := e.sessions.lookup(sessionToken)
	if !ok {
		return nil, screrrors.SessionInvalid(sessionToken)
	}
	if boundSceneID != scene.ID {
		return nil, screrrors.SessionInvalid(sessionToken)
	}
	if !boundAt.Equal(scene.UpdatedAt) {
		return nil, screrrors.ConcurrentModification(scene.ID)
	}

	parsed, err := e.parseScene(ctx, scene.SceneNumber, content)
	if err != nil {
		return nil, err
	}
	saved, err := e.saveSceneRow(ctx, script.ID, parsed)
	if err != nil {
		return nil, err
	}
	e.sessions.consume(sessionToken)

	return &UpdateResult{UpdatedScene: *saved}, nil
}

// DeleteScene removes the scene and compacts scene numbers after it by −1.
// confirm must be true; this mirrors the irreversibility of the operation.
func (e *Editor) DeleteScene(ctx context.Context, id SceneIdentifier, confirm bool) (*DeleteResult, error) {
	if !confirm {
		return nil, screrrors.ValidationError("delete requires confirm=true", nil)
	}
	script, scene, err := e.resolveScene(ctx, id)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.ListScenes(ctx, script.ID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	var renumbered []int
	for _, sc := range existing {
		if sc.SceneNumber > scene.SceneNumber {
			renumbered = append(renumbered, sc.SceneNumber-1)
		}
	}

	if err := e.store.DeleteScene(ctx, scene.ID); err != nil {
		return nil, fmt.Errorf("delete scene: %w", err)
	}
	if err := e.store.ShiftSceneNumbers(ctx, script.ID, scene.SceneNumber+1, -1); err != nil {
		return nil, fmt.Errorf("compact scene numbers: %w", err)
	}

	return &DeleteResult{Renumbered: renumbered}, nil
}
