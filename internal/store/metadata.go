package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ MetadataStore = (*Store)(nil)

// SaveScript inserts or, if file_path already exists, updates a script row.
func (s *Store) SaveScript(ctx context.Context, sc *ScriptRow) (int64, error) {
	var id int64
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO scripts(title, author, season, episode, file_path, metadata, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(file_path) DO UPDATE SET
				title = excluded.title,
				author = excluded.author,
				season = excluded.season,
				episode = excluded.episode,
				metadata = excluded.metadata,
				updated_at = CURRENT_TIMESTAMP
		`, sc.Title, sc.Author, sc.Season, sc.Episode, sc.FilePath, sc.MetadataJSON)
		if err != nil {
			return fmt.Errorf("save script: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			if lastID, err := res.LastInsertId(); err == nil && lastID != 0 {
				id = lastID
				return nil
			}
		}
		return tx.QueryRowContext(ctx,
			`SELECT id FROM scripts WHERE file_path = ?`, sc.FilePath,
		).Scan(&id)
	})
	return id, err
}

func (s *Store) scanScript(row *sql.Row) (*ScriptRow, error) {
	sc := &ScriptRow{}
	err := row.Scan(&sc.ID, &sc.Title, &sc.Author, &sc.Season, &sc.Episode,
		&sc.FilePath, &sc.MetadataJSON, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

const scriptColumns = `id, title, author, season, episode, file_path, metadata, created_at, updated_at`

func (s *Store) GetScriptByPath(ctx context.Context, filePath string) (*ScriptRow, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT `+scriptColumns+` FROM scripts WHERE file_path = ?`, filePath)
	return s.scanScript(row)
}

func (s *Store) GetScript(ctx context.Context, id int64) (*ScriptRow, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT `+scriptColumns+` FROM scripts WHERE id = ?`, id)
	return s.scanScript(row)
}

// FindScript resolves a script by project title plus optional season/episode,
// used by the agent context executor to turn a loose reference into a
// script_id (§4.9).
func (s *Store) FindScript(ctx context.Context, project string, season, episode *int) (*ScriptRow, error) {
	query := `SELECT ` + scriptColumns + ` FROM scripts WHERE title = ?`
	args := []any{project}
	if season != nil {
		query += ` AND season = ?`
		args = append(args, *season)
	}
	if episode != nil {
		query += ` AND episode = ?`
		args = append(args, *episode)
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`
	row := s.reader.QueryRowContext(ctx, query, args...)
	return s.scanScript(row)
}

const sceneColumns = `id, script_id, scene_number, heading, location, time_of_day, ` +
	`content, content_hash, boneyard_metadata, last_read_at, updated_at`

func (s *Store) scanScene(row *sql.Row) (*SceneRow, error) {
	sc := &SceneRow{}
	var lastRead sql.NullTime
	err := row.Scan(&sc.ID, &sc.ScriptID, &sc.SceneNumber, &sc.Heading, &sc.Location,
		&sc.TimeOfDay, &sc.Content, &sc.ContentHash, &sc.BoneyardMetaJSON, &lastRead, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastRead.Valid {
		sc.LastReadAt = lastRead.Time
	}
	return sc, nil
}

// SaveScene inserts or updates a scene keyed on (script_id, scene_number).
func (s *Store) SaveScene(ctx context.Context, sc *SceneRow) (int64, error) {
	var id int64
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO scenes(script_id, scene_number, heading, location, time_of_day,
				content, content_hash, boneyard_metadata, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(script_id, scene_number) DO UPDATE SET
				heading = excluded.heading,
				location = excluded.location,
				time_of_day = excluded.time_of_day,
				content = excluded.content,
				content_hash = excluded.content_hash,
				boneyard_metadata = excluded.boneyard_metadata,
				updated_at = CURRENT_TIMESTAMP
		`, sc.ScriptID, sc.SceneNumber, sc.Heading, sc.Location, sc.TimeOfDay,
			sc.Content, sc.ContentHash, sc.BoneyardMetaJSON)
		if err != nil {
			return fmt.Errorf("save scene: %w", err)
		}
		if lastID, err := res.LastInsertId(); err == nil && lastID != 0 {
			id = lastID
			return nil
		}
		return tx.QueryRowContext(ctx,
			`SELECT id FROM scenes WHERE script_id = ? AND scene_number = ?`,
			sc.ScriptID, sc.SceneNumber,
		).Scan(&id)
	})
	return id, err
}

func (s *Store) GetScene(ctx context.Context, scriptID int64, sceneNumber int) (*SceneRow, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE script_id = ? AND scene_number = ?`,
		scriptID, sceneNumber)
	return s.scanScene(row)
}

// GetSceneByID resolves a scene by its primary key, used by the query
// planner to hydrate scene rows a vector-only hit surfaced (§4.7).
func (s *Store) GetSceneByID(ctx context.Context, sceneID int64) (*SceneRow, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE id = ?`, sceneID)
	return s.scanScene(row)
}

func (s *Store) ListScenes(ctx context.Context, scriptID int64) ([]*SceneRow, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE script_id = ? ORDER BY scene_number`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var out []*SceneRow
	for rows.Next() {
		sc := &SceneRow{}
		var lastRead sql.NullTime
		if err := rows.Scan(&sc.ID, &sc.ScriptID, &sc.SceneNumber, &sc.Heading, &sc.Location,
			&sc.TimeOfDay, &sc.Content, &sc.ContentHash, &sc.BoneyardMetaJSON, &lastRead, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		if lastRead.Valid {
			sc.LastReadAt = lastRead.Time
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) DeleteScene(ctx context.Context, sceneID int64) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, sceneID)
		return err
	})
}

// ShiftSceneNumbers renumbers scenes at or after fromNumber by delta. When
// delta is positive the rows are shifted descending (highest number first)
// and when negative ascending, so the UNIQUE(script_id, scene_number)
// constraint is never hit mid-shift (§4.8 renumbering algorithm).
func (s *Store) ShiftSceneNumbers(ctx context.Context, scriptID int64, fromNumber, delta int) error {
	if delta == 0 {
		return nil
	}
	return s.transaction(ctx, func(tx *sql.Tx) error {
		order := "ASC"
		if delta > 0 {
			order = "DESC"
		}
		rows, err := tx.QueryContext(ctx,
			fmt.Sprintf(`SELECT id, scene_number FROM scenes WHERE script_id = ? AND scene_number >= ? ORDER BY scene_number %s`, order),
			scriptID, fromNumber)
		if err != nil {
			return err
		}
		type pending struct {
			id, num int64
		}
		var moves []pending
		for rows.Next() {
			var p pending
			if err := rows.Scan(&p.id, &p.num); err != nil {
				rows.Close()
				return err
			}
			moves = append(moves, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, p := range moves {
			if _, err := tx.ExecContext(ctx,
				`UPDATE scenes SET scene_number = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				p.num+int64(delta), p.id,
			); err != nil {
				return fmt.Errorf("shift scene %d: %w", p.id, err)
			}
		}
		return nil
	})
}

func (s *Store) TouchLastRead(ctx context.Context, sceneID int64, at time.Time) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE scenes SET last_read_at = ? WHERE id = ?`, at, sceneID)
		return err
	})
}

func (s *Store) SaveDialogue(ctx context.Context, sceneID int64, lines []DialogueRow) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dialogues WHERE scene_id = ?`, sceneID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO dialogues(scene_id, character, text, order_in_scene) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, l := range lines {
			if _, err := stmt.ExecContext(ctx, sceneID, l.Character, l.Text, l.OrderInScene); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveAction(ctx context.Context, sceneID int64, lines []ActionRow) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE scene_id = ?`, sceneID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO actions(scene_id, text, order_in_scene) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, l := range lines {
			if _, err := stmt.ExecContext(ctx, sceneID, l.Text, l.OrderInScene); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveBible(ctx context.Context, b *BibleRow) (int64, error) {
	var id int64
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO script_bibles(script_id, file_path, title, file_hash, metadata, updated_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(script_id, file_path) DO UPDATE SET
				title = excluded.title,
				file_hash = excluded.file_hash,
				metadata = excluded.metadata,
				updated_at = CURRENT_TIMESTAMP
		`, b.ScriptID, b.FilePath, b.Title, b.FileHash, b.MetadataJSON)
		if err != nil {
			return fmt.Errorf("save bible: %w", err)
		}
		if lastID, err := res.LastInsertId(); err == nil && lastID != 0 {
			id = lastID
			return nil
		}
		return tx.QueryRowContext(ctx,
			`SELECT id FROM script_bibles WHERE script_id = ? AND file_path = ?`,
			b.ScriptID, b.FilePath,
		).Scan(&id)
	})
	return id, err
}

func (s *Store) GetBibleByPath(ctx context.Context, scriptID int64, filePath string) (*BibleRow, error) {
	row := s.reader.QueryRowContext(ctx, `
		SELECT id, script_id, file_path, title, file_hash, metadata, updated_at
		FROM script_bibles WHERE script_id = ? AND file_path = ?`, scriptID, filePath)
	b := &BibleRow{}
	err := row.Scan(&b.ID, &b.ScriptID, &b.FilePath, &b.Title, &b.FileHash, &b.MetadataJSON, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) SaveBibleChunks(ctx context.Context, bibleID int64, chunks []BibleChunkRow) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bible_chunks WHERE bible_id = ?`, bibleID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO bible_chunks(bible_id, chunk_number, heading, level, content, content_hash, parent_chunk_id, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		// parent_chunk_id in the incoming rows refers to the in-memory
		// ChunkNumber, not a database id yet; resolve as we insert since
		// chunks are always ordered with parents preceding children.
		numberToID := make(map[int64]int64, len(chunks))
		for _, c := range chunks {
			var dbParentID any
			if c.ParentChunkID != nil {
				id, ok := numberToID[*c.ParentChunkID]
				if !ok {
					return fmt.Errorf("bible chunk %d references unknown parent %d", c.ChunkNumber, *c.ParentChunkID)
				}
				dbParentID = id
			}
			res, err := stmt.ExecContext(ctx, bibleID, c.ChunkNumber, c.Heading, c.Level,
				c.Content, c.ContentHash, dbParentID, c.MetadataJSON)
			if err != nil {
				return fmt.Errorf("save bible chunk %d: %w", c.ChunkNumber, err)
			}
			newID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			numberToID[int64(c.ChunkNumber)] = newID
		}
		return nil
	})
}

// ListBibleChunks returns a bible's chunks ordered by chunk_number, with
// ParentChunkID resolved to the database id SaveBibleChunks assigned.
func (s *Store) ListBibleChunks(ctx context.Context, bibleID int64) ([]*BibleChunkRow, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, bible_id, chunk_number, heading, level, content, content_hash, parent_chunk_id, metadata
		FROM bible_chunks WHERE bible_id = ? ORDER BY chunk_number`, bibleID)
	if err != nil {
		return nil, fmt.Errorf("list bible chunks: %w", err)
	}
	defer rows.Close()

	var out []*BibleChunkRow
	for rows.Next() {
		c := &BibleChunkRow{}
		var parent sql.NullInt64
		if err := rows.Scan(&c.ID, &c.BibleID, &c.ChunkNumber, &c.Heading, &c.Level,
			&c.Content, &c.ContentHash, &parent, &c.MetadataJSON); err != nil {
			return nil, err
		}
		if parent.Valid {
			id := parent.Int64
			c.ParentChunkID = &id
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteBible(ctx context.Context, bibleID int64) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM script_bibles WHERE id = ?`, bibleID)
		return err
	})
}

func (s *Store) SaveIndexCheckpoint(ctx context.Context, cp *IndexCheckpoint) error {
	return s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO index_checkpoints(script_id, gitignore_hash, last_indexed)
			VALUES (?, ?, ?)
			ON CONFLICT(script_id) DO UPDATE SET
				gitignore_hash = excluded.gitignore_hash,
				last_indexed = excluded.last_indexed
		`, cp.ScriptID, cp.GitignoreHash, cp.LastIndexed)
		return err
	})
}

func (s *Store) LoadIndexCheckpoint(ctx context.Context, scriptID int64) (*IndexCheckpoint, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT script_id, gitignore_hash, last_indexed FROM index_checkpoints WHERE script_id = ?`, scriptID)
	cp := &IndexCheckpoint{}
	err := row.Scan(&cp.ScriptID, &cp.GitignoreHash, &cp.LastIndexed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}
