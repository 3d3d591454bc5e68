package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// characterBoost and locationBoost are the constant rank boosts §4.7 calls
// for on an exact structured-filter match, added on top of the match-kind
// weight so a scene that satisfies a character/location filter outranks
// one that only satisfies it incidentally through free-text matching.
const (
	characterBoost = 10.0
	locationBoost  = 10.0

	weightDialogue = 4.0
	weightAction   = 3.0
	weightHeading  = 2.0
	weightBody     = 1.0
)

// SearchScenes compiles f into one SQL statement over scripts JOIN scenes
// [LEFT JOIN dialogues] [LEFT JOIN actions], with every user-supplied value
// in the WHERE clause bound as a parameter. The ranking expression is the
// exception: it embeds the text query as a quote-escaped string literal
// (see escapeSQLLiteral) rather than binding it. Ranking weights dialogue matches over action
// matches over scene-heading matches over scene-body matches, and adds a
// constant boost per satisfied character/location filter. A separate COUNT
// query over the same WHERE clause supplies the pagination total.
func (s *Store) SearchScenes(ctx context.Context, f SceneFilter) ([]SceneMatch, int, error) {
	where, args := sceneWhereClause(f)

	scoreExpr := sceneScoreExpr(f)

	query := fmt.Sprintf(`
		SELECT sc.id, sc.script_id, sc.scene_number, sc.heading, sc.location, sc.time_of_day,
			sc.content, sc.content_hash, sc.boneyard_metadata, sc.last_read_at, sc.updated_at,
			scr.id, scr.title, scr.author, scr.season, scr.episode, scr.file_path,
			scr.metadata, scr.created_at, scr.updated_at,
			%s AS score
		FROM scenes sc
		JOIN scripts scr ON scr.id = sc.script_id
		LEFT JOIN dialogues d ON d.scene_id = sc.id
		LEFT JOIN actions a ON a.scene_id = sc.id
		WHERE %s
		GROUP BY sc.id
		ORDER BY score DESC, sc.script_id, sc.scene_number
		LIMIT ? OFFSET ?
	`, scoreExpr, where)

	total, err := s.countSceneMatches(ctx, where, args)
	if err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	queryArgs := append(append([]any{}, args...), limit, f.Offset)

	rows, err := s.reader.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("search scenes: %w", err)
	}
	defer rows.Close()

	var out []SceneMatch
	for rows.Next() {
		var m SceneMatch
		var lastRead sql.NullTime
		if err := rows.Scan(
			&m.Scene.ID, &m.Scene.ScriptID, &m.Scene.SceneNumber, &m.Scene.Heading, &m.Scene.Location,
			&m.Scene.TimeOfDay, &m.Scene.Content, &m.Scene.ContentHash, &m.Scene.BoneyardMetaJSON,
			&lastRead, &m.Scene.UpdatedAt,
			&m.Script.ID, &m.Script.Title, &m.Script.Author, &m.Script.Season, &m.Script.Episode,
			&m.Script.FilePath, &m.Script.MetadataJSON, &m.Script.CreatedAt, &m.Script.UpdatedAt,
			&m.Score,
		); err != nil {
			return nil, 0, err
		}
		if lastRead.Valid {
			m.Scene.LastReadAt = lastRead.Time
		}
		m.MatchKind = matchKindFromScore(m.Score)
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (s *Store) countSceneMatches(ctx context.Context, where string, args []any) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(DISTINCT sc.id)
		FROM scenes sc
		JOIN scripts scr ON scr.id = sc.script_id
		LEFT JOIN dialogues d ON d.scene_id = sc.id
		LEFT JOIN actions a ON a.scene_id = sc.id
		WHERE %s
	`, where)
	var total int
	if err := s.reader.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count scene matches: %w", err)
	}
	return total, nil
}

// sceneWhereClause appends one parameterized predicate per populated filter
// field, joined with AND, and returns the bound arguments in the order the
// placeholders appear.
func sceneWhereClause(f SceneFilter) (string, []any) {
	clauses := []string{"1 = 1"}
	var args []any

	if f.Project != "" {
		clauses = append(clauses, "scr.title = ?")
		args = append(args, f.Project)
	}
	if f.SeasonStart != nil {
		clauses = append(clauses, "scr.season >= ?")
		args = append(args, *f.SeasonStart)
	}
	if f.SeasonEnd != nil {
		clauses = append(clauses, "scr.season <= ?")
		args = append(args, *f.SeasonEnd)
	}
	if f.EpisodeStart != nil {
		clauses = append(clauses, "scr.episode >= ?")
		args = append(args, *f.EpisodeStart)
	}
	if f.EpisodeEnd != nil {
		clauses = append(clauses, "scr.episode <= ?")
		args = append(args, *f.EpisodeEnd)
	}
	if len(f.Characters) > 0 {
		placeholders := make([]string, len(f.Characters))
		for i, c := range f.Characters {
			placeholders[i] = "?"
			args = append(args, c)
		}
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM dialogues dc WHERE dc.scene_id = sc.id AND dc.character IN (%s))",
			strings.Join(placeholders, ", ")))
	}
	if len(f.Locations) > 0 {
		placeholders := make([]string, len(f.Locations))
		for i, l := range f.Locations {
			placeholders[i] = "?"
			args = append(args, l)
		}
		clauses = append(clauses, fmt.Sprintf("sc.location IN (%s)", strings.Join(placeholders, ", ")))
	}
	if f.Dialogue != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM dialogues dd WHERE dd.scene_id = sc.id AND dd.text LIKE ?)")
		args = append(args, "%"+f.Dialogue+"%")
	}
	if f.Action != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM actions ad WHERE ad.scene_id = sc.id AND ad.text LIKE ?)")
		args = append(args, "%"+f.Action+"%")
	}
	if f.TextQuery != "" {
		like := "%" + f.TextQuery + "%"
		clauses = append(clauses,
			"(sc.heading LIKE ? OR sc.content LIKE ? OR d.text LIKE ? OR a.text LIKE ?)")
		args = append(args, like, like, like, like)
	}

	return strings.Join(clauses, " AND "), args
}

// sceneScoreExpr builds the ranking expression: the highest match-kind
// weight satisfied by the free-text query, plus a constant boost per
// structured character/location filter that was supplied (and therefore,
// given the WHERE clause above, satisfied by every returned row).
func sceneScoreExpr(f SceneFilter) string {
	boost := 0.0
	if len(f.Characters) > 0 {
		boost += characterBoost
	}
	if len(f.Locations) > 0 {
		boost += locationBoost
	}

	if f.TextQuery == "" {
		return fmt.Sprintf("%g", boost)
	}

	like := "'%" + escapeSQLLiteral(f.TextQuery) + "%'"
	return fmt.Sprintf(`(%g + MAX(CASE
		WHEN d.text LIKE %s THEN %g
		WHEN a.text LIKE %s THEN %g
		WHEN sc.heading LIKE %s THEN %g
		WHEN sc.content LIKE %s THEN %g
		ELSE 0 END))`,
		boost, like, weightDialogue, like, weightAction, like, weightHeading, like, weightBody)
}

// escapeSQLLiteral escapes single quotes for the literal LIKE patterns
// sceneScoreExpr embeds directly in the SQL text; the WHERE clause itself
// never interpolates user input, only the ranking CASE expression does,
// and only after this escape.
func escapeSQLLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func matchKindFromScore(score float64) string {
	switch {
	case score >= weightDialogue:
		return "dialogue"
	case score >= weightAction:
		return "action"
	case score >= weightHeading:
		return "heading"
	case score > 0:
		return "body"
	default:
		return ""
	}
}

// SearchBibleChunks answers f's Project/TextQuery fields against
// script_bibles/bible_chunks for the include_bible / only_bible response
// paths (§4.7); structured scene-only filters (characters, dialogue,
// action) do not apply to bible content and are ignored here.
func (s *Store) SearchBibleChunks(ctx context.Context, f SceneFilter) ([]BibleChunkMatch, int, error) {
	clauses := []string{"1 = 1"}
	var args []any
	if f.Project != "" {
		clauses = append(clauses, "scr.title = ?")
		args = append(args, f.Project)
	}
	if f.TextQuery != "" {
		clauses = append(clauses, "(bc.heading LIKE ? OR bc.content LIKE ?)")
		like := "%" + f.TextQuery + "%"
		args = append(args, like, like)
	}
	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM bible_chunks bc
		JOIN script_bibles b ON b.id = bc.bible_id
		JOIN scripts scr ON scr.id = b.script_id
		WHERE %s`, where)
	if err := s.reader.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bible chunk matches: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT bc.id, bc.bible_id, bc.chunk_number, bc.heading, bc.level, bc.content,
			bc.content_hash, bc.parent_chunk_id, bc.metadata,
			b.id, b.script_id, b.file_path, b.title, b.file_hash, b.metadata, b.updated_at,
			scr.id, scr.title, scr.author, scr.season, scr.episode, scr.file_path,
			scr.metadata, scr.created_at, scr.updated_at
		FROM bible_chunks bc
		JOIN script_bibles b ON b.id = bc.bible_id
		JOIN scripts scr ON scr.id = b.script_id
		WHERE %s
		ORDER BY b.id, bc.chunk_number
		LIMIT ? OFFSET ?`, where)
	queryArgs := append(append([]any{}, args...), limit, f.Offset)

	rows, err := s.reader.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("search bible chunks: %w", err)
	}
	defer rows.Close()

	var out []BibleChunkMatch
	for rows.Next() {
		var m BibleChunkMatch
		var parentID sql.NullInt64
		if err := rows.Scan(
			&m.Chunk.ID, &m.Chunk.BibleID, &m.Chunk.ChunkNumber, &m.Chunk.Heading, &m.Chunk.Level,
			&m.Chunk.Content, &m.Chunk.ContentHash, &parentID, &m.Chunk.MetadataJSON,
			&m.Bible.ID, &m.Bible.ScriptID, &m.Bible.FilePath, &m.Bible.Title, &m.Bible.FileHash,
			&m.Bible.MetadataJSON, &m.Bible.UpdatedAt,
			&m.Script.ID, &m.Script.Title, &m.Script.Author, &m.Script.Season, &m.Script.Episode,
			&m.Script.FilePath, &m.Script.MetadataJSON, &m.Script.CreatedAt, &m.Script.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		if parentID.Valid {
			id := parentID.Int64
			m.Chunk.ParentChunkID = &id
		}
		m.Score = locationBoost // constant: bible matches aren't weighted by kind
		out = append(out, m)
	}
	return out, total, rows.Err()
}
