package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteFullText implements FullTextIndex using a SQLite FTS5 virtual
// table. Unlike code search, screenplay and bible prose needs no custom
// tokenizer — FTS5's built-in unicode61 tokenizer with the porter
// stemmer handles English prose directly.
type SQLiteFullText struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ FullTextIndex = (*SQLiteFullText)(nil)

// NewSQLiteFullText opens (creating if absent) a SQLite FTS5 index at
// path, or an in-memory index when path is empty.
func NewSQLiteFullText(path string) (*SQLiteFullText, error) {
	dsn := ":memory:"
	if path != "" {
		if err := validateSQLiteFullTextIntegrity(path); err != nil {
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("full-text index corrupted at %s and cannot remove: %w (original: %v)", path, removeErr, err)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open full-text index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	idx := &SQLiteFullText{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *SQLiteFullText) initSchema() error {
	_, err := idx.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
			doc_id UNINDEXED,
			entity_type UNINDEXED,
			entity_id UNINDEXED,
			script_id UNINDEXED,
			kind UNINDEXED,
			character UNINDEXED,
			content,
			tokenize = 'porter unicode61'
		);
	`)
	return err
}

// Index upserts documents. FTS5 doesn't support UPDATE/REPLACE on content
// tables, so each doc is deleted and re-inserted.
func (idx *SQLiteFullText) Index(ctx context.Context, docs []FullTextDocument) error {
	if len(docs) == 0 {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("full-text index is closed")
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM fts_content WHERE doc_id = ?`)
	if err != nil {
		return err
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO fts_content(doc_id, entity_type, entity_id, script_id, kind, character, content)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, d := range docs {
		if _, err := del.ExecContext(ctx, d.ID); err != nil {
			return fmt.Errorf("delete stale doc %s: %w", d.ID, err)
		}
		if _, err := ins.ExecContext(ctx, d.ID, string(d.EntityType), d.EntityID, d.ScriptID, d.Kind, d.Character, d.Text); err != nil {
			return fmt.Errorf("index doc %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes every document belonging to an entity (all dialogue and
// action rows for a scene, for instance).
func (idx *SQLiteFullText) Delete(ctx context.Context, entityType EntityType, entityID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("full-text index is closed")
	}
	_, err := idx.db.ExecContext(ctx,
		`DELETE FROM fts_content WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID)
	return err
}

// Search runs an FTS5 MATCH query and returns results ranked by bm25().
// FTS5's bm25() returns negative values where lower is a better match; we
// negate so higher scores mean better matches, matching the rest of the
// ranking pipeline (§4.7).
func (idx *SQLiteFullText) Search(ctx context.Context, query string, limit int) ([]FullTextResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("full-text index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	rows, err := idx.db.QueryContext(ctx, `
		SELECT doc_id, entity_type, entity_id, script_id, kind, character, content, bm25(fts_content) AS score
		FROM fts_content
		WHERE fts_content MATCH ?
		ORDER BY score
		LIMIT ?`, query, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	var results []FullTextResult
	for rows.Next() {
		var r FullTextResult
		var entityType string
		if err := rows.Scan(&r.Doc.ID, &entityType, &r.Doc.EntityID, &r.Doc.ScriptID,
			&r.Doc.Kind, &r.Doc.Character, &r.Doc.Text, &r.Score); err != nil {
			return nil, err
		}
		r.Doc.EntityType = EntityType(entityType)
		r.Score = -r.Score
		results = append(results, r)
	}
	return results, rows.Err()
}

func (idx *SQLiteFullText) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	_, _ = idx.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return idx.db.Close()
}

// validateSQLiteFullTextIntegrity mirrors the corruption check the teacher
// ran before opening a BM25 index, adapted to the fts_content schema used
// here: if the file exists but fails PRAGMA integrity_check or is missing
// the fts_content table, the index is treated as absent and rebuilt.
func validateSQLiteFullTextIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("full-text index corrupted: %s", result)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='fts_content'`).
		Scan(&count); err != nil {
		return fmt.Errorf("query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("fts_content table missing")
	}
	return nil
}
