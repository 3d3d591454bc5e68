package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// bleveDocument is what gets indexed into Bleve — unlike the teacher's
// code-search index, prose content needs no custom camelCase/snake_case
// tokenizer, so this uses Bleve's built-in standard English analyzer.
type bleveDocument struct {
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
	ScriptID   int64  `json:"script_id"`
	Kind       string `json:"kind"`
	Character  string `json:"character"`
	Content    string `json:"content"`
}

// BleveFullText implements FullTextIndex as an alternate backend to
// SQLiteFullText, selected via the "bleve" full_text_backend config
// option. It keeps no custom tokenizer or stop-word list: bleve's
// default index mapping already stems and removes English stop words.
type BleveFullText struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ FullTextIndex = (*BleveFullText)(nil)

// NewBleveFullText opens an existing index at path, or creates a new one
// using bleve's default mapping if absent. An empty path creates a
// transient in-memory index for tests.
func NewBleveFullText(path string) (*BleveFullText, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory bleve index: %w", err)
		}
		return &BleveFullText{index: idx}, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bleve index at %s: %w", path, err)
		}
		return &BleveFullText{index: idx, path: path}, nil
	}

	idx, err := bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index at %s: %w", path, err)
	}
	return &BleveFullText{index: idx, path: path}, nil
}

func docID(entityType EntityType, entityID int64, kind string) string {
	return string(entityType) + ":" + strconv.FormatInt(entityID, 10) + ":" + kind
}

func (idx *BleveFullText) Index(ctx context.Context, docs []FullTextDocument) error {
	if len(docs) == 0 {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("bleve index is closed")
	}

	batch := idx.index.NewBatch()
	for _, d := range docs {
		id := d.ID
		if id == "" {
			id = docID(d.EntityType, d.EntityID, d.Kind)
		}
		doc := bleveDocument{
			EntityType: string(d.EntityType),
			EntityID:   d.EntityID,
			ScriptID:   d.ScriptID,
			Kind:       d.Kind,
			Character:  d.Character,
			Content:    d.Text,
		}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", id, err)
		}
	}
	return idx.index.Batch(batch)
}

func (idx *BleveFullText) Delete(ctx context.Context, entityType EntityType, entityID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("bleve index is closed")
	}

	// bleve has no prefix-delete API, so find every doc for this entity by
	// its indexed entity_type/entity_id fields, then batch-delete by ID.
	prefix := string(entityType) + ":" + strconv.FormatInt(entityID, 10) + ":"
	termQuery := bleve.NewMatchQuery(string(entityType))
	termQuery.SetField("entity_type")

	searchReq := bleve.NewSearchRequest(termQuery)
	searchReq.Size = 10000
	result, err := idx.index.Search(searchReq)
	if err != nil {
		return fmt.Errorf("search for delete: %w", err)
	}

	batch := idx.index.NewBatch()
	for _, hit := range result.Hits {
		if strings.HasPrefix(hit.ID, prefix) {
			batch.Delete(hit.ID)
		}
	}
	return idx.index.Batch(batch)
}

func (idx *BleveFullText) Search(ctx context.Context, q string, limit int) ([]FullTextResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("bleve index is closed")
	}
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}

	matchQuery := bleve.NewMatchQuery(q)
	matchQuery.SetField("content")
	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.Fields = []string{"entity_type", "entity_id", "script_id", "kind", "character", "content"}

	result, err := idx.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	results := make([]FullTextResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, FullTextResult{
			Doc: FullTextDocument{
				ID:         hit.ID,
				EntityType: EntityType(fieldString(hit.Fields, "entity_type")),
				EntityID:   fieldInt64(hit.Fields, "entity_id"),
				ScriptID:   fieldInt64(hit.Fields, "script_id"),
				Kind:       fieldString(hit.Fields, "kind"),
				Character:  fieldString(hit.Fields, "character"),
				Text:       fieldString(hit.Fields, "content"),
			},
			Score: hit.Score,
		})
	}
	return results, nil
}

func fieldString(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

func fieldInt64(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}

func (idx *BleveFullText) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil
	}
	idx.closed = true
	return idx.index.Close()
}
