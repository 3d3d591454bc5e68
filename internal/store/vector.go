package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// vectorKey identifies one (entity_type, entity_id) pair inside a single
// per-model graph. Fields are exported so gob (used by Save/Load) can
// serialize it as a map key.
type vectorKey struct {
	EntityType EntityType
	EntityID   int64
}

// graphKey selects which HNSW graph a vector belongs to: embeddings from
// different models are never comparable, so each (entity_type, model)
// pair gets its own graph (§4.5).
type graphKey struct {
	entityType EntityType
	model      string
}

type modelGraph struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[vectorKey]uint64
	keyMap  map[uint64]vectorKey
	nextKey uint64
}

func newModelGraph() *modelGraph {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return &modelGraph{
		graph:  g,
		idMap:  make(map[vectorKey]uint64),
		keyMap: make(map[uint64]vectorKey),
	}
}

// HNSWIndex implements VectorIndex with one coder/hnsw graph per
// (entity_type, model) combination, kept entirely in memory and persisted
// to disk via Save/Load.
type HNSWIndex struct {
	mu     sync.RWMutex
	graphs map[graphKey]*modelGraph
	path   string
	closed bool
}

var _ VectorIndex = (*HNSWIndex)(nil)

// gobGraphState is the on-disk representation of one (entity_type, model)
// graph's ID mappings; the HNSW graph itself is serialized separately via
// hnsw.Graph.Export, matched up by index position.
type gobGraphState struct {
	EntityType EntityType
	Model      string
	IDMap      map[vectorKey]uint64
	NextKey    uint64
}

func init() {
	gob.Register(vectorKey{})
}

// NewHNSWIndex creates an empty in-memory vector index. Call Load to
// restore persisted state from path.
func NewHNSWIndex(path string) *HNSWIndex {
	return &HNSWIndex{graphs: make(map[graphKey]*modelGraph), path: path}
}

func (idx *HNSWIndex) graphFor(entityType EntityType, model string) *modelGraph {
	key := graphKey{entityType, model}
	g, ok := idx.graphs[key]
	if !ok {
		g = newModelGraph()
		idx.graphs[key] = g
	}
	return g
}

// Store inserts or replaces the vector for (entityType, entityID) in the
// model's graph. Replacement uses lazy deletion — the stale node is
// orphaned from the ID maps rather than removed from the graph, avoiding
// a known coder/hnsw issue when the last remaining node is deleted.
func (idx *HNSWIndex) Store(entityType EntityType, entityID int64, model string, vec []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("vector index is closed")
	}

	g := idx.graphFor(entityType, model)
	key := vectorKey{EntityType: entityType, EntityID: entityID}
	if existing, ok := g.idMap[key]; ok {
		delete(g.keyMap, existing)
		delete(g.idMap, key)
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	nodeKey := g.nextKey
	g.nextKey++
	g.graph.Add(hnsw.MakeNode(nodeKey, normalized))
	g.idMap[key] = nodeKey
	g.keyMap[nodeKey] = key
	return nil
}

// Delete removes an entity's vectors from every model graph it appears in.
func (idx *HNSWIndex) Delete(entityType EntityType, entityID int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("vector index is closed")
	}
	key := vectorKey{EntityType: entityType, EntityID: entityID}
	for gk, g := range idx.graphs {
		if gk.entityType != entityType {
			continue
		}
		if nodeKey, ok := g.idMap[key]; ok {
			delete(g.keyMap, nodeKey)
			delete(g.idMap, key)
		}
	}
	return nil
}

// SearchSimilar returns the topK nearest entities to queryVec within the
// (entityType, model) graph, scored by cosine similarity.
func (idx *HNSWIndex) SearchSimilar(entityType EntityType, model string, queryVec []float32, topK int) ([]VectorResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("vector index is closed")
	}

	g, ok := idx.graphs[graphKey{entityType, model}]
	if !ok || g.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(queryVec))
	copy(normalized, queryVec)
	normalizeVectorInPlace(normalized)

	nodes := g.graph.Search(normalized, topK)
	results := make([]VectorResult, 0, len(nodes))
	for _, node := range nodes {
		key, ok := g.keyMap[node.Key]
		if !ok {
			continue // lazily deleted
		}
		distance := g.graph.Distance(normalized, node.Value)
		results = append(results, VectorResult{
			EntityType: key.EntityType,
			EntityID:   key.EntityID,
			Score:      distanceToScore(distance),
		})
	}
	return results, nil
}

// migrate_from_blob_storage imports legacy scene_embeddings BLOB rows
// (stored as {dimensions:uint32, float32...} little-endian buffers) into
// the in-memory HNSW graphs, for scripts indexed before the vector index
// existed (§4.5).
func (idx *HNSWIndex) MigrateFromBlobStorage(rows []BlobEmbeddingRow) (int, error) {
	migrated := 0
	for _, r := range rows {
		vec, err := DecodeEmbeddingBlob(r.Vector)
		if err != nil {
			return migrated, fmt.Errorf("decode blob for %s:%d: %w", r.EntityType, r.EntityID, err)
		}
		if err := idx.Store(r.EntityType, r.EntityID, r.Model, vec); err != nil {
			return migrated, err
		}
		migrated++
	}
	return migrated, nil
}

// BlobEmbeddingRow is one scene_embeddings row read back for migration.
type BlobEmbeddingRow struct {
	EntityType EntityType
	EntityID   int64
	Model      string
	Vector     []byte
}

// Save atomically persists every graph to path via a temp-file-then-rename
// write, gob-encoding ID mappings and using hnsw.Graph.Export for the
// graph structure itself.
func (idx *HNSWIndex) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return fmt.Errorf("vector index is closed")
	}
	if idx.path == "" {
		return nil
	}

	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := idx.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}

	enc := gob.NewEncoder(f)
	if err := enc.Encode(len(idx.graphs)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode graph count: %w", err)
	}
	for gk, g := range idx.graphs {
		state := gobGraphState{EntityType: gk.entityType, Model: gk.model, IDMap: g.idMap, NextKey: g.nextKey}
		if err := enc.Encode(state); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("encode graph state: %w", err)
		}
		if err := g.graph.Export(f); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("export graph %s/%s: %w", gk.entityType, gk.model, err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp index file: %w", err)
	}
	return os.Rename(tmp, idx.path)
}

// Load restores graphs previously written by Save.
func (idx *HNSWIndex) Load() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.path == "" {
		return nil
	}
	f, err := os.Open(idx.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	// gob and Graph.Import must share one buffered reader: a gob.Decoder
	// over the bare file would read ahead past the graph bytes.
	br := bufio.NewReader(f)
	dec := gob.NewDecoder(br)
	var count int
	if err := dec.Decode(&count); err != nil {
		return fmt.Errorf("decode graph count: %w", err)
	}

	graphs := make(map[graphKey]*modelGraph, count)
	for i := 0; i < count; i++ {
		var state gobGraphState
		if err := dec.Decode(&state); err != nil {
			return fmt.Errorf("decode graph state: %w", err)
		}
		g := newModelGraph()
		g.idMap = state.IDMap
		g.nextKey = state.NextKey
		for key, nodeKey := range g.idMap {
			g.keyMap[nodeKey] = key
		}
		if err := g.graph.Import(br); err != nil {
			return fmt.Errorf("import graph %s/%s: %w", state.EntityType, state.Model, err)
		}
		graphs[graphKey{state.EntityType, state.Model}] = g
	}
	idx.graphs = graphs
	return nil
}

func (idx *HNSWIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts cosine distance (0..2) into a similarity score
// in [0, 1]: identical vectors score 1, maximally dissimilar score 0.
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
