package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	rerrors "github.com/secondbrain/retrieval/internal/errors"
)

// HNSWConfig holds tuning parameters for the in-process vector index.
type HNSWConfig struct {
	// Dimensions is the required embedding size. Zero means the index
	// adopts the dimensionality of the first vector added.
	Dimensions int

	// M is the maximum number of graph connections per node.
	M int

	// EfSearch is the search expansion factor.
	EfSearch int
}

// DefaultHNSWConfig returns the recommended parameters for
// personal-knowledge-base scale indexes (tens of thousands of chunks).
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		M:        16,
		EfSearch: 20,
	}
}

// vectorRecord is the metadata kept alongside each indexed vector so
// search hits can be returned without a round trip to the chunk store.
type vectorRecord struct {
	ID         string
	DocumentID string
	Text       string
	Title      string
	Tags       []string
	ChunkIndex int
}

// userIndex is the per-user HNSW graph with its ID mappings.
// Deletion is lazy: removing a mapping orphans the graph node, which is
// then skipped during search. coder/hnsw misbehaves when the last node
// is deleted from a graph, so nodes are never removed directly.
type userIndex struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	records map[uint64]*vectorRecord
	nextKey uint64
}

// HNSWVectorStore implements VectorStore with one HNSW graph per user,
// so similarity search never crosses ownership boundaries.
type HNSWVectorStore struct {
	mu     sync.RWMutex
	users  map[string]*userIndex
	config HNSWConfig
	dims   int
	closed bool
}

// Verify interface implementation at compile time
var _ VectorStore = (*HNSWVectorStore)(nil)

// NewHNSWVectorStore creates an empty vector store.
func NewHNSWVectorStore(cfg HNSWConfig) *HNSWVectorStore {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}
	return &HNSWVectorStore{
		users:  make(map[string]*userIndex),
		config: cfg,
		dims:   cfg.Dimensions,
	}
}

func (s *HNSWVectorStore) newUserIndex() *userIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = s.config.M
	graph.EfSearch = s.config.EfSearch
	graph.Ml = 0.25
	return &userIndex{
		graph:   graph,
		idMap:   make(map[string]uint64),
		records: make(map[uint64]*vectorRecord),
	}
}

// Add indexes chunks by their embeddings. Existing IDs are replaced.
func (s *HNSWVectorStore) Add(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return rerrors.New(rerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("chunk %s has no embedding", chunk.ID), nil)
		}
		if s.dims == 0 {
			s.dims = len(chunk.Embedding)
		}
		if len(chunk.Embedding) != s.dims {
			return rerrors.New(rerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", s.dims, len(chunk.Embedding)), nil)
		}
	}

	for _, chunk := range chunks {
		idx := s.users[chunk.UserID]
		if idx == nil {
			idx = s.newUserIndex()
			s.users[chunk.UserID] = idx
		}

		if oldKey, exists := idx.idMap[chunk.ID]; exists {
			delete(idx.records, oldKey)
			delete(idx.idMap, chunk.ID)
		}

		key := idx.nextKey
		idx.nextKey++

		vec := make([]float32, len(chunk.Embedding))
		copy(vec, chunk.Embedding)
		normalizeInPlace(vec)

		idx.graph.Add(hnsw.MakeNode(key, vec))
		idx.idMap[chunk.ID] = key
		idx.records[key] = &vectorRecord{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Text:       chunk.Text,
			Title:      chunk.Title,
			Tags:       chunk.Tags,
			ChunkIndex: chunk.ChunkIndex,
		}
	}

	return nil
}

// Search returns up to topK of userID's chunks with cosine similarity
// >= minScore, ordered by descending similarity.
func (s *HNSWVectorStore) Search(ctx context.Context, embedding []float32, userID string, topK int, minScore float64) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if topK <= 0 {
		return []*VectorResult{}, nil
	}

	idx := s.users[userID]
	if idx == nil || idx.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	if s.dims != 0 && len(embedding) != s.dims {
		return nil, rerrors.New(rerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", s.dims, len(embedding)), nil)
	}

	query := make([]float32, len(embedding))
	copy(query, embedding)
	normalizeInPlace(query)

	// Overfetch to compensate for lazily deleted nodes still in the graph.
	orphans := idx.graph.Len() - len(idx.idMap)
	nodes := idx.graph.Search(query, topK+orphans)

	results := make([]*VectorResult, 0, topK)
	for _, node := range nodes {
		record, live := idx.records[node.Key]
		if !live {
			continue
		}

		// CosineDistance returns 1 - similarity for unit vectors.
		score := 1.0 - float64(idx.graph.Distance(query, node.Value))
		if score < minScore {
			continue
		}

		results = append(results, &VectorResult{
			ID:         record.ID,
			DocumentID: record.DocumentID,
			Text:       record.Text,
			Title:      record.Title,
			Tags:       record.Tags,
			ChunkIndex: record.ChunkIndex,
			Score:      score,
		})
		if len(results) == topK {
			break
		}
	}

	return results, nil
}

// Delete removes vectors by chunk ID across all users.
func (s *HNSWVectorStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, id := range ids {
		for _, idx := range s.users {
			if key, exists := idx.idMap[id]; exists {
				delete(idx.records, key)
				delete(idx.idMap, id)
			}
		}
	}

	return nil
}

// Count returns the number of live vectors for a user.
func (s *HNSWVectorStore) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	idx := s.users[userID]
	if idx == nil {
		return 0
	}
	return len(idx.idMap)
}

// Close releases resources.
func (s *HNSWVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.users = nil
	return nil
}

// normalizeInPlace scales v to unit length. Zero vectors are left as-is.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
