// Package store provides persistence for chunks, query logs, and vectors.
// Chunks are produced by the ingestion pipeline and are read-only to the
// retrieval core; query logs are written by the analytics recorder.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Chunk is an immutable unit of retrievable text.
type Chunk struct {
	// ID is the unique chunk identifier.
	ID string

	// DocumentID is the owning note/document.
	DocumentID string

	// UserID is the chunk owner.
	UserID string

	// Text is the chunk body.
	Text string

	// Title is the owning document's title.
	Title string

	// Tags are user-assigned labels on the owning document.
	Tags []string

	// Summary is an optional generated summary of the chunk.
	Summary string

	// ChunkIndex is the position within the owning document (0-based).
	ChunkIndex int

	// Embedding is the chunk's embedding vector.
	Embedding []float32

	// EmbeddingProvider and EmbeddingModel identify how the embedding
	// was produced.
	EmbeddingProvider string
	EmbeddingModel    string

	// CreatedAt is when the chunk was ingested.
	CreatedAt time.Time
}

// VectorResult is a single hit from the vector index.
type VectorResult struct {
	ID         string
	DocumentID string
	Text       string
	Title      string
	Tags       []string
	ChunkIndex int

	// Score is the cosine similarity in [-1, 1] (practically [0, 1]).
	Score float64

	// Metadata carries provider-specific extras.
	Metadata map[string]string
}

// LexicalResult is a single hit from full-text search.
type LexicalResult struct {
	ID         string
	DocumentID string
	Text       string
	Title      string
	Tags       []string
	ChunkIndex int

	// Score is a non-negative term-frequency relevance score.
	Score float64

	// Rank is the 1-based position in the result list.
	Rank int

	// Snippet is an optional highlighted excerpt (pushed-down search only).
	Snippet string
}

// QueryLog records one top-level retrieval invocation.
// Stage timings are nil when the stage did not run.
type QueryLog struct {
	ID     string
	UserID string
	Query  string

	// Stage timings in milliseconds.
	EmbeddingMs     *int64
	VectorSearchMs  *int64
	LexicalSearchMs *int64
	RerankMs        *int64
	TotalMs         int64

	// Result counts.
	RetrievedCount int
	FinalCount     int

	// Score aggregates.
	AvgCosineScore  float64
	TopCosineScore  float64
	AvgRerankScore  float64
	TopRerankScore  float64
	AvgLexicalScore float64

	// Feature flags active for this query.
	HybridSearch   bool
	HyDE           bool
	QueryExpansion bool
	Reranking      bool

	// Feedback is attached after the fact; empty label means no feedback.
	FeedbackLabel    string
	FeedbackCategory string
	FeedbackComment  string

	CreatedAt time.Time
}

// HasFeedback reports whether a feedback label has been recorded.
func (l *QueryLog) HasFeedback() bool {
	return l.FeedbackLabel != ""
}

// ChunkStore provides read access to a user's chunk set.
type ChunkStore interface {
	// Put inserts or replaces chunks.
	Put(ctx context.Context, chunks []*Chunk) error

	// Get fetches chunks by ID. Missing IDs are silently skipped.
	Get(ctx context.Context, ids []string) ([]*Chunk, error)

	// ListByUser returns all chunks owned by a user.
	ListByUser(ctx context.Context, userID string) ([]*Chunk, error)

	// SearchText runs database-native full-text ranking over a user's
	// chunks. Results are ordered by descending relevance with 1-based
	// ranks assigned.
	SearchText(ctx context.Context, query, userID string, topK int) ([]*LexicalResult, error)

	// Delete removes chunks by ID.
	Delete(ctx context.Context, ids []string) error

	// Close releases resources.
	Close() error
}

// QueryLogStore provides create/read/update access to query logs.
type QueryLogStore interface {
	// Insert persists a new query log.
	Insert(ctx context.Context, log *QueryLog) error

	// Get fetches a log by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*QueryLog, error)

	// SetFeedback sets the feedback triple on an existing log.
	// Returns ErrNotFound if the log does not exist. Last write wins.
	SetFeedback(ctx context.Context, id, label, category, comment string) error

	// ListByUser returns a user's logs created at or after since.
	// A zero since returns all logs for the user.
	ListByUser(ctx context.Context, userID string, since time.Time) ([]*QueryLog, error)

	// Close releases resources.
	Close() error
}

// VectorStore is the nearest-neighbor index over chunk embeddings.
type VectorStore interface {
	// Add indexes chunks by their embeddings. Existing IDs are updated.
	Add(ctx context.Context, chunks []*Chunk) error

	// Search returns up to topK chunks owned by userID whose embeddings
	// have cosine similarity >= minScore with the query embedding,
	// ordered by descending similarity.
	Search(ctx context.Context, embedding []float32, userID string, topK int, minScore float64) ([]*VectorResult, error)

	// Delete removes vectors by chunk ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of indexed vectors for a user.
	Count(userID string) int

	// Close releases resources.
	Close() error
}
