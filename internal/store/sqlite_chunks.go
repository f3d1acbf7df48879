package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Relative per-occurrence weight of title matches vs text matches.
// A query term found in a document title is a much stronger relevance
// signal than the same term buried in the body.
const (
	titleMatchWeight = 3.0
	textMatchWeight  = 1.0
)

// SQLiteChunkStore implements ChunkStore using SQLite with an FTS5
// virtual table for pushed-down full-text ranking.
type SQLiteChunkStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Verify interface implementation at compile time
var _ ChunkStore = (*SQLiteChunkStore)(nil)

// NewSQLiteChunkStore creates a chunk store backed by the given database.
func NewSQLiteChunkStore(db *sql.DB) (*SQLiteChunkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	s := &SQLiteChunkStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize chunk schema: %w", err)
	}
	return s, nil
}

// initSchema creates the chunk tables and the FTS5 index.
func (s *SQLiteChunkStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		summary TEXT NOT NULL DEFAULT '',
		chunk_index INTEGER NOT NULL DEFAULT 0,
		embedding TEXT NOT NULL DEFAULT '[]',
		embedding_provider TEXT NOT NULL DEFAULT '',
		embedding_model TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_user ON chunks(user_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	-- FTS5 virtual table for full-text search with BM25 scoring.
	-- Column order matters: bm25() weights are positional (title, text).
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		title,
		text,
		chunk_id UNINDEXED,
		user_id UNINDEXED,
		tokenize='unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put inserts or replaces chunks and their FTS entries.
func (s *SQLiteChunkStore) Put(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("chunk store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(id, document_id, user_id, text, title, tags, summary, chunk_index,
			 embedding, embedding_provider, embedding_model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer upsertStmt.Close()

	// FTS5 virtual tables don't support REPLACE, so delete first
	ftsDeleteStmt, err := tx.PrepareContext(ctx,
		`DELETE FROM fts_chunks WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS delete statement: %w", err)
	}
	defer ftsDeleteStmt.Close()

	ftsInsertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_chunks(title, text, chunk_id, user_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS insert statement: %w", err)
	}
	defer ftsInsertStmt.Close()

	for _, c := range chunks {
		tags, err := json.Marshal(c.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags for chunk %s: %w", c.ID, err)
		}
		embedding, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding for chunk %s: %w", c.ID, err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := upsertStmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.UserID, c.Text, c.Title, string(tags),
			c.Summary, c.ChunkIndex, string(embedding),
			c.EmbeddingProvider, c.EmbeddingModel, createdAt); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
		if _, err := ftsDeleteStmt.ExecContext(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to clear FTS entry for chunk %s: %w", c.ID, err)
		}
		if _, err := ftsInsertStmt.ExecContext(ctx, c.Title, c.Text, c.ID, c.UserID); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// Get fetches chunks by ID. Missing IDs are silently skipped.
func (s *SQLiteChunkStore) Get(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return []*Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, document_id, user_id, text, title, tags, summary, chunk_index,
		       embedding, embedding_provider, embedding_model, created_at
		FROM chunks WHERE id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// ListByUser returns all chunks owned by a user.
func (s *SQLiteChunkStore) ListByUser(ctx context.Context, userID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, user_id, text, title, tags, summary, chunk_index,
		       embedding, embedding_provider, embedding_model, created_at
		FROM chunks WHERE user_id = ?
		ORDER BY document_id, chunk_index
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SearchText runs pushed-down full-text ranking via FTS5 bm25().
// Title matches are weighted higher than text matches, mirroring the
// in-process lexical scorer's contract. Results carry 1-based ranks
// and a highlighted snippet.
func (s *SQLiteChunkStore) SearchText(ctx context.Context, query, userID string, topK int) ([]*LexicalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("chunk store is closed")
	}

	terms := SanitizeQueryTerms(query)
	if len(terms) == 0 {
		return []*LexicalResult{}, nil
	}

	// FTS5 OR matching: the in-process scorer counts any overlapping
	// term, so require at least one term rather than all of them.
	matchExpr := strings.Join(quoteFTSTerms(terms), " OR ")

	// bm25() returns negative values where lower = better match.
	// Positional weights: title column first, then text.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.id, c.document_id, c.text, c.title, c.tags, c.chunk_index,
		       bm25(fts_chunks, %f, %f) AS score,
		       snippet(fts_chunks, 1, '[', ']', '…', 12) AS snip
		FROM fts_chunks
		JOIN chunks c ON c.id = fts_chunks.chunk_id
		WHERE fts_chunks MATCH ? AND fts_chunks.user_id = ?
		ORDER BY score
		LIMIT ?
	`, titleMatchWeight, textMatchWeight), matchExpr, userID, topK)
	if err != nil {
		// FTS5 returns an error for invalid match queries; treat as no results
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*LexicalResult{}, nil
		}
		return nil, fmt.Errorf("full-text search failed: %w", err)
	}
	defer rows.Close()

	var results []*LexicalResult
	for rows.Next() {
		var r LexicalResult
		var tags string
		var score float64
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Text, &r.Title, &tags,
			&r.ChunkIndex, &score, &r.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			r.Tags = nil
		}
		// Negate: FTS5 bm25() is negative, higher positive = better
		r.Score = -score
		r.Rank = len(results) + 1
		results = append(results, &r)
	}
	if results == nil {
		results = []*LexicalResult{}
	}

	return results, rows.Err()
}

// Delete removes chunks and their FTS entries.
func (s *SQLiteChunkStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("chunk store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM chunks WHERE id IN (%s)", inClause), args...); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM fts_chunks WHERE chunk_id IN (%s)", inClause), args...); err != nil {
		return fmt.Errorf("failed to delete FTS entries: %w", err)
	}

	return tx.Commit()
}

// Close marks the store closed. The shared db handle is not closed here.
func (s *SQLiteChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// scanChunks reads chunk rows into Chunk values.
func scanChunks(rows *sql.Rows) ([]*Chunk, error) {
	var chunks []*Chunk
	for rows.Next() {
		var c Chunk
		var tags, embedding string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Text, &c.Title,
			&tags, &c.Summary, &c.ChunkIndex, &embedding,
			&c.EmbeddingProvider, &c.EmbeddingModel, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			c.Tags = nil
		}
		if err := json.Unmarshal([]byte(embedding), &c.Embedding); err != nil {
			c.Embedding = nil
		}
		chunks = append(chunks, &c)
	}
	if chunks == nil {
		chunks = []*Chunk{}
	}
	return chunks, rows.Err()
}

// quoteFTSTerms wraps terms in double quotes so FTS5 treats them as
// plain strings rather than query syntax.
func quoteFTSTerms(terms []string) []string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, ``) + `"`
	}
	return quoted
}
