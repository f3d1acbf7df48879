package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/secondbrain/retrieval/internal/store"
)

// Lexical scoring weights. A term occurrence in the title is worth three
// occurrences in the body.
const (
	lexicalTitleWeight = 3.0
	lexicalTextWeight  = 1.0
)

// LexicalSearcher ranks a user's chunks by term frequency.
// Implementations never return an error: backend failures are logged
// and surface as an empty result.
type LexicalSearcher interface {
	Search(ctx context.Context, query, userID string, topK int) []*Candidate
}

// MemoryLexicalScorer computes weighted term-frequency scores in process,
// for chunk stores without native full-text ranking.
type MemoryLexicalScorer struct {
	chunks store.ChunkStore
	logger *slog.Logger
}

// Verify interface implementation at compile time
var _ LexicalSearcher = (*MemoryLexicalScorer)(nil)

// NewMemoryLexicalScorer creates an in-process lexical scorer.
func NewMemoryLexicalScorer(chunks store.ChunkStore, logger *slog.Logger) *MemoryLexicalScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryLexicalScorer{chunks: chunks, logger: logger}
}

// Search scores every chunk owned by userID against the sanitized query
// terms. Chunks with zero term overlap are excluded. Results are sorted
// descending by score with 1-based ranks, truncated to topK.
func (s *MemoryLexicalScorer) Search(ctx context.Context, query, userID string, topK int) []*Candidate {
	terms := store.SanitizeQueryTerms(query)
	if len(terms) == 0 {
		return []*Candidate{}
	}

	chunks, err := s.chunks.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("lexical_search_failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return []*Candidate{}
	}

	candidates := make([]*Candidate, 0, len(chunks))
	for _, chunk := range chunks {
		score := scoreChunk(chunk, terms)
		if score == 0 {
			continue
		}
		candidates = append(candidates, &Candidate{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Text:       chunk.Text,
			Title:      chunk.Title,
			Tags:       chunk.Tags,
			ChunkIndex: chunk.ChunkIndex,
			Score:      score,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	for i, c := range candidates {
		c.Rank = i + 1
	}

	return candidates
}

// scoreChunk sums weighted term frequencies over the sanitized title and
// text. Every additional occurrence of an already-matched term adds score.
func scoreChunk(chunk *store.Chunk, terms []string) float64 {
	title := store.SanitizeQuery(chunk.Title)
	text := store.SanitizeQuery(chunk.Text)

	var score float64
	for _, term := range terms {
		score += lexicalTitleWeight * float64(store.CountOccurrences(title, term))
		score += lexicalTextWeight * float64(store.CountOccurrences(text, term))
	}
	return score
}

// FTSLexicalScorer pushes lexical ranking down to the chunk store's own
// full-text index. The caller-visible contract matches MemoryLexicalScorer,
// with an optional highlighted snippet in Metadata.
type FTSLexicalScorer struct {
	chunks store.ChunkStore
	logger *slog.Logger
}

// Verify interface implementation at compile time
var _ LexicalSearcher = (*FTSLexicalScorer)(nil)

// NewFTSLexicalScorer creates a pushed-down lexical scorer.
func NewFTSLexicalScorer(chunks store.ChunkStore, logger *slog.Logger) *FTSLexicalScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FTSLexicalScorer{chunks: chunks, logger: logger}
}

// Search delegates ranking to the store's full-text query.
func (s *FTSLexicalScorer) Search(ctx context.Context, query, userID string, topK int) []*Candidate {
	if len(store.SanitizeQueryTerms(query)) == 0 {
		return []*Candidate{}
	}

	results, err := s.chunks.SearchText(ctx, query, userID, topK)
	if err != nil {
		s.logger.Warn("fts_search_failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return []*Candidate{}
	}

	candidates := make([]*Candidate, 0, len(results))
	for _, r := range results {
		c := &Candidate{
			ID:         r.ID,
			DocumentID: r.DocumentID,
			Text:       r.Text,
			Title:      r.Title,
			Tags:       r.Tags,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
			Rank:       r.Rank,
		}
		if r.Snippet != "" {
			c.Metadata = map[string]string{"snippet": r.Snippet}
		}
		candidates = append(candidates, c)
	}

	return candidates
}
