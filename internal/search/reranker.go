package search

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Reranker reorders fused candidates by LLM-assessed relevance.
// Implementations never return an error: a candidate that cannot be
// scored receives the neutral score, and total failure degrades to
// pass-through ordering.
type Reranker interface {
	// Rerank scores candidates against the query, filters those below
	// minScore, and returns up to topK results with dense 1-based final
	// ranks.
	Rerank(ctx context.Context, query string, fused []*FusedResult, topK int, minScore float64) []*RankedResult

	// Available checks if the scoring backend is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// PassthroughReranker preserves fusion order. Used when reranking is
// disabled or no scoring provider is available.
type PassthroughReranker struct{}

// Verify interface implementation at compile time
var _ Reranker = (*PassthroughReranker)(nil)

// Rerank keeps the input order, marks nothing as reranked, truncates to
// topK, and assigns dense final ranks. FinalScore carries the RRF score
// since no relevance signal exists.
func (p *PassthroughReranker) Rerank(_ context.Context, _ string, fused []*FusedResult, topK int, _ float64) []*RankedResult {
	results := make([]*RankedResult, 0, len(fused))
	for i, f := range fused {
		results = append(results, &RankedResult{
			FusedResult:  *f,
			WasReranked:  false,
			OriginalRank: i + 1,
			FinalScore:   f.RRFScore,
		})
	}

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	for i, r := range results {
		r.FinalRank = i + 1
	}

	return results
}

// Available always returns true for PassthroughReranker.
func (p *PassthroughReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op for PassthroughReranker.
func (p *PassthroughReranker) Close() error {
	return nil
}

// numberPattern extracts the first numeric token from free text, handling
// phrasings like "Score: 8", "8/10", or a sentence containing a number.
var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseRelevanceScore turns a free-text scoring response into a [0, 10]
// relevance score. Direct numeric parse is tried first, then the first
// numeric token anywhere in the text. Text with no number at all yields
// the neutral score.
func parseRelevanceScore(text string) float64 {
	text = strings.TrimSpace(text)

	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return clampScore(v)
	}

	if m := numberPattern.FindString(text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return clampScore(v)
		}
	}

	return neutralRelevanceScore
}

// clampScore bounds a relevance score to [0, 10].
func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// truncateDoc caps candidate text for scoring prompts.
func truncateDoc(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars]
}

// finalizeRanked applies the shared post-scoring contract: filter below
// minScore, sort descending by relevance with RRF score as tie-break,
// truncate to topK, assign dense 1-based final ranks, and blend the
// final score.
func finalizeRanked(results []*RankedResult, topK int, minScore float64) []*RankedResult {
	kept := make([]*RankedResult, 0, len(results))
	for _, r := range results {
		if r.RelevanceScore < minScore {
			continue
		}
		kept = append(kept, r)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].RelevanceScore != kept[j].RelevanceScore {
			return kept[i].RelevanceScore > kept[j].RelevanceScore
		}
		return kept[i].RRFScore > kept[j].RRFScore
	})

	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}

	for i, r := range kept {
		r.FinalRank = i + 1
		r.FinalScore = r.RelevanceScore/10*finalRelevanceWeight + r.VectorScore*finalVectorWeight
	}

	return kept
}
