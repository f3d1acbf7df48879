package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/secondbrain/retrieval/internal/llm"
)

const rerankSystemPrompt = "You rate how well a passage answers a search query " +
	"on a scale from 0 (irrelevant) to 10 (directly answers it). " +
	"Respond with a JSON object: {\"score\": <number>}."

const rerankFallbackSystemPrompt = "You rate how well a passage answers a search query " +
	"on a scale from 0 (irrelevant) to 10 (directly answers it). " +
	"Respond with the number only."

// LLMReranker scores each candidate with a general completion provider.
// Scoring calls run concurrently up to the configured parallelism;
// parallelism 1 gives strict sequential ordering toward the provider.
type LLMReranker struct {
	provider    llm.Provider
	parallelism int
	maxDocChars int
	logger      *slog.Logger
}

// Verify interface implementation at compile time
var _ Reranker = (*LLMReranker)(nil)

// LLMRerankerOption configures the reranker.
type LLMRerankerOption func(*LLMReranker)

// WithRerankParallelism bounds concurrent scoring calls.
func WithRerankParallelism(n int) LLMRerankerOption {
	return func(r *LLMReranker) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithMaxDocChars overrides the prompt text cap.
func WithMaxDocChars(n int) LLMRerankerOption {
	return func(r *LLMReranker) {
		if n > 0 {
			r.maxDocChars = n
		}
	}
}

// NewLLMReranker creates a reranker backed by a completion provider.
func NewLLMReranker(provider llm.Provider, logger *slog.Logger, opts ...LLMRerankerOption) *LLMReranker {
	if logger == nil {
		logger = slog.Default()
	}
	r := &LLMReranker{
		provider:    provider,
		parallelism: DefaultRerankParallelism,
		maxDocChars: MaxRerankDocChars,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank scores every candidate independently. A single candidate's
// failure yields the neutral score; cancellation mid-batch keeps
// already-scored candidates and drops the rest.
func (r *LLMReranker) Rerank(ctx context.Context, query string, fused []*FusedResult, topK int, minScore float64) []*RankedResult {
	if len(fused) == 0 {
		return []*RankedResult{}
	}

	scored := make([]*RankedResult, len(fused))

	g := new(errgroup.Group)
	g.SetLimit(r.parallelism)

	for i, f := range fused {
		i, f := i, f
		g.Go(func() error {
			// Cancellation shortens the batch rather than invalidating it.
			if ctx.Err() != nil {
				return nil
			}

			score, err := r.scoreCandidate(ctx, query, f)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Debug("rerank_candidate_failed",
					slog.String("chunk_id", f.ID),
					slog.String("error", err.Error()))
				score = neutralRelevanceScore
			}

			scored[i] = &RankedResult{
				FusedResult:    *f,
				RelevanceScore: score,
				WasReranked:    true,
				OriginalRank:   i + 1,
			}
			return nil
		})
	}
	_ = g.Wait()

	results := make([]*RankedResult, 0, len(scored))
	for _, s := range scored {
		if s != nil {
			results = append(results, s)
		}
	}

	return finalizeRanked(results, topK, minScore)
}

// scoreCandidate asks the provider for a 0-10 relevance rating.
// Structured output is tried first, free text as fallback.
func (r *LLMReranker) scoreCandidate(ctx context.Context, query string, f *FusedResult) (float64, error) {
	prompt := fmt.Sprintf("Query: %s\n\nPassage:\n%s", query, truncateDoc(f.Text, r.maxDocChars))

	if c, err := r.provider.CompleteJSON(ctx, rerankSystemPrompt, prompt); err == nil {
		var parsed struct {
			Score *float64 `json:"score"`
		}
		if jsonErr := json.Unmarshal([]byte(c.Text), &parsed); jsonErr == nil && parsed.Score != nil {
			return clampScore(*parsed.Score), nil
		}
	}

	c, err := r.provider.Complete(ctx, rerankFallbackSystemPrompt, prompt)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(c.Text) == "" {
		return 0, fmt.Errorf("provider returned empty score response")
	}
	return parseRelevanceScore(c.Text), nil
}

// Available checks if the completion provider is reachable.
func (r *LLMReranker) Available(ctx context.Context) bool {
	return r.provider != nil && r.provider.Available(ctx)
}

// Close releases the provider.
func (r *LLMReranker) Close() error {
	if r.provider == nil {
		return nil
	}
	return r.provider.Close()
}
