package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMReranker_StructuredScoring(t *testing.T) {
	provider := &fakeProvider{
		jsonText: map[string]string{"rate how well": `{"score": 8}`},
	}
	reranker := NewLLMReranker(provider, nil)

	fused := makeFused([]string{"A", "B"}, []float64{0.9, 0.8})
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.WasReranked)
		assert.Equal(t, 8.0, r.RelevanceScore)
	}
}

func TestLLMReranker_FreeTextFallback(t *testing.T) {
	provider := &fakeProvider{
		failJSON: true,
		freeText: map[string]string{"rate how well": "Score: 7"},
	}
	reranker := NewLLMReranker(provider, nil)

	fused := makeFused([]string{"A"}, []float64{0.9})
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	require.Len(t, results, 1)
	assert.Equal(t, 7.0, results[0].RelevanceScore)
}

func TestLLMReranker_FailedCandidateGetsNeutralScore(t *testing.T) {
	provider := &fakeProvider{failAll: true}
	reranker := NewLLMReranker(provider, nil)

	fused := makeFused([]string{"A", "B"}, []float64{0.9, 0.8})
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	require.Len(t, results, 2, "a candidate failure never aborts the batch")
	for _, r := range results {
		assert.Equal(t, neutralRelevanceScore, r.RelevanceScore)
	}
}

func TestLLMReranker_CancelledContextShortensBatch(t *testing.T) {
	provider := &fakeProvider{
		jsonText: map[string]string{"rate how well": `{"score": 8}`},
	}
	reranker := NewLLMReranker(provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fused := makeFused([]string{"A", "B", "C"}, nil)
	results := reranker.Rerank(ctx, "query", fused, 10, 0)

	// Everything was cancelled before scoring started; the batch
	// completes with whatever was scored, here nothing.
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestLLMReranker_MinScoreFilterAndTopK(t *testing.T) {
	provider := &fakeProvider{
		jsonText: map[string]string{"rate how well": `{"score": 6}`},
	}
	reranker := NewLLMReranker(provider, nil)

	fused := makeFused([]string{"A", "B", "C"}, []float64{0.9, 0.8, 0.7})

	results := reranker.Rerank(context.Background(), "query", fused, 2, 0)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].FinalRank)
	assert.Equal(t, 2, results[1].FinalRank)

	filtered := reranker.Rerank(context.Background(), "query", fused, 10, 7.0)
	assert.Empty(t, filtered, "all candidates scored below minScore")
}

func TestLLMReranker_SequentialParallelism(t *testing.T) {
	provider := &fakeProvider{
		jsonText: map[string]string{"rate how well": `{"score": 9}`},
	}
	reranker := NewLLMReranker(provider, nil, WithRerankParallelism(1))

	fused := makeFused([]string{"A", "B", "C"}, nil)
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	require.Len(t, results, 3)
}

func TestLLMReranker_Available(t *testing.T) {
	assert.True(t, NewLLMReranker(&fakeProvider{}, nil).Available(context.Background()))
	assert.False(t, NewLLMReranker(&fakeProvider{unavailable: true}, nil).Available(context.Background()))
}
