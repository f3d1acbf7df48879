package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRerankServer(t *testing.T, handler http.HandlerFunc) *HTTPReranker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPReranker(HTTPRerankerConfig{Endpoint: srv.URL}, nil)
}

func TestHTTPReranker_ScoresBatchInOneCall(t *testing.T) {
	var calls int
	reranker := newRerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/rerank", r.URL.Path)

		var req httpRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "query", req.Query)
		assert.Len(t, req.Documents, 3)

		resp := httpRerankResponse{}
		resp.Results = []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		}{
			{Index: 0, Score: 0.2},
			{Index: 1, Score: 0.9},
			{Index: 2, Score: 0.5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	fused := makeFused([]string{"A", "B", "C"}, nil)
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	assert.Equal(t, 1, calls, "the whole batch goes out in one request")
	require.Len(t, results, 3)
	assert.Equal(t, "B", results[0].ID)
	assert.Equal(t, 9.0, results[0].RelevanceScore, "server scores map from [0,1] to [0,10]")
	assert.True(t, results[0].WasReranked)
}

func TestHTTPReranker_UnscoredCandidateGetsNeutralScore(t *testing.T) {
	reranker := newRerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"index": 0, "score": 0.9}]}`))
	})

	fused := makeFused([]string{"A", "B"}, nil)
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	require.Len(t, results, 2)
	assert.Equal(t, 9.0, results[0].RelevanceScore)
	assert.Equal(t, neutralRelevanceScore, results[1].RelevanceScore)
}

func TestHTTPReranker_ServerErrorDegradesToPassthrough(t *testing.T) {
	reranker := newRerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	fused := makeFused([]string{"A", "B"}, nil)
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ID, "fused ordering is preserved")
	assert.False(t, results[0].WasReranked)
}

func TestHTTPReranker_OutOfRangeIndicesIgnored(t *testing.T) {
	reranker := newRerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"index": 7, "score": 0.9}, {"index": -1, "score": 0.9}, {"index": 0, "score": 0.8}]}`))
	})

	fused := makeFused([]string{"A"}, nil)
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	require.Len(t, results, 1)
	assert.Equal(t, 8.0, results[0].RelevanceScore)
}

func TestHTTPReranker_Available(t *testing.T) {
	reranker := newRerankServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	assert.True(t, reranker.Available(context.Background()))

	require.NoError(t, reranker.Close())
	assert.False(t, reranker.Available(context.Background()))
}

func TestHTTPReranker_ClosedDegradesToPassthrough(t *testing.T) {
	reranker := newRerankServer(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, reranker.Close())

	fused := makeFused([]string{"A"}, nil)
	results := reranker.Rerank(context.Background(), "query", fused, 10, 0)

	require.Len(t, results, 1)
	assert.False(t, results[0].WasReranked)
}
