package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbedServer(t *testing.T, handler http.HandlerFunc) *HTTPEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPEmbedder(Config{Host: srv.URL, Model: "test-model"})
}

func TestHTTPEmbedder_EmbedBatch(t *testing.T) {
	embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, []string{"one", "two"}, req.Input)

		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		})
	})

	vecs, err := embedder.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vecs[0])

	// Dimensions are learned from the first response.
	assert.Equal(t, 2, embedder.Dimensions())
}

func TestHTTPEmbedder_CountMismatchRejected(t *testing.T) {
	embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1}}})
	})

	_, err := embedder.EmbedBatch(context.Background(), []string{"one", "two"})
	assert.Error(t, err)
}

func TestHTTPEmbedder_ServerError(t *testing.T) {
	embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	_, err := embedder.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestHTTPEmbedder_EmptyBatch(t *testing.T) {
	embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	})

	vecs, err := embedder.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestHTTPEmbedder_Available(t *testing.T) {
	embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	assert.True(t, embedder.Available(context.Background()))
}

func TestHTTPEmbedder_ClosedRejectsRequests(t *testing.T) {
	embedder := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, embedder.Close())

	_, err := embedder.Embed(context.Background(), "text")
	assert.Error(t, err)
	assert.NoError(t, embedder.Close(), "closing twice is harmless")
}
