package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// HTTP reranker defaults.
const (
	DefaultRerankEndpoint = "http://localhost:9659"
	DefaultRerankModel    = "reranker-small"
	DefaultRerankTimeout  = 30 * time.Second
)

// HTTPRerankerConfig holds settings for a dedicated rerank API.
type HTTPRerankerConfig struct {
	// Endpoint is the rerank server URL.
	Endpoint string

	// Model is the reranker model alias.
	Model string

	// Timeout bounds one rerank request.
	Timeout time.Duration
}

// HTTPReranker delegates scoring to a dedicated cross-encoder rerank API.
// One request scores the whole batch; the per-candidate contract, scoring
// scale, and blend formula match LLMReranker.
type HTTPReranker struct {
	client *http.Client
	config HTTPRerankerConfig
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Reranker = (*HTTPReranker)(nil)

// httpRerankRequest is the JSON request to the /rerank endpoint.
type httpRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

// httpRerankResponse is the JSON response from the /rerank endpoint.
// Scores are normalized to [0, 1] by the server.
type httpRerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// NewHTTPReranker creates a reranker client for the configured endpoint.
func NewHTTPReranker(cfg HTTPRerankerConfig, logger *slog.Logger) *HTTPReranker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRerankTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPReranker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
		logger: logger,
	}
}

// Rerank scores the batch with one API call. A failed call degrades to
// pass-through ordering; candidates the server did not score receive the
// neutral score.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, fused []*FusedResult, topK int, minScore float64) []*RankedResult {
	if len(fused) == 0 {
		return []*RankedResult{}
	}

	scores, err := r.scoreBatch(ctx, query, fused)
	if err != nil {
		r.logger.Warn("http_rerank_failed",
			slog.Int("candidates", len(fused)),
			slog.String("error", err.Error()))
		return (&PassthroughReranker{}).Rerank(ctx, query, fused, topK, minScore)
	}

	results := make([]*RankedResult, 0, len(fused))
	for i, f := range fused {
		score, ok := scores[i]
		if !ok {
			score = neutralRelevanceScore
		}
		results = append(results, &RankedResult{
			FusedResult:    *f,
			RelevanceScore: score,
			WasReranked:    true,
			OriginalRank:   i + 1,
		})
	}

	return finalizeRanked(results, topK, minScore)
}

// scoreBatch posts the batch and maps server scores from [0, 1] onto the
// [0, 10] relevance scale.
func (r *HTTPReranker) scoreBatch(ctx context.Context, query string, fused []*FusedResult) (map[int]float64, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	docs := make([]string, len(fused))
	for i, f := range fused {
		docs[i] = truncateDoc(f.Text, MaxRerankDocChars)
	}

	body, err := json.Marshal(httpRerankRequest{
		Query:     query,
		Documents: docs,
		Model:     r.config.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.config.Endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(msg))
	}

	var result httpRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	scores := make(map[int]float64, len(result.Results))
	for _, res := range result.Results {
		if res.Index < 0 || res.Index >= len(fused) {
			continue
		}
		scores[res.Index] = clampScore(res.Score * 10)
	}
	return scores, nil
}

// Available checks the rerank server health endpoint.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, r.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (r *HTTPReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if t, ok := r.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}
