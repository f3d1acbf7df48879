package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/secondbrain/retrieval/internal/analytics"
	"github.com/secondbrain/retrieval/internal/embed"
	"github.com/secondbrain/retrieval/internal/store"
)

// DefaultTopK is used when the caller does not specify a result count.
const DefaultTopK = 10

// Pipeline is the retrieval entry point. It is constructed once with
// resolved collaborator handles and holds no mutable state across
// invocations, so concurrent retrievals are fully independent.
//
// No collaborator failure ever escapes Retrieve: every stage is
// individually fail-soft and the worst case is an empty ranked list.
type Pipeline struct {
	vectors   store.VectorStore
	lexical   LexicalSearcher
	embedder  embed.Embedder
	expander  *Expander
	fusion    *RRFFusion
	rerankers map[string]Reranker
	analytics *analytics.Recorder
	weights   Weights
	logger    *slog.Logger
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithExpander attaches a query expander.
func WithExpander(e *Expander) PipelineOption {
	return func(p *Pipeline) { p.expander = e }
}

// WithReranker registers a reranker under a provider name ("llm", "http").
func WithReranker(name string, r Reranker) PipelineOption {
	return func(p *Pipeline) { p.rerankers[name] = r }
}

// WithAnalytics attaches the analytics recorder.
func WithAnalytics(a *analytics.Recorder) PipelineOption {
	return func(p *Pipeline) { p.analytics = a }
}

// WithWeights overrides the default fusion weights.
func WithWeights(w Weights) PipelineOption {
	return func(p *Pipeline) { p.weights = w }
}

// WithRRFConstant overrides the fusion smoothing constant.
func WithRRFConstant(k int) PipelineOption {
	return func(p *Pipeline) { p.fusion = NewRRFFusionWithK(k) }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// NewPipeline creates a retrieval pipeline with the given collaborators.
func NewPipeline(vectors store.VectorStore, lexical LexicalSearcher, embedder embed.Embedder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		vectors:   vectors,
		lexical:   lexical,
		embedder:  embedder,
		fusion:    NewRRFFusion(),
		rerankers: make(map[string]Reranker),
		weights:   DefaultWeights(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve runs the full pipeline for one query: expansion, concurrent
// vector and lexical retrieval, fusion, reranking, and analytics.
// An empty query returns an empty result without touching any collaborator.
func (p *Pipeline) Retrieve(ctx context.Context, query, userID string, opts RetrieveOptions) *RetrieveResult {
	start := time.Now()
	res := &RetrieveResult{Results: []*RankedResult{}}

	query = strings.TrimSpace(query)
	if query == "" {
		return res
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	fetchWidth := opts.TopK * 3
	if fetchWidth < MinFetchCandidates {
		fetchWidth = MinFetchCandidates
	}

	var embeddingMs, vectorMs, lexicalMs, rerankMs *int64

	if (opts.HyDE || opts.QueryExpansion) && p.expander != nil {
		res.Expansion = p.expander.Expand(ctx, query, ExpandOptions{
			HyDE:           opts.HyDE,
			MultiQuery:     opts.QueryExpansion,
			VariationCount: opts.VariationCount,
		})
	}

	var queryEmbedding []float32
	if p.embedder != nil && p.vectors != nil {
		embedStart := time.Now()
		vec, err := p.embedder.Embed(ctx, query)
		embeddingMs = msSince(embedStart)
		if err != nil {
			p.logger.Warn("query_embedding_failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
		} else {
			queryEmbedding = vec
		}
	}

	embeddings := collectEmbeddings(queryEmbedding, res.Expansion)

	// Vector and lexical retrieval are independent reads against
	// different backends; fusion is the synchronization point.
	var vectorCands, lexicalCands []*Candidate
	g, gctx := errgroup.WithContext(ctx)

	if len(embeddings) > 0 {
		g.Go(func() error {
			vecStart := time.Now()
			vectorCands = p.searchVectors(gctx, embeddings, userID, fetchWidth, opts.SimilarityThreshold)
			vectorMs = msSince(vecStart)
			return nil
		})
	}
	if opts.HybridSearch && p.lexical != nil {
		g.Go(func() error {
			lexStart := time.Now()
			lexicalCands = p.lexical.Search(gctx, query, userID, fetchWidth)
			lexicalMs = msSince(lexStart)
			return nil
		})
	}
	_ = g.Wait()

	weights := p.weights
	if !opts.HybridSearch {
		weights = VectorOnly()
		lexicalCands = nil
	}
	fused := p.fusion.Fuse(vectorCands, lexicalCands, weights)

	reranker, reranked := p.selectReranker(ctx, opts)
	rerankStart := time.Now()
	res.Results = reranker.Rerank(ctx, query, fused, opts.TopK, opts.MinRelevance)
	if reranked {
		rerankMs = msSince(rerankStart)
	}

	if opts.Analytics && p.analytics != nil {
		log := buildQueryLog(query, userID, opts, res, vectorCands, lexicalCands, len(fused))
		log.EmbeddingMs = embeddingMs
		log.VectorSearchMs = vectorMs
		log.LexicalSearchMs = lexicalMs
		log.RerankMs = rerankMs
		log.TotalMs = time.Since(start).Milliseconds()
		res.LogID = p.analytics.LogQuery(ctx, log)
	}

	p.logger.Debug("retrieve_complete",
		slog.String("user_id", userID),
		slog.Int("vector_candidates", len(vectorCands)),
		slog.Int("lexical_candidates", len(lexicalCands)),
		slog.Int("fused", len(fused)),
		slog.Int("final", len(res.Results)),
		slog.Bool("reranked", reranked),
		slog.Duration("total", time.Since(start)))

	return res
}

// searchVectors issues one vector search per expansion embedding and
// merges hits by chunk ID keeping the best similarity. Per-embedding
// failures are logged and skipped.
func (p *Pipeline) searchVectors(ctx context.Context, embeddings [][]float32, userID string, topK int, minScore float64) []*Candidate {
	best := make(map[string]*Candidate)

	for _, emb := range embeddings {
		hits, err := p.vectors.Search(ctx, emb, userID, topK, minScore)
		if err != nil {
			p.logger.Warn("vector_search_failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
			continue
		}
		for _, h := range hits {
			if existing, ok := best[h.ID]; ok && existing.Score >= h.Score {
				continue
			}
			best[h.ID] = &Candidate{
				ID:         h.ID,
				DocumentID: h.DocumentID,
				Text:       h.Text,
				Title:      h.Title,
				Tags:       h.Tags,
				ChunkIndex: h.ChunkIndex,
				Score:      h.Score,
				Metadata:   h.Metadata,
			}
		}
	}

	merged := make([]*Candidate, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	for i, c := range merged {
		c.Rank = i + 1
	}

	return merged
}

// selectReranker resolves the configured reranker, degrading to
// pass-through when reranking is disabled, unknown, or unavailable.
// The second return value reports whether real reranking will run.
func (p *Pipeline) selectReranker(ctx context.Context, opts RetrieveOptions) (Reranker, bool) {
	if !opts.Reranking {
		return &PassthroughReranker{}, false
	}

	name := opts.RerankingProvider
	if name == "" {
		name = "llm"
	}
	if name == "none" {
		return &PassthroughReranker{}, false
	}

	r, ok := p.rerankers[name]
	if !ok || r == nil || !r.Available(ctx) {
		p.logger.Debug("reranker_unavailable", slog.String("provider", name))
		return &PassthroughReranker{}, false
	}
	return r, true
}

// collectEmbeddings gathers every embedding to search with: the original
// query, the hypothetical document, and each retained variation.
func collectEmbeddings(queryEmbedding []float32, exp *QueryExpansion) [][]float32 {
	var embeddings [][]float32
	if len(queryEmbedding) > 0 {
		embeddings = append(embeddings, queryEmbedding)
	}
	if exp == nil {
		return embeddings
	}
	if len(exp.HypotheticalEmbedding) > 0 {
		embeddings = append(embeddings, exp.HypotheticalEmbedding)
	}
	// Index 0 is the original query, already covered above.
	for i, vec := range exp.VariationEmbeddings {
		if i == 0 || len(vec) == 0 {
			continue
		}
		embeddings = append(embeddings, vec)
	}
	return embeddings
}

// buildQueryLog assembles the analytics record for one invocation.
func buildQueryLog(query, userID string, opts RetrieveOptions, res *RetrieveResult, vectorCands, lexicalCands []*Candidate, fusedCount int) *store.QueryLog {
	log := &store.QueryLog{
		UserID:         userID,
		Query:          query,
		RetrievedCount: fusedCount,
		FinalCount:     len(res.Results),
		HybridSearch:   opts.HybridSearch,
		HyDE:           opts.HyDE,
		QueryExpansion: opts.QueryExpansion,
		Reranking:      opts.Reranking,
	}

	var cosineSum float64
	for _, c := range vectorCands {
		cosineSum += c.Score
		if c.Score > log.TopCosineScore {
			log.TopCosineScore = c.Score
		}
	}
	if len(vectorCands) > 0 {
		log.AvgCosineScore = cosineSum / float64(len(vectorCands))
	}

	var lexicalSum float64
	for _, c := range lexicalCands {
		lexicalSum += c.Score
	}
	if len(lexicalCands) > 0 {
		log.AvgLexicalScore = lexicalSum / float64(len(lexicalCands))
	}

	var rerankSum float64
	var rerankN int
	for _, r := range res.Results {
		if !r.WasReranked {
			continue
		}
		rerankSum += r.RelevanceScore
		if r.RelevanceScore > log.TopRerankScore {
			log.TopRerankScore = r.RelevanceScore
		}
		rerankN++
	}
	if rerankN > 0 {
		log.AvgRerankScore = rerankSum / float64(rerankN)
	}

	return log
}

// msSince returns elapsed milliseconds as a nullable stage timing.
func msSince(t time.Time) *int64 {
	ms := time.Since(t).Milliseconds()
	return &ms
}
