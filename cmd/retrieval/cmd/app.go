package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/secondbrain/retrieval/internal/analytics"
	"github.com/secondbrain/retrieval/internal/config"
	"github.com/secondbrain/retrieval/internal/embed"
	"github.com/secondbrain/retrieval/internal/llm"
	"github.com/secondbrain/retrieval/internal/search"
	"github.com/secondbrain/retrieval/internal/store"
)

// app holds the wired collaborators for one CLI invocation. Collaborators
// are resolved once here; the pipeline never performs name-based lookup.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	chunks   *store.SQLiteChunkStore
	logs     *store.SQLiteQueryLogStore
	vectors  *store.HNSWVectorStore
	embedder embed.Embedder
	provider llm.Provider
	pipeline *search.Pipeline
	recorder *analytics.Recorder
}

// newApp loads configuration and wires the full pipeline.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	db, err := store.OpenSQLite(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	chunks, err := store.NewSQLiteChunkStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logs, err := store.NewSQLiteQueryLogStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	vectors := store.NewHNSWVectorStore(store.HNSWConfig{
		Dimensions: cfg.Embedding.Dimensions,
	})

	embedder := embed.Embedder(embed.NewCachedEmbedder(
		embed.NewHTTPEmbedder(embed.Config{
			Host:       cfg.Embedding.Host,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
		}),
		cfg.Embedding.CacheSize,
	))

	var provider llm.Provider = llm.NewDisabledProvider()
	if cfg.LLM.Enabled {
		provider = llm.NewOpenAIProvider(llm.Config{
			Host:        cfg.LLM.Host,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			Timeout:     cfg.LLM.Timeout,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
	}

	logger := slog.Default()
	recorder := analytics.NewRecorder(logs, logger,
		analytics.WithMinCorrelationSamples(cfg.Analytics.MinCorrelationSamples))

	pipeline := search.NewPipeline(vectors, search.NewFTSLexicalScorer(chunks, logger), embedder,
		search.WithExpander(search.NewExpander(provider, embedder, logger)),
		search.WithReranker("llm", search.NewLLMReranker(provider, logger,
			search.WithRerankParallelism(cfg.Rerank.Parallelism))),
		search.WithReranker("http", search.NewHTTPReranker(search.HTTPRerankerConfig{
			Endpoint: cfg.Rerank.Endpoint,
		}, logger)),
		search.WithAnalytics(recorder),
		search.WithWeights(search.Weights{
			Vector:  cfg.Search.VectorWeight,
			Lexical: cfg.Search.LexicalWeight,
		}),
		search.WithRRFConstant(cfg.Search.RRFConstant),
		search.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		db:       db,
		chunks:   chunks,
		logs:     logs,
		vectors:  vectors,
		embedder: embedder,
		provider: provider,
		pipeline: pipeline,
		recorder: recorder,
	}, nil
}

// Close releases every collaborator.
func (a *app) Close() {
	_ = a.embedder.Close()
	_ = a.provider.Close()
	_ = a.vectors.Close()
	_ = a.chunks.Close()
	_ = a.logs.Close()
	_ = a.db.Close()
}
