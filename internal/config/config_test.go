package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 0.3, cfg.Search.LexicalWeight)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, "llm", cfg.Rerank.Provider)
	assert.True(t, cfg.Analytics.Enabled)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Search, cfg.Search)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
search:
  vector_weight: 0.5
  lexical_weight: 0.5
  rrf_constant: 30
rerank:
  provider: none
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Search.VectorWeight)
	assert.Equal(t, 0.5, cfg.Search.LexicalWeight)
	assert.Equal(t, 30, cfg.Search.RRFConstant)
	assert.Equal(t, "none", cfg.Rerank.Provider)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched sections keep their defaults.
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [not a mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RETRIEVAL_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("RETRIEVAL_VECTOR_WEIGHT", "0.6")
	t.Setenv("RETRIEVAL_LEXICAL_WEIGHT", "0.4")
	t.Setenv("RETRIEVAL_RRF_CONSTANT", "45")
	t.Setenv("RETRIEVAL_EMBEDDING_MODEL", "mxbai-embed-large")
	t.Setenv("RETRIEVAL_RERANK_PROVIDER", "http")
	t.Setenv("RETRIEVAL_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Store.DatabasePath)
	assert.Equal(t, 0.6, cfg.Search.VectorWeight)
	assert.Equal(t, 0.4, cfg.Search.LexicalWeight)
	assert.Equal(t, 45, cfg.Search.RRFConstant)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.Equal(t, "http", cfg.Rerank.Provider)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Search.VectorWeight = -0.1; c.Search.LexicalWeight = 1.1 }},
		{"weights not summing to one", func(c *Config) { c.Search.VectorWeight = 0.7; c.Search.LexicalWeight = 0.7 }},
		{"zero rrf constant", func(c *Config) { c.Search.RRFConstant = 0 }},
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }},
		{"unknown rerank provider", func(c *Config) { c.Rerank.Provider = "mlx" }},
		{"zero parallelism", func(c *Config) { c.Rerank.Parallelism = 0 }},
		{"min_relevance out of range", func(c *Config) { c.Rerank.MinRelevance = 11 }},
		{"correlation samples too small", func(c *Config) { c.Analytics.MinCorrelationSamples = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_WeightSumTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.VectorWeight = 0.1
	cfg.Search.LexicalWeight = 0.9

	assert.NoError(t, cfg.Validate(), "floating point weight splits within epsilon must pass")
}
