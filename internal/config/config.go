// Package config loads retrieval configuration from YAML with
// RETRIEVAL_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	rerrors "github.com/secondbrain/retrieval/internal/errors"
)

// Config is the complete retrieval configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	LogLevel  string          `yaml:"log_level"`
}

// StoreConfig configures persistence paths.
type StoreConfig struct {
	// DatabasePath is the SQLite file holding chunks and query logs.
	// Empty means in-memory (testing).
	DatabasePath string `yaml:"database_path"`
}

// SearchConfig configures fusion and retrieval width.
type SearchConfig struct {
	// VectorWeight and LexicalWeight balance the two sources in fusion.
	// Must sum to 1.0.
	VectorWeight  float64 `yaml:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight"`

	// RRFConstant is the fusion smoothing parameter k.
	RRFConstant int `yaml:"rrf_constant"`

	// TopK is the default result count.
	TopK int `yaml:"top_k"`

	// SimilarityThreshold is the minimum cosine similarity for vector
	// candidates.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Host       string        `yaml:"host"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	// Enabled gates HyDE, multi-query expansion, and LLM reranking.
	Enabled     bool          `yaml:"enabled"`
	Host        string        `yaml:"host"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
}

// RerankConfig configures relevance reranking.
type RerankConfig struct {
	// Provider selects the reranker: "llm", "http", or "none".
	Provider string `yaml:"provider"`

	// Endpoint is the dedicated rerank API URL (http provider).
	Endpoint string `yaml:"endpoint"`

	// Parallelism bounds concurrent scoring calls (llm provider);
	// 1 forces sequential scoring.
	Parallelism int `yaml:"parallelism"`

	// MinRelevance filters candidates scoring below it.
	MinRelevance float64 `yaml:"min_relevance"`
}

// AnalyticsConfig configures query logging and statistics.
type AnalyticsConfig struct {
	// Enabled gates query log writes.
	Enabled bool `yaml:"enabled"`

	// MinCorrelationSamples suppresses correlation below this labeled
	// sample count.
	MinCorrelationSamples int `yaml:"min_correlation_samples"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DatabasePath: defaultDatabasePath(),
		},
		Search: SearchConfig{
			VectorWeight:        0.7,
			LexicalWeight:       0.3,
			RRFConstant:         60,
			TopK:                10,
			SimilarityThreshold: 0,
		},
		Embedding: EmbeddingConfig{
			Host:      "http://localhost:11434",
			Model:     "nomic-embed-text",
			Timeout:   30 * time.Second,
			CacheSize: 1000,
		},
		LLM: LLMConfig{
			Enabled:   true,
			Host:      "http://localhost:11434/v1",
			Model:     "llama3.1:8b",
			Timeout:   60 * time.Second,
			MaxTokens: 512,
		},
		Rerank: RerankConfig{
			Provider:    "llm",
			Endpoint:    "http://localhost:9659",
			Parallelism: 4,
		},
		Analytics: AnalyticsConfig{
			Enabled:               true,
			MinCorrelationSamples: 10,
		},
		LogLevel: "info",
	}
}

// defaultDatabasePath returns ~/.secondbrain/retrieval.db.
func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "retrieval.db"
	}
	return filepath.Join(home, ".secondbrain", "retrieval.db")
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, rerrors.New(rerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("failed to read config %s", path), err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, rerrors.New(rerrors.ErrCodeConfigInvalid,
					fmt.Sprintf("failed to parse config %s", path), err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies RETRIEVAL_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RETRIEVAL_DATABASE_PATH"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("RETRIEVAL_VECTOR_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.VectorWeight = f
		}
	}
	if v := os.Getenv("RETRIEVAL_LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.LexicalWeight = f
		}
	}
	if v := os.Getenv("RETRIEVAL_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("RETRIEVAL_EMBEDDING_HOST"); v != "" {
		c.Embedding.Host = v
	}
	if v := os.Getenv("RETRIEVAL_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("RETRIEVAL_LLM_HOST"); v != "" {
		c.LLM.Host = v
	}
	if v := os.Getenv("RETRIEVAL_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("RETRIEVAL_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("RETRIEVAL_RERANK_PROVIDER"); v != "" {
		c.Rerank.Provider = v
	}
	if v := os.Getenv("RETRIEVAL_RERANK_ENDPOINT"); v != "" {
		c.Rerank.Endpoint = v
	}
	if v := os.Getenv("RETRIEVAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks invariants that would otherwise surface as subtle
// ranking bugs.
func (c *Config) Validate() error {
	const epsilon = 1e-9

	if c.Search.VectorWeight < 0 || c.Search.LexicalWeight < 0 {
		return rerrors.ConfigError("search weights must be non-negative", nil)
	}
	sum := c.Search.VectorWeight + c.Search.LexicalWeight
	if sum < 1-epsilon || sum > 1+epsilon {
		return rerrors.ConfigError(
			fmt.Sprintf("search weights must sum to 1.0, got %.3f", sum), nil)
	}
	if c.Search.RRFConstant <= 0 {
		return rerrors.ConfigError("rrf_constant must be positive", nil)
	}
	if c.Search.TopK <= 0 {
		return rerrors.ConfigError("top_k must be positive", nil)
	}

	switch c.Rerank.Provider {
	case "llm", "http", "none":
	default:
		return rerrors.ConfigError(
			fmt.Sprintf("unknown rerank provider %q", c.Rerank.Provider), nil)
	}
	if c.Rerank.Parallelism < 1 {
		return rerrors.ConfigError("rerank parallelism must be at least 1", nil)
	}
	if c.Rerank.MinRelevance < 0 || c.Rerank.MinRelevance > 10 {
		return rerrors.ConfigError("rerank min_relevance must be in [0, 10]", nil)
	}

	if c.Analytics.MinCorrelationSamples < 2 {
		return rerrors.ConfigError("min_correlation_samples must be at least 2", nil)
	}

	return nil
}
