// Package embed provides embedding generation for retrieval queries.
package embed

import (
	"context"
	"time"
)

// Default configuration values.
const (
	// DefaultHost is the default embedding service endpoint.
	DefaultHost = "http://localhost:11434"

	// DefaultModel is the default embedding model.
	DefaultModel = "nomic-embed-text"

	// DefaultDimensions is used when dimension detection is skipped.
	DefaultDimensions = 768

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 30 * time.Second
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the backing service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config holds embedding client settings.
type Config struct {
	// Host is the embedding service base URL.
	Host string `yaml:"host"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// Dimensions is the expected embedding size. Zero means detect from
	// the first response.
	Dimensions int `yaml:"dimensions"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// CacheSize is the query embedding LRU capacity. Zero uses the default.
	CacheSize int `yaml:"cache_size"`
}

// WithDefaults fills unset fields with defaults.
func (c Config) WithDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
	return c
}
