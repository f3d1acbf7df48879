// Package llm provides text generation for query expansion and reranking.
package llm

import (
	"context"
	"time"
)

// Default configuration values.
const (
	// DefaultHost is the default OpenAI-compatible endpoint.
	DefaultHost = "http://localhost:11434/v1"

	// DefaultModel is the default generation model.
	DefaultModel = "llama3.1:8b"

	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxTokens caps response length for expansion and scoring
	// prompts, which are short by construction.
	DefaultMaxTokens = 512
)

// Usage reports token consumption for a single call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of a generation call.
type Completion struct {
	// Text is the generated content.
	Text string

	// Usage is the token accounting for this call.
	Usage Usage
}

// Provider generates text from prompts.
type Provider interface {
	// Complete generates free-form text for a prompt.
	Complete(ctx context.Context, system, prompt string) (*Completion, error)

	// CompleteJSON generates text constrained to a JSON object response.
	// Providers without native JSON mode fall back to plain completion.
	CompleteJSON(ctx context.Context, system, prompt string) (*Completion, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the backing service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config holds LLM client settings.
type Config struct {
	// Host is the OpenAI-compatible base URL (including /v1).
	Host string `yaml:"host"`

	// Model is the generation model name.
	Model string `yaml:"model"`

	// APIKey is the optional bearer token.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout"`

	// MaxTokens caps the response length. Zero uses the default.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls sampling randomness.
	Temperature float64 `yaml:"temperature"`
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
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}
