package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	rerrors "github.com/secondbrain/retrieval/internal/errors"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions API
// (OpenAI, Ollama, vLLM, LM Studio).
type OpenAIProvider struct {
	client    *http.Client
	transport *http.Transport
	config    Config

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Provider = (*OpenAIProvider)(nil)

// chatMessage is one message in a chat completion request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFormat selects structured output mode.
type responseFormat struct {
	Type string `json:"type"`
}

// chatRequest is the /chat/completions request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// chatResponse is the /chat/completions response body.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// NewOpenAIProvider creates a provider for the configured endpoint.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	cfg = cfg.WithDefaults()

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}

	return &OpenAIProvider{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}
}

// Complete generates free-form text for a prompt.
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (*Completion, error) {
	return p.complete(ctx, system, prompt, nil)
}

// CompleteJSON generates text with JSON response format requested.
func (p *OpenAIProvider) CompleteJSON(ctx context.Context, system, prompt string) (*Completion, error) {
	return p.complete(ctx, system, prompt, &responseFormat{Type: "json_object"})
}

func (p *OpenAIProvider) complete(ctx context.Context, system, prompt string, format *responseFormat) (*Completion, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("provider is closed")
	}
	p.mu.RUnlock()

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:          p.config.Model,
		Messages:       messages,
		MaxTokens:      p.config.MaxTokens,
		Temperature:    p.config.Temperature,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.config.Host+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, rerrors.New(rerrors.ErrCodeProviderTimeout, "completion request timed out", err)
		}
		return nil, rerrors.New(rerrors.ErrCodeProviderUnavailable, "completion service unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, rerrors.New(rerrors.ErrCodeCompletionFailed,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(msg)), nil)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, rerrors.New(rerrors.ErrCodeCompletionFailed, "failed to decode completion response", err)
	}
	if len(result.Choices) == 0 {
		return nil, rerrors.New(rerrors.ErrCodeCompletionFailed, "completion returned no choices", nil)
	}

	return &Completion{
		Text:  result.Choices[0].Message.Content,
		Usage: result.Usage,
	}, nil
}

// ModelName returns the model identifier.
func (p *OpenAIProvider) ModelName() string {
	return p.config.Model
}

// Available checks reachability with a short GET against the models endpoint.
func (p *OpenAIProvider) Available(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.config.Host+"/models", nil)
	if err != nil {
		return false
	}
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (p *OpenAIProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.transport.CloseIdleConnections()
	return nil
}
