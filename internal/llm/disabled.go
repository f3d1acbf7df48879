package llm

import (
	"context"
	"fmt"
)

// DisabledProvider is used when no LLM is configured. Every call fails,
// which the pipeline treats as a degradation signal rather than an error.
type DisabledProvider struct{}

// Verify interface implementation at compile time
var _ Provider = (*DisabledProvider)(nil)

// NewDisabledProvider returns a provider that is never available.
func NewDisabledProvider() *DisabledProvider {
	return &DisabledProvider{}
}

// Complete always fails.
func (p *DisabledProvider) Complete(ctx context.Context, system, prompt string) (*Completion, error) {
	return nil, fmt.Errorf("llm provider is disabled")
}

// CompleteJSON always fails.
func (p *DisabledProvider) CompleteJSON(ctx context.Context, system, prompt string) (*Completion, error) {
	return nil, fmt.Errorf("llm provider is disabled")
}

// ModelName returns a placeholder name.
func (p *DisabledProvider) ModelName() string {
	return "disabled"
}

// Available always reports false.
func (p *DisabledProvider) Available(ctx context.Context) bool {
	return false
}

// Close is a no-op.
func (p *DisabledProvider) Close() error {
	return nil
}
