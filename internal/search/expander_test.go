package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpander_MultiQueryDropsShortVariations(t *testing.T) {
	provider := &fakeProvider{
		jsonText: map[string]string{
			"rephrase search queries": `{"variations": ["ok phrasing", "Hi"]}`,
		},
	}
	expander := NewExpander(provider, &fakeEmbedder{}, nil)

	exp := expander.Expand(context.Background(), "original query", ExpandOptions{
		MultiQuery:     true,
		VariationCount: 3,
	})

	require.Equal(t, []string{"original query", "ok phrasing"}, exp.Variations,
		`"Hi" is too short to be a meaningful query`)
	assert.Equal(t, "original query", exp.Variations[0])
	assert.Len(t, exp.VariationEmbeddings, 2)
	assert.Empty(t, exp.Errors)
}

func TestExpander_HyDEStructured(t *testing.T) {
	provider := &fakeProvider{
		jsonText: map[string]string{
			"answer passages": `{"document": "Tomatoes need six hours of sun."}`,
		},
	}
	expander := NewExpander(provider, &fakeEmbedder{}, nil)

	exp := expander.Expand(context.Background(), "how much sun do tomatoes need", ExpandOptions{HyDE: true})

	assert.Equal(t, "Tomatoes need six hours of sun.", exp.HypotheticalDocument)
	assert.NotEmpty(t, exp.HypotheticalEmbedding)
	assert.Empty(t, exp.Errors)
}

func TestExpander_HyDEFallsBackToFreeText(t *testing.T) {
	provider := &fakeProvider{
		failJSON: true,
		freeText: map[string]string{
			"answer passages": "A free-text hypothetical answer.",
		},
	}
	expander := NewExpander(provider, &fakeEmbedder{}, nil)

	exp := expander.Expand(context.Background(), "query", ExpandOptions{HyDE: true})

	assert.Equal(t, "A free-text hypothetical answer.", exp.HypotheticalDocument)
	assert.Empty(t, exp.Errors)
}

func TestExpander_HyDEEmptyDocumentIsSubStepFailure(t *testing.T) {
	provider := &fakeProvider{
		failJSON: true,
		freeText: map[string]string{
			"answer passages": "   ",
		},
	}
	expander := NewExpander(provider, &fakeEmbedder{}, nil)

	exp := expander.Expand(context.Background(), "query", ExpandOptions{HyDE: true})

	assert.Empty(t, exp.HypotheticalDocument)
	require.NotEmpty(t, exp.Errors)
	assert.Contains(t, exp.Errors[0], "hyde")
	// Expansion still carries the original query.
	assert.Equal(t, []string{"query"}, exp.Variations)
}

func TestExpander_UnavailableProviderIsNoOp(t *testing.T) {
	provider := &fakeProvider{unavailable: true}
	expander := NewExpander(provider, &fakeEmbedder{}, nil)

	exp := expander.Expand(context.Background(), "query", ExpandOptions{
		HyDE:           true,
		MultiQuery:     true,
		VariationCount: 3,
	})

	assert.Equal(t, []string{"query"}, exp.Variations)
	assert.Empty(t, exp.HypotheticalDocument)
	assert.Zero(t, exp.TokensUsed)
	assert.Empty(t, exp.Errors)
	assert.Zero(t, provider.calls, "no LLM call may execute when the provider is unavailable")
}

func TestExpander_TokensAccumulateAcrossSubSteps(t *testing.T) {
	provider := &fakeProvider{
		tokens: 5,
		jsonText: map[string]string{
			"answer passages":         `{"document": "A plausible answer."}`,
			"rephrase search queries": `{"variations": ["another phrasing"]}`,
		},
	}
	expander := NewExpander(provider, &fakeEmbedder{}, nil)

	exp := expander.Expand(context.Background(), "query text", ExpandOptions{
		HyDE:           true,
		MultiQuery:     true,
		VariationCount: 2,
	})

	assert.Equal(t, 10, exp.TokensUsed, "one structured call per sub-step")
}

func TestExpander_ProviderErrorRecordedPerSubStep(t *testing.T) {
	provider := &fakeProvider{failAll: true}
	expander := NewExpander(provider, &fakeEmbedder{}, nil)

	exp := expander.Expand(context.Background(), "query text", ExpandOptions{
		HyDE:           true,
		MultiQuery:     true,
		VariationCount: 3,
	})

	assert.Len(t, exp.Errors, 2)
	assert.Equal(t, []string{"query text"}, exp.Variations)
}

func TestExpander_EmbedderFailureRecorded(t *testing.T) {
	provider := &fakeProvider{
		jsonText: map[string]string{
			"answer passages": `{"document": "A plausible answer."}`,
		},
	}
	expander := NewExpander(provider, &fakeEmbedder{fail: true}, nil)

	exp := expander.Expand(context.Background(), "query", ExpandOptions{HyDE: true})

	assert.Equal(t, "A plausible answer.", exp.HypotheticalDocument)
	assert.Empty(t, exp.HypotheticalEmbedding)
	assert.NotEmpty(t, exp.Errors)
}

func TestExpander_NoSubStepsRequested(t *testing.T) {
	provider := &fakeProvider{}
	expander := NewExpander(provider, &fakeEmbedder{}, nil)

	exp := expander.Expand(context.Background(), "query", ExpandOptions{})

	assert.Equal(t, []string{"query"}, exp.Variations)
	assert.Zero(t, provider.calls)
}
