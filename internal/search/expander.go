package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/secondbrain/retrieval/internal/embed"
	"github.com/secondbrain/retrieval/internal/llm"
)

// HyDE and multi-query prompts. Short system prompts keep token cost low;
// structured output is requested first with free text as fallback.
const (
	hydeSystemPrompt = "You write short, factual answer passages for search queries. " +
		"Respond with a JSON object: {\"document\": \"<passage>\"}."

	hydeFallbackSystemPrompt = "You write short, factual answer passages for search queries. " +
		"Respond with the passage only, no preamble."

	multiQuerySystemPrompt = "You rephrase search queries. " +
		"Respond with a JSON object: {\"variations\": [\"<rephrasing>\", ...]}."

	multiQueryFallbackSystemPrompt = "You rephrase search queries. " +
		"Respond with one rephrasing per line, no numbering."
)

// Expander widens a query before retrieval via HyDE and multi-query
// generation. The two LLM calls are independent and run concurrently;
// each sub-step fails in isolation.
type Expander struct {
	provider llm.Provider
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewExpander creates a query expander.
func NewExpander(provider llm.Provider, embedder embed.Embedder, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{provider: provider, embedder: embedder, logger: logger}
}

// Expand runs the enabled sub-steps and returns a partial result on any
// failure. An unavailable provider degrades every sub-step to a no-op.
func (e *Expander) Expand(ctx context.Context, query string, opts ExpandOptions) *QueryExpansion {
	exp := &QueryExpansion{
		OriginalQuery: query,
		Variations:    []string{query},
	}

	wantHyDE := opts.HyDE
	wantMulti := opts.MultiQuery && opts.VariationCount > 1
	if !wantHyDE && !wantMulti {
		return exp
	}

	if e.provider == nil || !e.provider.Available(ctx) {
		e.logger.Debug("expansion_skipped_provider_unavailable",
			slog.Bool("hyde", wantHyDE),
			slog.Bool("multi_query", wantMulti))
		return exp
	}

	var (
		hydeDoc     string
		hydeTokens  int
		hydeErr     string
		variations  []string
		multiTokens int
		multiErr    string
	)

	g, gctx := errgroup.WithContext(ctx)

	if wantHyDE {
		g.Go(func() error {
			hydeDoc, hydeTokens, hydeErr = e.generateHypothetical(gctx, query)
			return nil
		})
	}
	if wantMulti {
		g.Go(func() error {
			variations, multiTokens, multiErr = e.generateVariations(gctx, query, opts.VariationCount-1)
			return nil
		})
	}
	_ = g.Wait()

	exp.TokensUsed = hydeTokens + multiTokens
	if hydeErr != "" {
		exp.Errors = append(exp.Errors, hydeErr)
	}
	if multiErr != "" {
		exp.Errors = append(exp.Errors, multiErr)
	}

	exp.HypotheticalDocument = hydeDoc
	exp.Variations = append(exp.Variations, variations...)

	e.embedExpansion(ctx, exp)

	e.logger.Debug("query_expanded",
		slog.Int("variations", len(exp.Variations)),
		slog.Bool("hyde", exp.HypotheticalDocument != ""),
		slog.Int("tokens_used", exp.TokensUsed),
		slog.Int("errors", len(exp.Errors)))

	return exp
}

// generateHypothetical produces a HyDE answer passage. The structured
// path is tried first; a free-text completion is the fallback.
func (e *Expander) generateHypothetical(ctx context.Context, query string) (doc string, tokens int, reason string) {
	prompt := "Write a short passage that plausibly answers this query:\n\n" + query

	if c, err := e.provider.CompleteJSON(ctx, hydeSystemPrompt, prompt); err == nil {
		tokens += c.Usage.TotalTokens
		var parsed struct {
			Document string `json:"document"`
		}
		if jsonErr := json.Unmarshal([]byte(c.Text), &parsed); jsonErr == nil {
			if d := strings.TrimSpace(parsed.Document); d != "" {
				return d, tokens, ""
			}
		}
	}

	c, err := e.provider.Complete(ctx, hydeFallbackSystemPrompt, prompt)
	if err != nil {
		return "", tokens, fmt.Sprintf("hyde: %v", err)
	}
	tokens += c.Usage.TotalTokens

	d := strings.TrimSpace(c.Text)
	if d == "" {
		return "", tokens, "hyde: provider returned empty document"
	}
	return d, tokens, ""
}

// generateVariations produces up to max alternative phrasings. Variations
// shorter than MinVariationLength runes are dropped as too short to be
// meaningful queries.
func (e *Expander) generateVariations(ctx context.Context, query string, max int) (kept []string, tokens int, reason string) {
	prompt := fmt.Sprintf("Produce up to %d alternative phrasings of this search query:\n\n%s", max, query)

	var raw []string

	if c, err := e.provider.CompleteJSON(ctx, multiQuerySystemPrompt, prompt); err == nil {
		tokens += c.Usage.TotalTokens
		var parsed struct {
			Variations []string `json:"variations"`
		}
		if jsonErr := json.Unmarshal([]byte(c.Text), &parsed); jsonErr == nil {
			raw = parsed.Variations
		}
	}

	if len(raw) == 0 {
		c, err := e.provider.Complete(ctx, multiQueryFallbackSystemPrompt, prompt)
		if err != nil {
			return nil, tokens, fmt.Sprintf("multi_query: %v", err)
		}
		tokens += c.Usage.TotalTokens
		raw = strings.Split(c.Text, "\n")
	}

	for _, v := range raw {
		v = strings.TrimSpace(v)
		if utf8.RuneCountInString(v) < MinVariationLength {
			continue
		}
		kept = append(kept, v)
		if len(kept) == max {
			break
		}
	}

	return kept, tokens, ""
}

// embedExpansion embeds the hypothetical document and every retained
// variation. Embedding failures are recorded, not raised.
func (e *Expander) embedExpansion(ctx context.Context, exp *QueryExpansion) {
	if e.embedder == nil {
		return
	}

	if exp.HypotheticalDocument != "" {
		vec, err := e.embedder.Embed(ctx, exp.HypotheticalDocument)
		if err != nil {
			exp.Errors = append(exp.Errors, fmt.Sprintf("hyde embedding: %v", err))
		} else {
			exp.HypotheticalEmbedding = vec
		}
	}

	vecs, err := e.embedder.EmbedBatch(ctx, exp.Variations)
	if err != nil {
		exp.Errors = append(exp.Errors, fmt.Sprintf("variation embedding: %v", err))
		return
	}
	exp.VariationEmbeddings = vecs
}
