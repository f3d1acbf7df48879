// Package search implements the retrieval pipeline: query expansion,
// lexical scoring, candidate retrieval, Reciprocal Rank Fusion, and
// LLM relevance reranking.
package search

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// Retrieval tuning defaults.
const (
	// DefaultVectorWeight and DefaultLexicalWeight balance semantic and
	// keyword evidence during fusion.
	DefaultVectorWeight  = 0.7
	DefaultLexicalWeight = 0.3

	// MinFetchCandidates is the floor on the over-fetch width. Fusion and
	// reranking need more candidates than the caller's topK to work with.
	MinFetchCandidates = 20

	// MaxRerankDocChars caps candidate text length in scoring prompts.
	MaxRerankDocChars = 4000

	// MinVariationLength is the minimum rune count for a generated query
	// variation to be worth embedding and searching.
	MinVariationLength = 5

	// DefaultRerankParallelism bounds concurrent scoring calls toward the
	// LLM provider.
	DefaultRerankParallelism = 4

	// neutralRelevanceScore is assigned when a candidate cannot be scored.
	neutralRelevanceScore = 5.0

	// Final blend weights: relevance dominates, vector similarity
	// contributes the remainder.
	finalRelevanceWeight = 0.8
	finalVectorWeight    = 0.2
)

// Weights configures the relative importance of vector vs lexical evidence.
type Weights struct {
	// Vector is the weight for embedding similarity search.
	Vector float64

	// Lexical is the weight for term-frequency search.
	Lexical float64
}

// DefaultWeights returns the default fusion weights.
func DefaultWeights() Weights {
	return Weights{Vector: DefaultVectorWeight, Lexical: DefaultLexicalWeight}
}

// VectorOnly returns weights for pure semantic ranking, used when hybrid
// search is disabled. The empty lexical list still flows through fusion.
func VectorOnly() Weights {
	return Weights{Vector: 1, Lexical: 0}
}

// Candidate is a single result from one search method before fusion.
type Candidate struct {
	ID         string
	DocumentID string
	Text       string
	Title      string
	Tags       []string
	ChunkIndex int

	// Score is method-specific: cosine similarity for vector candidates,
	// non-negative term-frequency score for lexical candidates.
	Score float64

	// Rank is the 1-based position within this method's result list.
	Rank int

	// Metadata carries method-specific extras (e.g. lexical snippet).
	Metadata map[string]string
}

// FusedResult is one candidate after RRF fusion across both sources.
type FusedResult struct {
	ID         string
	DocumentID string
	Text       string
	Title      string
	Tags       []string
	ChunkIndex int
	Metadata   map[string]string

	// VectorScore and LexicalScore preserve the per-source scores.
	// A source the result was absent from contributes a zero score.
	VectorScore  float64
	LexicalScore float64

	// RRFScore is the weighted reciprocal-rank sum.
	RRFScore float64

	FoundInVector  bool
	FoundInLexical bool
}

// RankedResult is a fused result after (optional) relevance reranking.
type RankedResult struct {
	FusedResult

	// RelevanceScore is the LLM-assigned rating in [0, 10].
	RelevanceScore float64

	// WasReranked is false for pass-through results.
	WasReranked bool

	// OriginalRank is the 1-based position before reranking.
	OriginalRank int

	// FinalRank is the dense 1-based position after reranking.
	FinalRank int

	// FinalScore is the blended score in [0, 1] exposed to consumers.
	FinalScore float64
}

// QueryExpansion is the outcome of the expansion phase. Sub-step failures
// are recorded in Errors; the pipeline continues with what succeeded.
type QueryExpansion struct {
	// OriginalQuery is the untouched input query.
	OriginalQuery string

	// HypotheticalDocument is the HyDE-generated answer passage, empty
	// when HyDE was disabled or failed.
	HypotheticalDocument string

	// HypotheticalEmbedding is the embedding of the hypothetical document.
	HypotheticalEmbedding []float32

	// Variations holds alternative phrasings with the original query
	// always at index 0 when expansion ran.
	Variations []string

	// VariationEmbeddings aligns with Variations.
	VariationEmbeddings [][]float32

	// TokensUsed accumulates over LLM calls that actually executed.
	TokensUsed int

	// Errors holds per-sub-step failure reasons.
	Errors []string
}

// ExpandOptions selects which expansion sub-steps run.
type ExpandOptions struct {
	// HyDE enables hypothetical document generation.
	HyDE bool

	// MultiQuery enables alternative phrasing generation.
	MultiQuery bool

	// VariationCount is the requested total phrasing count including the
	// original. Values <= 1 disable multi-query generation.
	VariationCount int
}

// RetrieveOptions configures one retrieval invocation.
type RetrieveOptions struct {
	// TopK is the number of results to return.
	TopK int

	// SimilarityThreshold is the minimum cosine similarity for vector
	// candidates.
	SimilarityThreshold float64

	// MinRelevance filters reranked candidates scoring below it.
	MinRelevance float64

	// VariationCount is the requested phrasing count for query expansion.
	VariationCount int

	// Feature toggles.
	HybridSearch   bool
	HyDE           bool
	QueryExpansion bool
	Reranking      bool
	Analytics      bool

	// RerankingProvider selects among constructed rerankers:
	// "llm", "http", or "none".
	RerankingProvider string
}

// RetrieveResult is the pipeline output.
type RetrieveResult struct {
	// Results is the final ranked list, empty (never nil) on total failure.
	Results []*RankedResult

	// LogID identifies the analytics record, empty when analytics was
	// disabled or the write failed.
	LogID string

	// Expansion is the query expansion outcome, nil when expansion did
	// not run.
	Expansion *QueryExpansion
}
