package search

import (
	"sort"
)

// RRFFusion merges vector and lexical candidate sets using Reciprocal
// Rank Fusion.
//
// Algorithm: RRF_score(d) = Σ weight_i / (k + rank_i)
//
// Where:
//   - k = smoothing constant (default: 60)
//   - rank_i = position in ranked list i (1-indexed)
//   - weight_i = weight for search source i
//
// A source the document did not appear in contributes exactly 0; there is
// no missing-rank penalty and no score normalization, so identical inputs
// always produce identical raw scores.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates a fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a fusion instance with a custom k.
// If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse joins the two candidate lists by ID and computes weighted RRF
// scores. Output is sorted descending by RRFScore with deterministic
// tie-breaks and is never truncated; truncation happens after reranking.
func (f *RRFFusion) Fuse(vector, lexical []*Candidate, w Weights) []*FusedResult {
	if len(vector) == 0 && len(lexical) == 0 {
		return []*FusedResult{}
	}

	scores := make(map[string]*FusedResult, len(vector)+len(lexical))

	for i, c := range vector {
		r := f.getOrCreate(scores, c)
		r.VectorScore = c.Score
		r.FoundInVector = true
		r.RRFScore += w.Vector / float64(f.K+i+1)
	}

	for i, c := range lexical {
		r := f.getOrCreate(scores, c)
		r.LexicalScore = c.Score
		r.FoundInLexical = true
		r.RRFScore += w.Lexical / float64(f.K+i+1)
	}

	results := make([]*FusedResult, 0, len(scores))
	for _, r := range scores {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return f.compare(results[i], results[j])
	})

	return results
}

// getOrCreate returns the existing fused result for the candidate's ID
// or creates one carrying the candidate's chunk fields.
func (f *RRFFusion) getOrCreate(m map[string]*FusedResult, c *Candidate) *FusedResult {
	if r, ok := m[c.ID]; ok {
		// Fill fields the first source may have left empty.
		if r.Text == "" {
			r.Text = c.Text
		}
		if r.Title == "" {
			r.Title = c.Title
		}
		return r
	}
	r := &FusedResult{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Text:       c.Text,
		Title:      c.Title,
		Tags:       c.Tags,
		ChunkIndex: c.ChunkIndex,
		Metadata:   c.Metadata,
	}
	m[c.ID] = r
	return r
}

// compare implements deterministic ordering. Returns true if a ranks
// before b.
//
// Priority:
//  1. Higher RRF score
//  2. In both lists (true before false)
//  3. Higher vector score
//  4. Lexicographically smaller ID
func (f *RRFFusion) compare(a, b *FusedResult) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}

	aBoth := a.FoundInVector && a.FoundInLexical
	bBoth := b.FoundInVector && b.FoundInLexical
	if aBoth != bBoth {
		return aBoth
	}

	if a.VectorScore != b.VectorScore {
		return a.VectorScore > b.VectorScore
	}

	return a.ID < b.ID
}
