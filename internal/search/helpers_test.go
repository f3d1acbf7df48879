package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/secondbrain/retrieval/internal/llm"
	"github.com/secondbrain/retrieval/internal/store"
)

// fakeProvider scripts LLM responses per system prompt substring.
type fakeProvider struct {
	mu          sync.Mutex
	jsonText    map[string]string // system prompt substring -> JSON response
	freeText    map[string]string // system prompt substring -> free-text response
	tokens      int
	failJSON    bool
	failAll     bool
	unavailable bool
	calls       int
}

func (f *fakeProvider) respond(m map[string]string, system string) (string, bool) {
	for k, v := range m {
		if strings.Contains(system, k) {
			return v, true
		}
	}
	return "", false
}

func (f *fakeProvider) Complete(ctx context.Context, system, prompt string) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll {
		return nil, fmt.Errorf("provider down")
	}
	if text, ok := f.respond(f.freeText, system); ok {
		return &llm.Completion{Text: text, Usage: llm.Usage{TotalTokens: f.tokens}}, nil
	}
	return nil, fmt.Errorf("no scripted response")
}

func (f *fakeProvider) CompleteJSON(ctx context.Context, system, prompt string) (*llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll || f.failJSON {
		return nil, fmt.Errorf("structured output unavailable")
	}
	if text, ok := f.respond(f.jsonText, system); ok {
		return &llm.Completion{Text: text, Usage: llm.Usage{TotalTokens: f.tokens}}, nil
	}
	return nil, fmt.Errorf("no scripted response")
}

func (f *fakeProvider) ModelName() string { return "fake" }

func (f *fakeProvider) Available(ctx context.Context) bool { return !f.unavailable }

func (f *fakeProvider) Close() error { return nil }

// fakeEmbedder returns a fixed-dimension vector derived from text length.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("embedder down")
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = []float32{float32(len(text)), 1, 0}
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func (f *fakeEmbedder) Available(ctx context.Context) bool { return !f.fail }

func (f *fakeEmbedder) Close() error { return nil }

// fakeVectorStore serves a fixed result list and counts searches.
type fakeVectorStore struct {
	mu       sync.Mutex
	results  []*store.VectorResult
	searches int
	fail     bool
}

func (f *fakeVectorStore) Add(ctx context.Context, chunks []*store.Chunk) error { return nil }

func (f *fakeVectorStore) Search(ctx context.Context, embedding []float32, userID string, topK int, minScore float64) ([]*store.VectorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if f.fail {
		return nil, fmt.Errorf("vector index down")
	}
	out := make([]*store.VectorResult, 0, len(f.results))
	for _, r := range f.results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, ids []string) error { return nil }

func (f *fakeVectorStore) Count(userID string) int { return len(f.results) }

func (f *fakeVectorStore) Close() error { return nil }

// fakeChunkStore serves a fixed chunk list and counts reads.
type fakeChunkStore struct {
	mu     sync.Mutex
	chunks []*store.Chunk
	lists  int
	fail   bool
}

func (f *fakeChunkStore) Put(ctx context.Context, chunks []*store.Chunk) error { return nil }

func (f *fakeChunkStore) Get(ctx context.Context, ids []string) ([]*store.Chunk, error) {
	return nil, nil
}

func (f *fakeChunkStore) ListByUser(ctx context.Context, userID string) ([]*store.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.fail {
		return nil, fmt.Errorf("chunk store down")
	}
	out := make([]*store.Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChunkStore) SearchText(ctx context.Context, query, userID string, topK int) ([]*store.LexicalResult, error) {
	return nil, fmt.Errorf("no native full-text index")
}

func (f *fakeChunkStore) Delete(ctx context.Context, ids []string) error { return nil }

func (f *fakeChunkStore) Close() error { return nil }

func testChunk(id, userID, title, text string) *store.Chunk {
	return &store.Chunk{
		ID:         id,
		DocumentID: "doc-" + id,
		UserID:     userID,
		Title:      title,
		Text:       text,
		CreatedAt:  time.Now(),
	}
}
