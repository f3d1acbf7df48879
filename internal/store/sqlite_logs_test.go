package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogStore(t *testing.T) *SQLiteQueryLogStore {
	t.Helper()
	db, err := OpenSQLite("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteQueryLogStore(db)
	require.NoError(t, err)
	return s
}

func int64Ptr(v int64) *int64 { return &v }

func TestSQLiteQueryLogStore_InsertGetRoundtrip(t *testing.T) {
	s := newTestLogStore(t)
	ctx := context.Background()

	log := &QueryLog{
		ID:              "log-1",
		UserID:          "u1",
		Query:           "tomato care",
		EmbeddingMs:     int64Ptr(12),
		VectorSearchMs:  int64Ptr(3),
		LexicalSearchMs: int64Ptr(2),
		TotalMs:         25,
		RetrievedCount:  30,
		FinalCount:      10,
		AvgCosineScore:  0.61,
		TopCosineScore:  0.92,
		AvgLexicalScore: 4.5,
		HybridSearch:    true,
		Reranking:       false,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.Insert(ctx, log))

	got, err := s.Get(ctx, "log-1")
	require.NoError(t, err)

	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "tomato care", got.Query)
	require.NotNil(t, got.EmbeddingMs)
	assert.Equal(t, int64(12), *got.EmbeddingMs)
	assert.Nil(t, got.RerankMs, "a stage that never ran stays null")
	assert.Equal(t, int64(25), got.TotalMs)
	assert.Equal(t, 0.92, got.TopCosineScore)
	assert.True(t, got.HybridSearch)
	assert.False(t, got.HasFeedback())
}

func TestSQLiteQueryLogStore_GetMissing(t *testing.T) {
	s := newTestLogStore(t)

	_, err := s.Get(context.Background(), "no-such-log")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteQueryLogStore_SetFeedback(t *testing.T) {
	s := newTestLogStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, &QueryLog{ID: "log-1", UserID: "u1", Query: "q"}))

	require.NoError(t, s.SetFeedback(ctx, "log-1", "negative", "irrelevant", "wrong results"))
	require.NoError(t, s.SetFeedback(ctx, "log-1", "positive", "", "found it"))

	got, err := s.Get(ctx, "log-1")
	require.NoError(t, err)
	assert.Equal(t, "positive", got.FeedbackLabel)
	assert.Empty(t, got.FeedbackCategory)
	assert.Equal(t, "found it", got.FeedbackComment)
	assert.True(t, got.HasFeedback())
}

func TestSQLiteQueryLogStore_SetFeedbackMissing(t *testing.T) {
	s := newTestLogStore(t)

	err := s.SetFeedback(context.Background(), "no-such-log", "positive", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteQueryLogStore_ListByUser(t *testing.T) {
	s := newTestLogStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Insert(ctx, &QueryLog{ID: "old", UserID: "u1", Query: "q", CreatedAt: base}))
	require.NoError(t, s.Insert(ctx, &QueryLog{ID: "new", UserID: "u1", Query: "q", CreatedAt: base.Add(48 * time.Hour)}))
	require.NoError(t, s.Insert(ctx, &QueryLog{ID: "other", UserID: "u2", Query: "q", CreatedAt: base}))

	all, err := s.ListByUser(ctx, "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "old", all[0].ID, "logs are ordered oldest first")

	recent, err := s.ListByUser(ctx, "u1", base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ID)

	none, err := s.ListByUser(ctx, "nobody", time.Time{})
	require.NoError(t, err)
	require.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSQLiteQueryLogStore_ClosedRejectsOperations(t *testing.T) {
	s := newTestLogStore(t)
	ctx := context.Background()

	require.NoError(t, s.Close())

	assert.Error(t, s.Insert(ctx, &QueryLog{ID: "x", UserID: "u1", Query: "q"}))
	_, err := s.Get(ctx, "x")
	assert.Error(t, err)
	_, err = s.ListByUser(ctx, "u1", time.Time{})
	assert.Error(t, err)
}
