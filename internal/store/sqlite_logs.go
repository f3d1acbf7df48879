package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SQLiteQueryLogStore implements QueryLogStore using SQLite.
type SQLiteQueryLogStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Verify interface implementation at compile time
var _ QueryLogStore = (*SQLiteQueryLogStore)(nil)

// NewSQLiteQueryLogStore creates a query-log store backed by the given database.
func NewSQLiteQueryLogStore(db *sql.DB) (*SQLiteQueryLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	s := &SQLiteQueryLogStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize query log schema: %w", err)
	}
	return s, nil
}

// initSchema creates the query log table.
func (s *SQLiteQueryLogStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		query TEXT NOT NULL,
		embedding_ms INTEGER,
		vector_search_ms INTEGER,
		lexical_search_ms INTEGER,
		rerank_ms INTEGER,
		total_ms INTEGER NOT NULL DEFAULT 0,
		retrieved_count INTEGER NOT NULL DEFAULT 0,
		final_count INTEGER NOT NULL DEFAULT 0,
		avg_cosine_score REAL NOT NULL DEFAULT 0,
		top_cosine_score REAL NOT NULL DEFAULT 0,
		avg_rerank_score REAL NOT NULL DEFAULT 0,
		top_rerank_score REAL NOT NULL DEFAULT 0,
		avg_lexical_score REAL NOT NULL DEFAULT 0,
		hybrid_search INTEGER NOT NULL DEFAULT 0,
		hyde INTEGER NOT NULL DEFAULT 0,
		query_expansion INTEGER NOT NULL DEFAULT 0,
		reranking INTEGER NOT NULL DEFAULT 0,
		feedback_label TEXT NOT NULL DEFAULT '',
		feedback_category TEXT NOT NULL DEFAULT '',
		feedback_comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_query_logs_user ON query_logs(user_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert persists a new query log.
func (s *SQLiteQueryLogStore) Insert(ctx context.Context, log *QueryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("query log store is closed")
	}

	createdAt := log.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_logs
			(id, user_id, query,
			 embedding_ms, vector_search_ms, lexical_search_ms, rerank_ms, total_ms,
			 retrieved_count, final_count,
			 avg_cosine_score, top_cosine_score, avg_rerank_score, top_rerank_score,
			 avg_lexical_score,
			 hybrid_search, hyde, query_expansion, reranking,
			 feedback_label, feedback_category, feedback_comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		log.ID, log.UserID, log.Query,
		log.EmbeddingMs, log.VectorSearchMs, log.LexicalSearchMs, log.RerankMs, log.TotalMs,
		log.RetrievedCount, log.FinalCount,
		log.AvgCosineScore, log.TopCosineScore, log.AvgRerankScore, log.TopRerankScore,
		log.AvgLexicalScore,
		log.HybridSearch, log.HyDE, log.QueryExpansion, log.Reranking,
		log.FeedbackLabel, log.FeedbackCategory, log.FeedbackComment, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}
	return nil
}

// Get fetches a log by ID.
func (s *SQLiteQueryLogStore) Get(ctx context.Context, id string) (*QueryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("query log store is closed")
	}

	row := s.db.QueryRowContext(ctx, logSelectColumns+` FROM query_logs WHERE id = ?`, id)
	log, err := scanQueryLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query log: %w", err)
	}
	return log, nil
}

// SetFeedback sets the feedback triple on an existing log. Last write wins.
func (s *SQLiteQueryLogStore) SetFeedback(ctx context.Context, id, label, category, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("query log store is closed")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE query_logs
		SET feedback_label = ?, feedback_category = ?, feedback_comment = ?
		WHERE id = ?
	`, label, category, comment, id)
	if err != nil {
		return fmt.Errorf("failed to set feedback: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check feedback update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns a user's logs created at or after since.
func (s *SQLiteQueryLogStore) ListByUser(ctx context.Context, userID string, since time.Time) ([]*QueryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("query log store is closed")
	}

	query := logSelectColumns + ` FROM query_logs WHERE user_id = ?`
	args := []any{userID}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, since)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list query logs: %w", err)
	}
	defer rows.Close()

	var logs []*QueryLog
	for rows.Next() {
		log, err := scanQueryLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query log: %w", err)
		}
		logs = append(logs, log)
	}
	if logs == nil {
		logs = []*QueryLog{}
	}
	return logs, rows.Err()
}

// Close marks the store closed. The shared db handle is not closed here.
func (s *SQLiteQueryLogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

const logSelectColumns = `
	SELECT id, user_id, query,
	       embedding_ms, vector_search_ms, lexical_search_ms, rerank_ms, total_ms,
	       retrieved_count, final_count,
	       avg_cosine_score, top_cosine_score, avg_rerank_score, top_rerank_score,
	       avg_lexical_score,
	       hybrid_search, hyde, query_expansion, reranking,
	       feedback_label, feedback_category, feedback_comment, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanQueryLog reads one query log row.
func scanQueryLog(row rowScanner) (*QueryLog, error) {
	var l QueryLog
	err := row.Scan(&l.ID, &l.UserID, &l.Query,
		&l.EmbeddingMs, &l.VectorSearchMs, &l.LexicalSearchMs, &l.RerankMs, &l.TotalMs,
		&l.RetrievedCount, &l.FinalCount,
		&l.AvgCosineScore, &l.TopCosineScore, &l.AvgRerankScore, &l.TopRerankScore,
		&l.AvgLexicalScore,
		&l.HybridSearch, &l.HyDE, &l.QueryExpansion, &l.Reranking,
		&l.FeedbackLabel, &l.FeedbackCategory, &l.FeedbackComment, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}
