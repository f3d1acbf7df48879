// Package analytics records per-query performance metrics and computes
// aggregate and correlation statistics over them. Every operation is
// fail-soft: storage failures degrade to empty results, never errors.
package analytics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/secondbrain/retrieval/internal/store"
)

// PositiveLabel is the feedback label counted as positive; any other
// non-empty label binarizes to 0 in correlation analysis.
const PositiveLabel = "positive"

// DefaultMinCorrelationSamples is the minimum labeled-log count below
// which correlation is suppressed as statistically meaningless.
const DefaultMinCorrelationSamples = 10

// Recorder persists query logs, attaches feedback, and aggregates
// performance statistics.
type Recorder struct {
	logs       store.QueryLogStore
	logger     *slog.Logger
	minSamples int
}

// RecorderOption configures the recorder.
type RecorderOption func(*Recorder)

// WithMinCorrelationSamples overrides the correlation sample threshold.
func WithMinCorrelationSamples(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.minSamples = n
		}
	}
}

// NewRecorder creates an analytics recorder.
func NewRecorder(logs store.QueryLogStore, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		logs:       logs,
		logger:     logger,
		minSamples: DefaultMinCorrelationSamples,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LogQuery persists one query log and returns its identifier, or ""
// when the write fails. Never returns an error to the caller.
func (r *Recorder) LogQuery(ctx context.Context, log *store.QueryLog) string {
	if r.logs == nil {
		return ""
	}

	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	if err := r.logs.Insert(ctx, log); err != nil {
		r.logger.Warn("query_log_write_failed",
			slog.String("user_id", log.UserID),
			slog.String("error", err.Error()))
		return ""
	}

	return log.ID
}

// RecordFeedback attaches the feedback triple to an existing log.
// A missing log is a warning, not an error. Last write wins.
func (r *Recorder) RecordFeedback(ctx context.Context, logID, label, category, comment string) {
	if r.logs == nil {
		return
	}

	err := r.logs.SetFeedback(ctx, logID, label, category, comment)
	if errors.Is(err, store.ErrNotFound) {
		r.logger.Warn("feedback_log_not_found", slog.String("log_id", logID))
		return
	}
	if err != nil {
		r.logger.Warn("feedback_write_failed",
			slog.String("log_id", logID),
			slog.String("error", err.Error()))
	}
}

// PerformanceStats aggregates over a user's logs created at or after
// since. Storage failure degrades to empty stats.
func (r *Recorder) PerformanceStats(ctx context.Context, userID string, since time.Time) *Stats {
	if r.logs == nil {
		return &Stats{}
	}

	logs, err := r.logs.ListByUser(ctx, userID, since)
	if err != nil {
		r.logger.Warn("stats_read_failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return &Stats{}
	}

	return computeStats(logs, r.minSamples)
}
