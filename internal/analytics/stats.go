package analytics

import (
	"math"

	"github.com/secondbrain/retrieval/internal/store"
)

// Stats aggregates query performance over a set of logs.
// Correlation fields are nil when the sample is too small or degenerate.
type Stats struct {
	// QueryCount is the number of logs aggregated.
	QueryCount int

	// Average stage timings in milliseconds, each averaged only over
	// logs where the stage ran.
	AvgTotalMs         float64
	AvgEmbeddingMs     float64
	AvgVectorSearchMs  float64
	AvgLexicalSearchMs float64
	AvgRerankMs        float64

	// Average result counts.
	AvgRetrievedCount float64
	AvgFinalCount     float64

	// Average score aggregates.
	AvgCosineScore float64
	AvgRerankScore float64

	// Feedback counters. WithFeedback excludes empty labels; Positive
	// counts the exact positive label.
	WithFeedback         int
	PositiveFeedback     int
	PositiveFeedbackRate float64

	// Pearson correlation of the top cosine / top rerank score against
	// binarized feedback (positive=1, otherwise 0), over labeled logs.
	CosineFeedbackCorrelation *float64
	RerankFeedbackCorrelation *float64
}

// computeStats aggregates logs into Stats.
func computeStats(logs []*store.QueryLog, minCorrelationSamples int) *Stats {
	s := &Stats{QueryCount: len(logs)}
	if len(logs) == 0 {
		return s
	}

	var totalMs, embedMs, vectorMs, lexicalMs, rerankMs float64
	var embedN, vectorN, lexicalN, rerankN int
	var retrieved, final, cosine, rerank float64
	var topCosines, topReranks, feedbackSignal []float64

	for _, l := range logs {
		totalMs += float64(l.TotalMs)
		if l.EmbeddingMs != nil {
			embedMs += float64(*l.EmbeddingMs)
			embedN++
		}
		if l.VectorSearchMs != nil {
			vectorMs += float64(*l.VectorSearchMs)
			vectorN++
		}
		if l.LexicalSearchMs != nil {
			lexicalMs += float64(*l.LexicalSearchMs)
			lexicalN++
		}
		if l.RerankMs != nil {
			rerankMs += float64(*l.RerankMs)
			rerankN++
		}

		retrieved += float64(l.RetrievedCount)
		final += float64(l.FinalCount)
		cosine += l.AvgCosineScore
		rerank += l.AvgRerankScore

		if l.HasFeedback() {
			s.WithFeedback++
			if l.FeedbackLabel == PositiveLabel {
				s.PositiveFeedback++
			}
			topCosines = append(topCosines, l.TopCosineScore)
			topReranks = append(topReranks, l.TopRerankScore)
			feedbackSignal = append(feedbackSignal, binarizeLabel(l.FeedbackLabel))
		}
	}

	n := float64(len(logs))
	s.AvgTotalMs = totalMs / n
	s.AvgEmbeddingMs = safeAvg(embedMs, embedN)
	s.AvgVectorSearchMs = safeAvg(vectorMs, vectorN)
	s.AvgLexicalSearchMs = safeAvg(lexicalMs, lexicalN)
	s.AvgRerankMs = safeAvg(rerankMs, rerankN)
	s.AvgRetrievedCount = retrieved / n
	s.AvgFinalCount = final / n
	s.AvgCosineScore = cosine / n
	s.AvgRerankScore = rerank / n

	if s.WithFeedback > 0 {
		s.PositiveFeedbackRate = float64(s.PositiveFeedback) / float64(s.WithFeedback)
	}

	if len(feedbackSignal) >= minCorrelationSamples {
		s.CosineFeedbackCorrelation = pearson(topCosines, feedbackSignal)
		s.RerankFeedbackCorrelation = pearson(topReranks, feedbackSignal)
	}

	return s
}

// binarizeLabel maps feedback labels onto the correlation signal.
func binarizeLabel(label string) float64 {
	if label == PositiveLabel {
		return 1
	}
	return 0
}

// safeAvg averages a sum over n observations, 0 when none.
func safeAvg(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// pearson computes the Pearson correlation coefficient of two equal-length
// samples. Returns nil when either sample has zero variance, since the
// coefficient is undefined there.
func pearson(x, y []float64) *float64 {
	if len(x) != len(y) || len(x) == 0 {
		return nil
	}

	n := float64(len(x))
	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= n
	meanY /= n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return nil
	}

	r := cov / math.Sqrt(varX*varY)
	return &r
}
