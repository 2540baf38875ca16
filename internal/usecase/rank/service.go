// Package rank orchestrates one ranking request: analysis, encoding,
// shortlist retrieval and scoring.
package rank

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/mention"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/logger"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/retrieval"
)

// Result is the outcome of Rank. Items is empty unless Status is ok, or
// the mention fallback filled it while the index was down.
type Result struct {
	Items          []ranking.Item
	Status         ranking.Status
	Order          ranking.Order
	TopK           int
	WeightsVersion uuid.UUID
	Mentions       mention.Levels
	Keywords       terms.Set
}

// Options tune the service.
type Options struct {
	// DefaultTopK applies to requests without a size. Zero defers to the weights' TopK.
	DefaultTopK int
	// MaxTopK caps the requested result size. Zero means no cap.
	MaxTopK int
	// FallbackToMentions scores the mentioned entities when the index is unavailable.
	FallbackToMentions bool
}

// Metrics are the optional collectors updated per request.
type Metrics struct {
	Requests *prometheus.CounterVec   // status, order
	Duration *prometheus.HistogramVec // status
}

// Service ranks catalog entities for free text.
type Service struct {
	repr      *Representer
	retriever Retriever
	scorer    Scorer
	weights   WeightsProvider
	opts      Options
	metrics   Metrics
}

// New creates a rank Service.
func New(
	repr *Representer, retriever Retriever, scorer Scorer, w WeightsProvider,
	opts Options, m Metrics,
) *Service {
	return &Service{repr: repr, retriever: retriever, scorer: scorer, weights: w, opts: opts, metrics: m}
}

// ClampTopK resolves the effective result size: non-positive selects
// DefaultTopK, then the weights' TopK, and MaxTopK caps it.
func (s *Service) ClampTopK(topK int, w int) int {
	if topK <= 0 {
		topK = s.opts.DefaultTopK
	}
	if topK <= 0 {
		topK = w
	}
	if topK <= 0 {
		topK = 1
	}
	if s.opts.MaxTopK > 0 && topK > s.opts.MaxTopK {
		topK = s.opts.MaxTopK
	}
	return topK
}

// Rank returns at most topK entities for text under the given order.
// It never fails: upstream problems surface in Result.Status.
func (s *Service) Rank(ctx context.Context, text string, topK int, order ranking.Order) Result {
	start := time.Now()
	log := logger.FromContext(ctx)

	art := s.weights.Current()
	topK = s.ClampTopK(topK, art.Weights.TopK)
	res := Result{Order: order, TopK: topK, WeightsVersion: art.Version, Status: ranking.StatusEmpty}

	defer func() {
		s.observe(res, time.Since(start))
	}()

	q, err := s.repr.Represent(ctx, text)
	res.Mentions, res.Keywords = q.Mentions, q.Keywords
	if q.Text == "" {
		return res
	}
	if err != nil {
		log.Warn("Query encoding failed", zap.Error(err))
		res.Status = ranking.StatusEncoderUnavailable
		return res
	}

	sl := s.retriever.Shortlist(ctx, q.EmbedA, topK)
	switch sl.Status {
	case retrieval.StatusOK:
		// Mentioned entities are candidates even when the index missed them.
		symbols := append(sl.Symbols(), q.Mentions.Symbols()...)
		res.Items = s.scorer.Score(q, symbols, art.Weights, order, topK)
		if len(res.Items) > 0 {
			res.Status = ranking.StatusOK
		}
	case retrieval.StatusUnavailable:
		res.Status = ranking.StatusIndexUnavailable
		if s.opts.FallbackToMentions && len(q.Mentions) > 0 {
			res.Items = s.scorer.Score(q, q.Mentions.Symbols(), art.Weights, order, topK)
			log.Info("Index unavailable, ranked mentioned entities",
				zap.Int("mentioned", len(q.Mentions)),
				zap.Int("ranked", len(res.Items)),
			)
		}
	}
	return res
}

func (s *Service) observe(res Result, d time.Duration) {
	status := string(res.Status)
	if s.metrics.Requests != nil {
		s.metrics.Requests.WithLabelValues(status, string(res.Order)).Inc()
	}
	if s.metrics.Duration != nil {
		s.metrics.Duration.WithLabelValues(status).Observe(d.Seconds())
	}
}
