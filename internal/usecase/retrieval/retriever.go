package retrieval

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
)

// Status is the outcome of a shortlist query.
type Status string

const (
	// StatusOK means the index returned at least one candidate.
	StatusOK Status = "ok"
	// StatusEmpty means the index answered with no candidates.
	StatusEmpty Status = "empty"
	// StatusUnavailable means the index failed or timed out.
	StatusUnavailable Status = "unavailable"
)

const (
	// MinMultiplier is the smallest allowed over-fetch factor.
	MinMultiplier = 3
	// DefaultTimeout bounds a shortlist query when none is configured.
	DefaultTimeout = 2 * time.Second
)

// Shortlist is the candidate set for one query.
type Shortlist struct {
	Candidates []entity.Neighbor
	Status     Status
}

// Symbols returns candidate symbols in index order.
func (s Shortlist) Symbols() []string {
	out := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		out[i] = c.Symbol
	}
	return out
}

// Options tune the retriever.
type Options struct {
	Multiplier int
	Timeout    time.Duration
}

// Retriever narrows the entity universe to an ANN shortlist.
type Retriever struct {
	index      Index
	multiplier int
	timeout    time.Duration
	size       prometheus.Observer
	failures   *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a Retriever. Multiplier is raised to MinMultiplier and a
// non-positive timeout falls back to DefaultTimeout. Metric collectors may be nil.
func New(
	index Index, opts Options,
	size prometheus.Observer, failures *prometheus.CounterVec,
	logger *zap.Logger,
) *Retriever {
	if opts.Multiplier < MinMultiplier {
		opts.Multiplier = MinMultiplier
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		index:      index,
		multiplier: opts.Multiplier,
		timeout:    opts.Timeout,
		size:       size,
		failures:   failures,
		logger:     logger,
	}
}

// Multiplier returns the effective over-fetch factor.
func (r *Retriever) Multiplier() int { return r.multiplier }

// Shortlist asks the index for topK×multiplier neighbours of embedA.
// It never returns an error: failures surface as StatusUnavailable.
func (r *Retriever) Shortlist(ctx context.Context, embedA []float32, topK int) Shortlist {
	if topK < 1 {
		topK = 1
	}
	if len(embedA) == 0 {
		r.fail("error")
		return Shortlist{Status: StatusUnavailable}
	}

	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	k := topK * r.multiplier
	hits, err := r.index.Nearest(qctx, embedA, k)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(qctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		r.fail(reason)
		r.logger.Warn("Shortlist query failed",
			zap.String("reason", reason),
			zap.Int("k", k),
			zap.Error(err),
		)
		return Shortlist{Status: StatusUnavailable}
	}

	hits = dedupe(hits)
	if r.size != nil {
		r.size.Observe(float64(len(hits)))
	}
	if len(hits) == 0 {
		r.fail("empty")
		return Shortlist{Status: StatusEmpty}
	}
	return Shortlist{Candidates: hits, Status: StatusOK}
}

func (r *Retriever) fail(reason string) {
	if r.failures != nil {
		r.failures.WithLabelValues(reason).Inc()
	}
}

// dedupe keeps the first hit per symbol; an index may return a key twice
// while an entity is being rewritten.
func dedupe(hits []entity.Neighbor) []entity.Neighbor {
	seen := make(map[string]struct{}, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if h.Symbol == "" {
			continue
		}
		if _, ok := seen[h.Symbol]; ok {
			continue
		}
		seen[h.Symbol] = struct{}{}
		out = append(out, h)
	}
	return out
}
