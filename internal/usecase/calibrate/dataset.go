package calibrate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/query"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/scoring"
)

// DefaultWorkers bounds preprocessing and evaluation fan-out.
const DefaultWorkers = 8

// Representer turns text into a query representation.
type Representer interface {
	Represent(ctx context.Context, text string) (*query.Representation, error)
}

// CandidateSource computes weight-independent signals for a set of symbols.
type CandidateSource interface {
	Candidates(q *query.Representation, symbols []string) []scoring.Candidate
}

// Universe returns the catalog symbols that have all four vectors, ascending.
func Universe(cat *entity.Catalog, vecs scoring.Vectors) []string {
	var out []string
	for _, s := range cat.Symbols() {
		if rec, ok := vecs.Record(s); ok && rec.Complete() {
			out = append(out, s)
		}
	}
	return out
}

// Prepared is a validation query with its cached per-entity signals.
type Prepared struct {
	Text       string
	Labels     []string
	Candidates []scoring.Candidate
}

func (p *Prepared) hit(symbols []string) bool {
	for _, s := range symbols {
		for _, l := range p.Labels {
			if s == l {
				return true
			}
		}
	}
	return false
}

// Dataset is the preprocessed validation split. Read-only once built.
type Dataset struct {
	Queries  []Prepared
	Universe []string
	Dropped  int
}

// Len returns the number of usable queries.
func (d *Dataset) Len() int { return len(d.Queries) }

// Prepare encodes every query once and caches its signals against the
// whole universe. Queries whose encoding fails are dropped and counted.
func Prepare(
	ctx context.Context, queries []query.Labelled, universe []string,
	repr Representer, src CandidateSource, workers int, logger *zap.Logger,
) (*Dataset, error) {
	if len(universe) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make([]*Prepared, len(queries))
	var dropped atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range queries {
		g.Go(func() error {
			lq := queries[i]
			q, err := repr.Represent(gctx, lq.Text)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if !errors.Is(err, domain.ErrEncoderUnavailable) {
					return fmt.Errorf("prepare query %d: %w", i, err)
				}
				dropped.Add(1)
				logger.Warn("Validation query dropped", zap.Int("index", i), zap.Error(err))
				return nil
			}
			out[i] = &Prepared{
				Text:       q.Text,
				Labels:     lq.Labels,
				Candidates: src.Candidates(q, universe),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds := &Dataset{Universe: universe, Dropped: int(dropped.Load())}
	for _, p := range out {
		if p != nil && len(p.Labels) > 0 {
			ds.Queries = append(ds.Queries, *p)
		}
	}
	if len(ds.Queries) == 0 {
		return nil, domain.ErrEmptyValidationSet
	}
	return ds, nil
}
