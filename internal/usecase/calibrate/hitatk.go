package calibrate

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/scoring"
)

// HitAtK returns the fraction of queries with at least one label among the
// top k entities under w and order. Queries without any scoreable
// candidate do not count. Returns 0 for an empty dataset.
func HitAtK(
	ctx context.Context, ds *Dataset, w weights.Config, order ranking.Order, k, workers int,
) (float64, error) {
	if workers < 1 {
		workers = DefaultWorkers
	}
	hits := make([]float64, len(ds.Queries))
	counted := make([]bool, len(ds.Queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range ds.Queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			q := &ds.Queries[i]
			if len(q.Candidates) == 0 {
				return nil
			}
			counted[i] = true
			items := scoring.Rank(q.Candidates, w, order, k)
			syms := make([]string, len(items))
			for j, it := range items {
				syms[j] = it.Symbol
			}
			if q.hit(syms) {
				hits[i] = 1
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	vals := make([]float64, 0, len(hits))
	for i, c := range counted {
		if c {
			vals = append(vals, hits[i])
		}
	}
	if len(vals) == 0 {
		return 0, nil
	}
	return stat.Mean(vals, nil), nil
}
