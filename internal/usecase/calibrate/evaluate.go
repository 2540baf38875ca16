package calibrate

import (
	"context"
	"fmt"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
)

// Report is the Hit@K of one weight configuration under both orderings.
type Report struct {
	Queries int
	K       int
	Weights weights.Config
	HitAtK  map[ranking.Order]float64
}

// Evaluate scores ds with w under score and mention-first ordering.
func Evaluate(ctx context.Context, ds *Dataset, w weights.Config, k, workers int) (Report, error) {
	if k < 1 {
		k = w.TopK
	}
	r := Report{Queries: ds.Len(), K: k, Weights: w, HitAtK: make(map[ranking.Order]float64, 2)}
	for _, o := range []ranking.Order{ranking.OrderScore, ranking.OrderMentionFirst} {
		hit, err := HitAtK(ctx, ds, w, o, k, workers)
		if err != nil {
			return Report{}, fmt.Errorf("evaluate %s: %w", o, err)
		}
		r.HitAtK[o] = hit
	}
	return r, nil
}
