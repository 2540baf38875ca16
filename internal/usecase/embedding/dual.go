package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
)

// DualEncoder embeds one text in both spaces concurrently.
type DualEncoder struct {
	a       domain.Embedder
	b       domain.Embedder
	timeout time.Duration
}

// NewDualEncoder pairs the EMBED_A and EMBED_B embedders.
func NewDualEncoder(a, b domain.Embedder) *DualEncoder {
	return &DualEncoder{a: a, b: b}
}

// WithTimeout bounds each Encode call. Zero disables the bound.
func (d *DualEncoder) WithTimeout(t time.Duration) *DualEncoder {
	d.timeout = t
	return d
}

// Encode returns the EMBED_A and EMBED_B vectors of text.
// Any failure of either space is reported as domain.ErrEncoderUnavailable.
func (d *DualEncoder) Encode(ctx context.Context, text string) (embedA, embedB []float32, err error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := d.a.Embed(gctx, text)
		if err != nil {
			return fmt.Errorf("%s: %w", domain.SpaceA, err)
		}
		embedA = res.Embedding
		return nil
	})
	g.Go(func() error {
		res, err := d.b.Embed(gctx, text)
		if err != nil {
			return fmt.Errorf("%s: %w", domain.SpaceB, err)
		}
		embedB = res.Embedding
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrEncoderUnavailable, err)
	}
	if len(embedA) == 0 || len(embedB) == 0 {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrEncoderUnavailable, errEmptyEmbedding)
	}
	return embedA, embedB, nil
}

// HealthCheck checks both spaces.
func (d *DualEncoder) HealthCheck(ctx context.Context) error {
	var errs []error
	for _, e := range []domain.Embedder{d.a, d.b} {
		if hc, ok := e.(domain.HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

var errEmptyEmbedding = errors.New("empty embedding")
