package retrieval

import (
	"context"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
)

// Index answers approximate nearest-neighbour queries over PRIMARY/EMBED_A vectors.
type Index interface {
	Nearest(ctx context.Context, vec []float32, k int) ([]entity.Neighbor, error)
}
