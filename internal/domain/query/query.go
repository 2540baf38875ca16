// Package query holds the per-request representation of a free-text query.
package query

import (
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/mention"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
)

// Representation is everything the scorer needs to know about one text.
// Ephemeral: built per request, never stored.
type Representation struct {
	Text     string
	EmbedA   []float32
	EmbedB   []float32
	Keywords terms.Set
	Mentions mention.Levels
}

// Encoded reports whether both embedding vectors are present.
func (r *Representation) Encoded() bool {
	return len(r.EmbedA) > 0 && len(r.EmbedB) > 0
}
