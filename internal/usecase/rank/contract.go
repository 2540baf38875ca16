package rank

import (
	"context"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/mention"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/query"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/retrieval"
)

// Detector finds entity mentions in text.
type Detector interface {
	Detect(text string) mention.Levels
}

// KeywordExtractor pulls salient terms from text.
type KeywordExtractor interface {
	Extract(text string) terms.Set
}

// Encoder embeds text in both embedding spaces.
type Encoder interface {
	Encode(ctx context.Context, text string) (embedA, embedB []float32, err error)
}

// Retriever produces the ANN shortlist.
type Retriever interface {
	Shortlist(ctx context.Context, embedA []float32, topK int) retrieval.Shortlist
}

// Scorer ranks candidate symbols for a query.
type Scorer interface {
	Score(q *query.Representation, symbols []string, w domweights.Config, order ranking.Order, topK int) []ranking.Item
}

// WeightsProvider exposes the active weights artifact.
type WeightsProvider interface {
	Current() domweights.Artifact
}
