package rank

import (
	"context"
	"fmt"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/query"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/mention"
)

// Representer turns raw text into a query representation.
type Representer struct {
	detector  Detector
	extractor KeywordExtractor
	encoder   Encoder
}

// NewRepresenter wires the three per-text analyses.
func NewRepresenter(d Detector, x KeywordExtractor, e Encoder) *Representer {
	return &Representer{detector: d, extractor: x, encoder: e}
}

// Analyze runs the encoder-free passes: mention detection and keyword extraction.
func (r *Representer) Analyze(text string) *query.Representation {
	text = mention.Normalize(text)
	return &query.Representation{
		Text:     text,
		Keywords: r.extractor.Extract(text),
		Mentions: r.detector.Detect(text),
	}
}

// Represent analyzes text and encodes it. On encoder failure the returned
// representation still carries keywords and mentions, and the error wraps
// domain.ErrEncoderUnavailable.
func (r *Representer) Represent(ctx context.Context, text string) (*query.Representation, error) {
	q := r.Analyze(text)
	if q.Text == "" {
		return q, nil
	}
	a, b, err := r.encoder.Encode(ctx, q.Text)
	if err != nil {
		return q, fmt.Errorf("represent: %w", err)
	}
	q.EmbedA, q.EmbedB = a, b
	return q, nil
}
