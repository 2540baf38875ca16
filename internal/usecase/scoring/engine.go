// Package scoring combines embedding similarity, keyword overlap, industry
// match and mention strength into one relevance score per entity.
package scoring

import (
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/query"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
)

// Vectors resolves the embedding record of an entity.
type Vectors interface {
	Record(symbol string) (entity.EmbeddingRecord, bool)
}

// Engine scores entities against a query representation.
// Stateless apart from its read-only catalog and vectors; safe for concurrent use.
type Engine struct {
	catalog *entity.Catalog
	vectors Vectors
}

// New creates an Engine over a catalog and its embedding snapshot.
func New(catalog *entity.Catalog, vectors Vectors) *Engine {
	return &Engine{catalog: catalog, vectors: vectors}
}

// Candidate is a scoreable entity with its weight-independent signals.
type Candidate struct {
	Symbol  string
	Name    string
	Signals ranking.Signals
}

// Signals computes the per-(query, entity) features.
func Signals(q *query.Representation, e *entity.Entity, rec entity.EmbeddingRecord, industry func(group string) bool) ranking.Signals {
	s := ranking.Signals{
		SimA1:   Cosine(q.EmbedA, rec.Vector(domain.ProfilePrimary, domain.SpaceA)),
		SimB1:   Cosine(q.EmbedB, rec.Vector(domain.ProfilePrimary, domain.SpaceB)),
		SimA2:   Cosine(q.EmbedA, rec.Vector(domain.ProfileSecondary, domain.SpaceA)),
		SimB2:   Cosine(q.EmbedB, rec.Vector(domain.ProfileSecondary, domain.SpaceB)),
		Mention: q.Mentions.Get(e.Symbol()),
	}
	if q.Keywords.Len() > 0 {
		s.KeywordOverlap = q.Keywords.Overlap(e.KeywordProfile())
		if industry != nil {
			s.IndustryMatch = industry(e.IndustryGroup())
		}
	}
	return s
}

// Combine applies weights to precomputed signals.
func Combine(s ranking.Signals, w weights.Config) float64 {
	base := w.Alpha1*s.SimA1 + w.Alpha2*s.SimB1 + w.Beta1*s.SimA2 + w.Beta2*s.SimB2
	kw := w.Lambda1 * float64(s.KeywordOverlap)
	var ind float64
	if s.IndustryMatch {
		ind = w.Lambda2
	}
	men := w.Lambda3 * float64(s.Mention)
	return base + kw + ind + men
}

// Candidates resolves symbols to scoreable candidates. Symbols unknown to the
// catalog or missing any of the four vectors are skipped, as are repeats.
func (e *Engine) Candidates(q *query.Representation, symbols []string) []Candidate {
	industry := func(group string) bool {
		return q.Keywords.Intersects(e.catalog.IndustryKeywords(group))
	}
	out := make([]Candidate, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		ent, ok := e.catalog.Get(sym)
		if !ok {
			continue
		}
		rec, ok := e.vectors.Record(sym)
		if !ok || !rec.Complete() {
			continue
		}
		out = append(out, Candidate{
			Symbol:  sym,
			Name:    ent.Name(),
			Signals: Signals(q, &ent, rec, industry),
		})
	}
	return out
}

// Rank combines cached candidate signals under w, sorts by order and keeps topK.
// A non-positive topK keeps everything.
func Rank(cands []Candidate, w weights.Config, order ranking.Order, topK int) []ranking.Item {
	items := make([]ranking.Item, len(cands))
	for i, c := range cands {
		items[i] = ranking.Item{
			Symbol:  c.Symbol,
			Name:    c.Name,
			Score:   Combine(c.Signals, w),
			Signals: c.Signals,
		}
	}
	ranking.Sort(items, order)
	if topK > 0 {
		items = ranking.Top(items, topK)
	}
	return items
}

// Score is Candidates followed by Rank.
func (e *Engine) Score(
	q *query.Representation, symbols []string, w weights.Config, order ranking.Order, topK int,
) []ranking.Item {
	return Rank(e.Candidates(q, symbols), w, order, topK)
}
