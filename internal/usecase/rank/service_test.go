package rank

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
	dommention "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/mention"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/mention"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/retrieval"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/scoring"
)

// --- Mocks ---

type stubExtractor struct{}

func (stubExtractor) Extract(text string) terms.Set { return terms.NewSet(terms.Tokenize(text)...) }

type mockEncoder struct {
	a, b  []float32
	err   error
	calls int
}

func (m *mockEncoder) Encode(_ context.Context, _ string) ([]float32, []float32, error) {
	m.calls++
	return m.a, m.b, m.err
}

type mockRetriever struct {
	shortlist retrieval.Shortlist
	gotTopK   int
}

func (m *mockRetriever) Shortlist(_ context.Context, _ []float32, topK int) retrieval.Shortlist {
	m.gotTopK = topK
	return m.shortlist
}

type fixedWeights struct{ a domweights.Artifact }

func (f fixedWeights) Current() domweights.Artifact { return f.a }

type recordMap map[string]entity.EmbeddingRecord

func (m recordMap) Record(symbol string) (entity.EmbeddingRecord, bool) {
	r, ok := m[symbol]
	return r, ok
}

// --- Fixtures ---

func testCatalog(t *testing.T) *entity.Catalog {
	t.Helper()
	params := []entity.Params{
		{Symbol: "TSLA", Name: "Tesla, Inc.", Aliases: []string{"tesla", "cybertruck"}, IndustryGroup: "Automobiles"},
		{Symbol: "F", Name: "Ford Motor Company", IndustryGroup: "Automobiles"},
		{Symbol: "AAPL", Name: "Apple Inc.", Aliases: []string{"iphone"}},
	}
	var ents []entity.Entity
	for _, p := range params {
		e, err := entity.New(p)
		require.NoError(t, err)
		ents = append(ents, e)
	}
	cat, err := entity.NewCatalog(ents, map[string][]string{"Automobiles": {"truck", "car"}})
	require.NoError(t, err)
	return cat
}

func vec(x, y float32) []float32 { return []float32{x, y} }

func testRecords() recordMap {
	rec := func(v []float32) entity.EmbeddingRecord {
		return entity.EmbeddingRecord{PrimaryA: v, PrimaryB: v, SecondaryA: v, SecondaryB: v}
	}
	return recordMap{
		"TSLA": rec(vec(0.2, 1)),
		"F":    rec(vec(1, 0.1)),
		"AAPL": rec(vec(0.7, 0.7)),
	}
}

type fixture struct {
	svc       *Service
	encoder   *mockEncoder
	retriever *mockRetriever
	requests  *prometheus.CounterVec
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	cat := testCatalog(t)
	enc := &mockEncoder{a: vec(1, 0), b: vec(1, 0)}
	ret := &mockRetriever{shortlist: retrieval.Shortlist{
		Status:     retrieval.StatusOK,
		Candidates: []entity.Neighbor{{Symbol: "F"}, {Symbol: "AAPL"}, {Symbol: "TSLA"}},
	}}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_rank_requests"}, []string{"status", "order"})
	repr := NewRepresenter(mention.NewDetector(cat, mention.DefaultOptions()), stubExtractor{}, enc)
	art := domweights.NewArtifact(domweights.Default(), 0.5, 10, true)
	svc := New(repr, ret, scoring.New(cat, testRecords()), fixedWeights{art}, opts, Metrics{Requests: requests})
	return &fixture{svc: svc, encoder: enc, retriever: ret, requests: requests}
}

func symbols(items []ranking.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Symbol
	}
	return out
}

// --- Tests ---

func TestRank_CybertruckAliasLiftsTesla(t *testing.T) {
	f := newFixture(t, Options{})

	res := f.svc.Rank(context.Background(), "Tesla just unveiled the new Cybertruck", 3, ranking.OrderScore)

	require.Equal(t, ranking.StatusOK, res.Status)
	assert.Equal(t, dommention.Alias, res.Mentions.Get("TSLA"))
	require.NotEmpty(t, res.Items)
	assert.Equal(t, "TSLA", res.Items[0].Symbol)
	assert.Equal(t, dommention.Alias, res.Items[0].Signals.Mention)
	assert.NotEqual(t, uuid.Nil, res.WeightsVersion)
	assert.Equal(t, 3, f.retriever.gotTopK)
}

func TestRank_LiteralSymbolRaisesToSymbol(t *testing.T) {
	f := newFixture(t, Options{})
	res := f.svc.Rank(context.Background(), "TSLA: Tesla just unveiled the new Cybertruck", 3, ranking.OrderScore)
	assert.Equal(t, dommention.Symbol, res.Mentions.Get("TSLA"))
}

func TestRank_Idempotent(t *testing.T) {
	f := newFixture(t, Options{})
	text := "Ford and Apple both announced new products"
	first := f.svc.Rank(context.Background(), text, 2, ranking.OrderMentionFirst)
	second := f.svc.Rank(context.Background(), text, 2, ranking.OrderMentionFirst)
	assert.Equal(t, first, second)
	assert.Len(t, first.Items, 2)
}

func TestRank_DefaultsTopKFromWeights(t *testing.T) {
	f := newFixture(t, Options{MaxTopK: 2})
	f.svc.Rank(context.Background(), "cars", 0, ranking.OrderScore)
	assert.Equal(t, 2, f.retriever.gotTopK)

	f = newFixture(t, Options{})
	res := f.svc.Rank(context.Background(), "cars", 0, ranking.OrderScore)
	assert.Equal(t, domweights.Default().TopK, f.retriever.gotTopK)
	assert.Equal(t, domweights.Default().TopK, res.TopK)

	f = newFixture(t, Options{DefaultTopK: 3, MaxTopK: 10})
	res = f.svc.Rank(context.Background(), "cars", 0, ranking.OrderScore)
	assert.Equal(t, 3, f.retriever.gotTopK)
	assert.Equal(t, 3, res.TopK)
}

func TestRank_EmptyText(t *testing.T) {
	f := newFixture(t, Options{})
	res := f.svc.Rank(context.Background(), "  \n ", 3, ranking.OrderScore)
	assert.Equal(t, ranking.StatusEmpty, res.Status)
	assert.Empty(t, res.Items)
	assert.Zero(t, f.encoder.calls)
}

func TestRank_EncoderUnavailable(t *testing.T) {
	f := newFixture(t, Options{FallbackToMentions: true})
	f.encoder.err = domain.ErrEncoderUnavailable

	res := f.svc.Rank(context.Background(), "Tesla Cybertruck", 3, ranking.OrderScore)
	assert.Equal(t, ranking.StatusEncoderUnavailable, res.Status)
	assert.Empty(t, res.Items)
	assert.Equal(t, dommention.Alias, res.Mentions.Get("TSLA"))
	assert.InDelta(t, 1, testutil.ToFloat64(f.requests.WithLabelValues("encoder_unavailable", "score")), 0)
}

func TestRank_IndexUnavailable(t *testing.T) {
	f := newFixture(t, Options{})
	f.retriever.shortlist = retrieval.Shortlist{Status: retrieval.StatusUnavailable}

	res := f.svc.Rank(context.Background(), "Tesla Cybertruck", 3, ranking.OrderScore)
	assert.Equal(t, ranking.StatusIndexUnavailable, res.Status)
	assert.Empty(t, res.Items)
}

func TestRank_IndexUnavailableFallsBackToMentions(t *testing.T) {
	f := newFixture(t, Options{FallbackToMentions: true})
	f.retriever.shortlist = retrieval.Shortlist{Status: retrieval.StatusUnavailable}

	res := f.svc.Rank(context.Background(), "Tesla Cybertruck", 3, ranking.OrderScore)
	assert.Equal(t, ranking.StatusIndexUnavailable, res.Status)
	assert.Equal(t, []string{"TSLA"}, symbols(res.Items))
}

func TestRank_EmptyShortlist(t *testing.T) {
	f := newFixture(t, Options{FallbackToMentions: true})
	f.retriever.shortlist = retrieval.Shortlist{Status: retrieval.StatusEmpty}

	res := f.svc.Rank(context.Background(), "Tesla", 3, ranking.OrderScore)
	assert.Equal(t, ranking.StatusEmpty, res.Status)
	assert.Empty(t, res.Items)
}

func TestRank_MentionedSymbolMissingFromShortlist(t *testing.T) {
	f := newFixture(t, Options{})
	f.retriever.shortlist = retrieval.Shortlist{
		Status:     retrieval.StatusOK,
		Candidates: []entity.Neighbor{{Symbol: "F"}, {Symbol: "AAPL"}},
	}

	res := f.svc.Rank(context.Background(), "TSLA recalls every Cybertruck", 3, ranking.OrderMentionFirst)
	require.Equal(t, ranking.StatusOK, res.Status)
	assert.Equal(t, dommention.Symbol, res.Mentions.Get("TSLA"))
	require.Len(t, res.Items, 3)
	assert.Equal(t, "TSLA", res.Items[0].Symbol)
	assert.ElementsMatch(t, []string{"TSLA", "F", "AAPL"}, symbols(res.Items))
}

func TestRank_MentionAlreadyShortlistedIsNotDuplicated(t *testing.T) {
	f := newFixture(t, Options{})
	res := f.svc.Rank(context.Background(), "TSLA Cybertruck", 5, ranking.OrderScore)
	assert.ElementsMatch(t, []string{"TSLA", "F", "AAPL"}, symbols(res.Items))
}

func TestRank_ShortlistWithoutScoreableEntities(t *testing.T) {
	f := newFixture(t, Options{})
	f.retriever.shortlist = retrieval.Shortlist{
		Status:     retrieval.StatusOK,
		Candidates: []entity.Neighbor{{Symbol: "MSFT"}},
	}
	res := f.svc.Rank(context.Background(), "software", 3, ranking.OrderScore)
	assert.Equal(t, ranking.StatusEmpty, res.Status)
}
