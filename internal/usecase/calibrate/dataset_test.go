package calibrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/query"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/scoring"
)

type mockRepresenter struct {
	representFn func(ctx context.Context, text string) (*query.Representation, error)
}

func (m *mockRepresenter) Represent(ctx context.Context, text string) (*query.Representation, error) {
	return m.representFn(ctx, text)
}

type mockCandidates struct{}

func (mockCandidates) Candidates(q *query.Representation, symbols []string) []scoring.Candidate {
	out := make([]scoring.Candidate, len(symbols))
	for i, s := range symbols {
		out[i] = scoring.Candidate{Symbol: s}
		if strings.Contains(q.Text, s) {
			out[i].Signals.SimA1 = 1
		}
	}
	return out
}

type recordMap map[string]entity.EmbeddingRecord

func (m recordMap) Record(symbol string) (entity.EmbeddingRecord, bool) {
	r, ok := m[symbol]
	return r, ok
}

func TestPrepare(t *testing.T) {
	repr := &mockRepresenter{representFn: func(_ context.Context, text string) (*query.Representation, error) {
		if text == "broken" {
			return nil, domain.ErrEncoderUnavailable
		}
		return &query.Representation{Text: text, EmbedA: []float32{1}, EmbedB: []float32{1}}, nil
	}}
	queries := []query.Labelled{
		{Text: "about AAA", Labels: []string{"AAA"}},
		{Text: "broken", Labels: []string{"BBB"}},
		{Text: "about BBB", Labels: []string{"BBB"}},
	}

	ds, err := Prepare(context.Background(), queries, []string{"AAA", "BBB"}, repr, mockCandidates{}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, 1, ds.Dropped)
	assert.Equal(t, "about AAA", ds.Queries[0].Text)
	assert.Equal(t, "about BBB", ds.Queries[1].Text)
	require.Len(t, ds.Queries[0].Candidates, 2)
	assert.InDelta(t, 1, ds.Queries[0].Candidates[0].Signals.SimA1, 0)
}

func TestPrepare_AllDropped(t *testing.T) {
	repr := &mockRepresenter{representFn: func(context.Context, string) (*query.Representation, error) {
		return nil, domain.ErrEncoderUnavailable
	}}
	_, err := Prepare(context.Background(), []query.Labelled{{Text: "x", Labels: []string{"A"}}}, []string{"A"}, repr, mockCandidates{}, 1, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyValidationSet)
}

func TestPrepare_UnexpectedErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	repr := &mockRepresenter{representFn: func(context.Context, string) (*query.Representation, error) {
		return nil, boom
	}}
	_, err := Prepare(context.Background(), []query.Labelled{{Text: "x", Labels: []string{"A"}}}, []string{"A"}, repr, mockCandidates{}, 1, nil)
	assert.ErrorIs(t, err, boom)
}

func TestPrepare_EmptyUniverse(t *testing.T) {
	_, err := Prepare(context.Background(), nil, nil, nil, nil, 1, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
}

func TestUniverse(t *testing.T) {
	var ents []entity.Entity
	for _, s := range []string{"CCC", "AAA", "BBB", "DDD"} {
		e, err := entity.New(entity.Params{Symbol: s})
		require.NoError(t, err)
		ents = append(ents, e)
	}
	cat, err := entity.NewCatalog(ents, nil)
	require.NoError(t, err)

	v := []float32{1}
	full := entity.EmbeddingRecord{PrimaryA: v, PrimaryB: v, SecondaryA: v, SecondaryB: v}
	vecs := recordMap{
		"AAA": full,
		"CCC": full,
		"DDD": {PrimaryA: v},
		"ZZZ": full,
	}
	assert.Equal(t, []string{"AAA", "CCC"}, Universe(cat, vecs))
}
