package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
)

func TestNew_NormalizesFields(t *testing.T) {
	e, err := New(Params{
		Symbol:          " tsla ",
		Name:            "Tesla, Inc.",
		Aliases:         []string{"Tesla", "Cybertruck", "Model Y"},
		IndustryGroup:   "Automobiles & Components",
		StaticKeywords:  []string{"EV", "Battery", "Technology"},
		DynamicKeywords: []string{"autopilot", "battery"},
	})
	require.NoError(t, err)

	assert.Equal(t, "TSLA", e.Symbol())
	assert.Equal(t, "Tesla, Inc.", e.Name())
	assert.True(t, e.Aliases().Has("cybertruck"))
	assert.True(t, e.Aliases().Has("model y"))
	assert.Equal(t, []string{"tesla"}, e.NameKeywords().Sorted())
	assert.Equal(t, []string{"battery", "ev"}, e.StaticKeywords().Sorted())
	assert.Equal(t, []string{"autopilot", "battery", "ev"}, e.KeywordProfile().Sorted())
}

func TestNew_RequiresSymbol(t *testing.T) {
	_, err := New(Params{Symbol: "  ", Name: "Nameless"})
	assert.Error(t, err)

	_, err = New(Params{Symbol: "BRK B"})
	assert.Error(t, err)
}

func TestNameKeywords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"comma cut", "Apple Inc., Cupertino", []string{"apple"}},
		{"generic dropped", "Alphabet Holdings Group", []string{"alphabet"}},
		{"short dropped", "AT&T Inc.", []string{}},
		{"length counts runes", "Ōi Électrique", []string{"électrique"}},
		{"stopwords dropped", "The Bank of New York Mellon", []string{"bank", "mellon", "new", "york"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NameKeywords(tc.in, terms.DefaultStopwords(), terms.DefaultGenericTerms())
			assert.Equal(t, tc.want, got.Sorted())
		})
	}
}

func mustEntity(t *testing.T, symbol, name, group string) Entity {
	t.Helper()
	e, err := New(Params{Symbol: symbol, Name: name, IndustryGroup: group})
	require.NoError(t, err)
	return e
}

func TestNewCatalog(t *testing.T) {
	c, err := NewCatalog([]Entity{
		mustEntity(t, "TSLA", "Tesla, Inc.", "Automobiles"),
		mustEntity(t, "AAPL", "Apple Inc.", "Hardware"),
	}, map[string][]string{"Automobiles": {"EV", "car"}})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"AAPL", "TSLA"}, c.Symbols())

	e, ok := c.Get("TSLA")
	require.True(t, ok)
	assert.Equal(t, "Tesla, Inc.", e.Name())
	assert.True(t, c.IndustryKeywords(e.IndustryGroup()).Has("ev"))
	assert.Nil(t, c.IndustryKeywords("unknown"))

	_, ok = c.Get("MSFT")
	assert.False(t, ok)
}

func TestNewCatalog_Errors(t *testing.T) {
	_, err := NewCatalog(nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)

	_, err = NewCatalog([]Entity{
		mustEntity(t, "TSLA", "Tesla", ""),
		mustEntity(t, "tsla", "Tesla again", ""),
	}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
}

func TestEmbeddingRecord_Complete(t *testing.T) {
	var r EmbeddingRecord
	assert.False(t, r.Complete())

	v := []float32{1, 0}
	for _, p := range domain.Profiles {
		for _, s := range domain.Spaces {
			assert.False(t, r.Complete())
			r.Set(p, s, v)
			assert.Equal(t, v, r.Vector(p, s))
		}
	}
	assert.True(t, r.Complete())

	r.SecondaryB = nil
	assert.False(t, r.Complete())
}
