package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/query"
)

func writeJSON(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

var testUniverse = NewSymbolSet([]string{"TSLA", "AAPL", "F"})

func TestLoad_NormalizesRecords(t *testing.T) {
	dir := t.TempDir()
	news := writeJSON(t, dir, "train_news.json", `[
		{"description": "  Tesla   recalls\nCybertruck ", "tickers": ["tsla", "XXXX", "TSLA"], "split": "valid"},
		{"description": "Apple and Ford", "sp500_labels": ["aapl", "f"]},
		{"description": "", "sp500_labels": ["AAPL"]},
		{"description": "Unknown company", "sp500_labels": ["ZZZ"]},
		{"description": "labels win over tickers", "sp500_labels": [], "tickers": ["AAPL"]}
	]`)

	got, err := Load([]string{news}, testUniverse, Options{}, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, query.Labelled{
		Text: "Tesla recalls Cybertruck", Labels: []string{"TSLA"}, Split: "valid", Source: "train_news",
	}, got[0])
	assert.Equal(t, []string{"AAPL", "F"}, got[1].Labels)
	assert.Equal(t, query.SplitTrain, got[1].Split)
}

func TestLoad_SplitAndCap(t *testing.T) {
	dir := t.TempDir()
	a := writeJSON(t, dir, "a.json", `[
		{"description": "one", "sp500_labels": ["TSLA"], "split": "valid"},
		{"description": "two", "sp500_labels": ["TSLA"], "split": "train"},
		{"description": "three", "sp500_labels": ["TSLA"], "split": "valid"},
		{"description": "four", "sp500_labels": ["TSLA"], "split": "valid"}
	]`)
	b := writeJSON(t, dir, "b.json", `[{"description": "five", "sp500_labels": ["F"], "split": "VALID"}]`)

	got, err := Load([]string{a, b, filepath.Join(dir, "missing.json")}, testUniverse,
		Options{Split: query.SplitValid, MaxPerSource: 2}, nil)
	require.NoError(t, err)

	texts := make([]string, len(got))
	for i, l := range got {
		texts[i] = l.Text
	}
	assert.Equal(t, []string{"one", "three", "five"}, texts)
}

func TestLoad_Empty(t *testing.T) {
	dir := t.TempDir()
	p := writeJSON(t, dir, "empty.json", `[{"description": "x", "sp500_labels": ["ZZZ"]}]`)

	_, err := Load([]string{p}, testUniverse, Options{}, nil)
	require.ErrorIs(t, err, domain.ErrEmptyValidationSet)
}

func TestLoad_MalformedJSON(t *testing.T) {
	p := writeJSON(t, t.TempDir(), "bad.json", `{"description": "not an array"}`)

	_, err := Load([]string{p}, testUniverse, Options{}, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrEmptyValidationSet)
}

func TestLabelled_HasLabel(t *testing.T) {
	l := query.Labelled{Labels: []string{"TSLA", "F"}}
	assert.True(t, l.HasLabel("F"))
	assert.False(t, l.HasLabel("AAPL"))
}
