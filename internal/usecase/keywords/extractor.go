// Package keywords extracts salient query terms with part-of-speech tagging.
package keywords

import (
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/mention"
)

// DefaultLimit is the number of keywords kept per text.
const DefaultLimit = 10

// maxPhraseLen bounds candidate phrases to trigrams.
const maxPhraseLen = 3

// Extractor turns a text into a small keyword set: nouns and noun phrases
// of up to three tokens, ranked by frequency then first position.
// Safe for concurrent use.
type Extractor struct {
	limit  int
	stop   terms.Set
	logger *zap.Logger
}

// New creates an extractor keeping at most limit keywords (DefaultLimit when <= 0).
func New(limit int, logger *zap.Logger) *Extractor {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{limit: limit, stop: terms.DefaultStopwords(), logger: logger}
}

type token struct {
	text string
	tag  string
}

type candidate struct {
	phrase string
	count  int
	first  int
	words  int
	proper bool
}

// Extract returns the lowercase keyword set of text. Tagging failures fall
// back to plain word tokens.
func (e *Extractor) Extract(text string) terms.Set {
	text = mention.Normalize(text)
	if text == "" {
		return terms.Set{}
	}

	toks, err := e.tag(text)
	if err != nil {
		e.logger.Warn("Keyword tagging failed, using plain tokens", zap.Error(err))
		toks = plainTokens(text)
	}
	return e.rank(candidates(toks, e.stop))
}

func (e *Extractor) tag(text string) ([]token, error) {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // caller logs and falls back
	}
	out := make([]token, 0, len(doc.Tokens()))
	for _, t := range doc.Tokens() {
		out = append(out, token{text: t.Text, tag: t.Tag})
	}
	return out, nil
}

func plainTokens(text string) []token {
	words := terms.Tokenize(text)
	out := make([]token, len(words))
	for i, w := range words {
		out[i] = token{text: w, tag: "NN"}
	}
	return out
}

func isNoun(tag string) bool { return strings.HasPrefix(tag, "NN") }
func isProperNoun(tag string) bool { return strings.HasPrefix(tag, "NNP") }
func isModifier(tag string) bool {
	return strings.HasPrefix(tag, "JJ") || tag == "CD" || isNoun(tag)
}

// candidates collects noun unigrams and modifier/noun runs ending in a noun.
func candidates(toks []token, stop terms.Set) map[string]*candidate {
	out := make(map[string]*candidate)
	add := func(words []string, pos int, proper bool) {
		phrase := strings.Join(words, " ")
		c, ok := out[phrase]
		if !ok {
			c = &candidate{phrase: phrase, first: pos, words: len(words)}
			out[phrase] = c
		}
		c.count++
		c.proper = c.proper || proper
	}

	usable := func(t token) bool {
		w := strings.ToLower(t.text)
		return isModifier(t.tag) && !stop.Has(w) && len(terms.Tokenize(w)) > 0
	}

	for i, t := range toks {
		if !usable(t) || !isNoun(t.tag) {
			continue
		}
		word := strings.ToLower(t.text)
		if len([]rune(word)) >= 2 {
			add([]string{word}, i, isProperNoun(t.tag))
		}
		// Phrases ending at i.
		words := []string{word}
		proper := isProperNoun(t.tag)
		for j := i - 1; j >= 0 && len(words) < maxPhraseLen; j-- {
			if !usable(toks[j]) {
				break
			}
			words = append([]string{strings.ToLower(toks[j].text)}, words...)
			proper = proper || isProperNoun(toks[j].tag)
			add(append([]string(nil), words...), j, proper)
		}
	}
	return out
}

func (e *Extractor) rank(cands map[string]*candidate) terms.Set {
	list := make([]*candidate, 0, len(cands))
	for _, c := range cands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.proper != b.proper {
			return a.proper
		}
		if a.words != b.words {
			return a.words < b.words
		}
		if a.first != b.first {
			return a.first < b.first
		}
		return a.phrase < b.phrase
	})
	if len(list) > e.limit {
		list = list[:e.limit]
	}
	out := make(terms.Set, len(list))
	for _, c := range list {
		out[c.phrase] = struct{}{}
	}
	return out
}
