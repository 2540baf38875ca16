// Package mention detects which catalog entities a text names, and how strongly.
package mention

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
	dommention "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/mention"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
)

// Pass is one detection pass. Every pass can only raise levels.
type Pass int

const (
	// PassSymbol matches ticker symbols (SYMBOL).
	PassSymbol Pass = iota + 1
	// PassAlias matches aliases (ALIAS).
	PassAlias
	// PassKeyword matches keyword-profile terms (KEYWORD).
	PassKeyword
	// PassName matches canonical-name tokens (KEYWORD).
	PassName
)

// AllPasses lists every pass in execution order.
var AllPasses = []Pass{PassSymbol, PassAlias, PassKeyword, PassName}

// Options tunes the detector.
type Options struct {
	// AmbiguousSymbols are never matched in the symbol pass.
	AmbiguousSymbols []string
	// ShortWhitelist terms are kept even when shorter than MinTermLength.
	ShortWhitelist []string
	// MinTermLength applies to alias, keyword and name terms. Defaults to entity.MinTermLength.
	MinTermLength int
	// CaseSensitiveSymbols matches symbols against the original casing.
	CaseSensitiveSymbols bool
	// Stopwords and GenericTerms default to the terms package lists when nil.
	Stopwords    terms.Set
	GenericTerms terms.Set
}

// DefaultOptions returns case-sensitive symbol matching with the built-in lists.
func DefaultOptions() Options {
	return Options{
		AmbiguousSymbols: []string{
			"ALL", "HAS", "ARE", "NOW", "IT", "A", "L", "O", "ON", "WELL", "SO", "ONE", "IN", "BE",
		},
		ShortWhitelist:       []string{"ai"},
		MinTermLength:        entity.MinTermLength,
		CaseSensitiveSymbols: true,
	}
}

type termIndex struct {
	terms   []string
	symbols map[string][]string
}

func (ti *termIndex) add(term, symbol string) {
	if ti.symbols == nil {
		ti.symbols = make(map[string][]string)
	}
	if _, ok := ti.symbols[term]; !ok {
		ti.terms = append(ti.terms, term)
	}
	ti.symbols[term] = append(ti.symbols[term], symbol)
}

func (ti *termIndex) seal() {
	sort.Strings(ti.terms)
	for _, syms := range ti.symbols {
		sort.Strings(syms)
	}
}

// Detector finds entity mentions in text. Immutable after construction and
// safe for concurrent use.
type Detector struct {
	symbols       []string
	caseSensitive bool
	aliases       termIndex
	keywords      termIndex
	names         termIndex
}

// NewDetector indexes the catalog's symbols, aliases, keyword profiles and name tokens.
func NewDetector(cat *entity.Catalog, opts Options) *Detector {
	if opts.MinTermLength <= 0 {
		opts.MinTermLength = entity.MinTermLength
	}
	stop := opts.Stopwords
	if stop == nil {
		stop = terms.DefaultStopwords()
	}
	generic := opts.GenericTerms
	if generic == nil {
		generic = terms.DefaultGenericTerms()
	}
	ambiguous := make(map[string]struct{}, len(opts.AmbiguousSymbols))
	for _, s := range opts.AmbiguousSymbols {
		ambiguous[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	whitelist := terms.NewSet(opts.ShortWhitelist...)

	keep := func(term string, dropGeneric bool) (string, bool) {
		term = strings.ToLower(Normalize(term))
		if term == "" || stop.Has(term) {
			return "", false
		}
		if dropGeneric && generic.Has(term) {
			return "", false
		}
		if utf8.RuneCountInString(term) < opts.MinTermLength && !whitelist.Has(term) {
			return "", false
		}
		return term, true
	}

	d := &Detector{caseSensitive: opts.CaseSensitiveSymbols}
	for _, e := range cat.Entities() {
		sym := e.Symbol()
		if _, skip := ambiguous[sym]; !skip {
			d.symbols = append(d.symbols, sym)
		}
		for a := range e.Aliases() {
			if t, ok := keep(a, false); ok {
				d.aliases.add(t, sym)
			}
		}
		for k := range e.KeywordProfile() {
			if t, ok := keep(k, true); ok {
				d.keywords.add(t, sym)
			}
		}
		for n := range e.NameKeywords() {
			if t, ok := keep(n, true); ok {
				d.names.add(t, sym)
			}
		}
	}
	d.aliases.seal()
	d.keywords.seal()
	d.names.seal()
	return d
}

// Detect runs every pass and returns the strongest level per mentioned entity.
func (d *Detector) Detect(text string) dommention.Levels {
	return d.DetectPasses(text, AllPasses...)
}

// DetectPasses runs only the given passes. Empty text yields no levels.
func (d *Detector) DetectPasses(text string, passes ...Pass) dommention.Levels {
	levels := make(dommention.Levels)
	raw := Normalize(text)
	if raw == "" {
		return levels
	}
	lower := strings.ToLower(raw)

	for _, p := range passes {
		switch p {
		case PassSymbol:
			d.symbolPass(raw, lower, levels)
		case PassAlias:
			matchIndex(&d.aliases, lower, dommention.Alias, levels)
		case PassKeyword:
			matchIndex(&d.keywords, lower, dommention.Keyword, levels)
		case PassName:
			matchIndex(&d.names, lower, dommention.Keyword, levels)
		}
	}
	return levels
}

func (d *Detector) symbolPass(raw, lower string, levels dommention.Levels) {
	for _, sym := range d.symbols {
		var hit bool
		if d.caseSensitive {
			hit = containsWord(raw, sym)
		} else {
			hit = containsWord(lower, strings.ToLower(sym))
		}
		if hit {
			levels.Raise(sym, dommention.Symbol)
		}
	}
}

func matchIndex(ti *termIndex, lower string, level dommention.Level, levels dommention.Levels) {
	for _, term := range ti.terms {
		if !containsWord(lower, term) {
			continue
		}
		for _, sym := range ti.symbols[term] {
			levels.Raise(sym, level)
		}
	}
}
