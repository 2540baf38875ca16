package entity

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/terms"
)

// MinTermLength is the shortest alias, keyword or name token kept for matching.
const MinTermLength = 3

// Entity is a publicly traded company (immutable value object).
type Entity struct {
	symbol          string
	name            string
	aliases         terms.Set
	nameKeywords    terms.Set
	industryGroup   string
	staticKeywords  terms.Set
	dynamicKeywords terms.Set
	profile         terms.Set
}

// Params is the raw input for New.
type Params struct {
	Symbol          string
	Name            string
	Aliases         []string
	IndustryGroup   string
	StaticKeywords  []string
	DynamicKeywords []string

	// Stopwords and GenericTerms default to terms.DefaultStopwords and
	// terms.DefaultGenericTerms when nil.
	Stopwords    terms.Set
	GenericTerms terms.Set
}

// New validates and normalizes an Entity.
// Symbol is upper-cased and required; keyword profile terms lose generic business words.
func New(p Params) (Entity, error) {
	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if symbol == "" {
		return Entity{}, fmt.Errorf("entity symbol is required")
	}
	if strings.ContainsAny(symbol, " \t\n") {
		return Entity{}, fmt.Errorf("entity symbol %q must not contain whitespace", symbol)
	}

	stop := p.Stopwords
	if stop == nil {
		stop = terms.DefaultStopwords()
	}
	generic := p.GenericTerms
	if generic == nil {
		generic = terms.DefaultGenericTerms()
	}

	static := terms.NewSet(p.StaticKeywords...).Without(generic)
	dynamic := terms.NewSet(p.DynamicKeywords...).Without(generic)

	return Entity{
		symbol:          symbol,
		name:            strings.TrimSpace(p.Name),
		aliases:         terms.NewSet(p.Aliases...),
		nameKeywords:    NameKeywords(p.Name, stop, generic),
		industryGroup:   strings.TrimSpace(p.IndustryGroup),
		staticKeywords:  static,
		dynamicKeywords: dynamic,
		profile:         static.Union(dynamic),
	}, nil
}

// NameKeywords tokenizes the canonical name up to the first comma and keeps
// tokens of at least MinTermLength runes that are neither stopwords nor generic terms.
func NameKeywords(name string, stop, generic terms.Set) terms.Set {
	if i := strings.IndexByte(name, ','); i >= 0 {
		name = name[:i]
	}
	out := make(terms.Set)
	for _, tok := range terms.Tokenize(name) {
		if utf8.RuneCountInString(tok) < MinTermLength || stop.Has(tok) || generic.Has(tok) {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// Symbol returns the unique ticker symbol.
func (e *Entity) Symbol() string { return e.symbol }

// Name returns the canonical company name.
func (e *Entity) Name() string { return e.name }

// Aliases returns the lowercase alias set.
func (e *Entity) Aliases() terms.Set { return e.aliases }

// NameKeywords returns the tokens derived from the canonical name.
func (e *Entity) NameKeywords() terms.Set { return e.nameKeywords }

// IndustryGroup returns the industry group label.
func (e *Entity) IndustryGroup() string { return e.industryGroup }

// StaticKeywords returns the curated keyword set.
func (e *Entity) StaticKeywords() terms.Set { return e.staticKeywords }

// DynamicKeywords returns the keyword set harvested from recent text.
func (e *Entity) DynamicKeywords() terms.Set { return e.dynamicKeywords }

// KeywordProfile returns StaticKeywords ∪ DynamicKeywords.
func (e *Entity) KeywordProfile() terms.Set { return e.profile }
