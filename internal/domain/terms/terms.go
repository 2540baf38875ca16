// Package terms holds the lowercase term sets shared by the catalog,
// the mention detector and the scoring engine.
package terms

import (
	"regexp"
	"sort"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Set is an unordered set of lowercase terms.
type Set map[string]struct{}

// NewSet lowercases and trims items; empty items are dropped.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it != "" {
			s[it] = struct{}{}
		}
	}
	return s
}

// Has reports whether term is in the set. Lookup is case-insensitive.
func (s Set) Has(term string) bool {
	_, ok := s[strings.ToLower(term)]
	return ok
}

// Len returns the number of terms.
func (s Set) Len() int { return len(s) }

// Overlap returns |s ∩ other|.
func (s Set) Overlap(other Set) int {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for t := range small {
		if _, ok := large[t]; ok {
			n++
		}
	}
	return n
}

// Intersects reports whether s and other share at least one term.
func (s Set) Intersects(other Set) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for t := range small {
		if _, ok := large[t]; ok {
			return true
		}
	}
	return false
}

// Union returns a new set holding the terms of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for t := range s {
		out[t] = struct{}{}
	}
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Without returns a new set with every term of drop removed.
func (s Set) Without(drop Set) Set {
	out := make(Set, len(s))
	for t := range s {
		if _, ok := drop[t]; !ok {
			out[t] = struct{}{}
		}
	}
	return out
}

// Sorted returns the terms in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Tokenize splits text into lowercase word tokens (Unicode letters, digits, underscore).
func Tokenize(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	return words
}

// DefaultStopwords returns the stopword list applied to entity names and keyword profiles.
func DefaultStopwords() Set {
	return NewSet(
		"a", "an", "the", "all", "has", "are", "well", "now", "one", "two",
		"and", "or", "not", "on", "in", "it", "be", "to", "for", "of",
	)
}

// DefaultGenericTerms returns business words too common to identify a company.
func DefaultGenericTerms() Set {
	return NewSet(
		"tech", "technology", "technologies", "system", "systems",
		"group", "global", "international", "service", "services",
		"solution", "solutions", "company", "companies", "corp",
		"corporation", "holding", "holdings", "inc", "ltd",
	)
}
