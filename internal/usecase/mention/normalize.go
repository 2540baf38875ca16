package mention

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC and collapses every whitespace run to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// containsWord reports whether term occurs in text with no letter or digit
// immediately before or after it.
func containsWord(text, term string) bool {
	if term == "" {
		return false
	}
	for start := 0; start <= len(text)-len(term); {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		j := i + len(term)
		if boundaryBefore(text, i) && boundaryAfter(text, j) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		start = i + size
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, j int) bool {
	if j >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[j:])
	return !isWordRune(r)
}
