// Package mention defines mention strength levels and the per-text level table.
package mention

import "sort"

// Level is the strength of evidence that a text names an entity.
// Ordering is meaningful: a higher level is stronger evidence.
type Level int

const (
	// None means no evidence.
	None Level = iota
	// Keyword means a keyword-profile or name token matched.
	Keyword
	// Alias means a known alias matched.
	Alias
	// Symbol means the ticker symbol itself matched.
	Symbol
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Keyword:
		return "keyword"
	case Alias:
		return "alias"
	case Symbol:
		return "symbol"
	}
	return "unknown"
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Levels maps entity symbol to its strongest detected level.
// Entities without evidence are absent.
type Levels map[string]Level

// Get returns the level for symbol, None when absent.
func (ls Levels) Get(symbol string) Level {
	return ls[symbol]
}

// Raise sets the level for symbol if l is stronger than the current one.
// It reports whether the level changed.
func (ls Levels) Raise(symbol string, l Level) bool {
	if l <= ls[symbol] {
		return false
	}
	ls[symbol] = l
	return true
}

// Symbols returns mentioned symbols, strongest first, then ascending symbol.
func (ls Levels) Symbols() []string {
	out := make([]string, 0, len(ls))
	for s, l := range ls {
		if l > None {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := ls[out[i]], ls[out[j]]
		if li != lj {
			return li > lj
		}
		return out[i] < out[j]
	})
	return out
}
