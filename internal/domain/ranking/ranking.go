// Package ranking defines scored items, their ordering modes and request outcomes.
package ranking

import (
	"fmt"
	"sort"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/mention"
)

// Signals are the weight-independent per-(query, entity) features.
type Signals struct {
	SimA1          float64       `json:"sim_a1"`
	SimB1          float64       `json:"sim_b1"`
	SimA2          float64       `json:"sim_a2"`
	SimB2          float64       `json:"sim_b2"`
	KeywordOverlap int           `json:"keyword_overlap"`
	IndustryMatch  bool          `json:"industry_match"`
	Mention        mention.Level `json:"mention"`
}

// Item is one ranked entity.
type Item struct {
	Symbol  string  `json:"symbol"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Signals Signals `json:"signals"`
}

// Order selects how items are sorted.
type Order string

const (
	// OrderScore sorts by descending score, ties by ascending symbol.
	OrderScore Order = "score"
	// OrderMentionFirst puts mentioned entities first, then score, then symbol.
	OrderMentionFirst Order = "mention_first"
)

// ParseOrder parses an order name. The empty string selects OrderScore.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderScore:
		return OrderScore, nil
	case OrderMentionFirst:
		return OrderMentionFirst, nil
	}
	return "", fmt.Errorf("unknown order %q", s)
}

// Sort orders items in place. The result is deterministic for any input permutation.
func Sort(items []Item, o Order) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j], o)
	})
}

// Less is the strict ordering used by Sort.
func Less(a, b Item, o Order) bool {
	if o == OrderMentionFirst {
		am, bm := a.Signals.Mention > mention.None, b.Signals.Mention > mention.None
		if am != bm {
			return am
		}
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Symbol < b.Symbol
}

// Top returns at most k items from an already sorted slice.
func Top(items []Item, k int) []Item {
	if k < 0 {
		k = 0
	}
	if len(items) > k {
		return items[:k]
	}
	return items
}

// Status is the outcome of a ranking request.
type Status string

const (
	// StatusOK means candidates were retrieved and scored.
	StatusOK Status = "ok"
	// StatusEmpty means the pipeline ran but produced no candidates.
	StatusEmpty Status = "empty"
	// StatusEncoderUnavailable means the query could not be embedded.
	StatusEncoderUnavailable Status = "encoder_unavailable"
	// StatusIndexUnavailable means the vector index could not be queried.
	StatusIndexUnavailable Status = "index_unavailable"
)
