package embedding

import (
	"context"
	"fmt"
	"sort"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
)

// Source loads every stored record. Implemented by Repo and PGRepo.
type Source interface {
	All(ctx context.Context) (map[string]entity.EmbeddingRecord, error)
}

// Snapshot is an immutable in-memory copy of the embedding store.
// Safe for concurrent reads.
type Snapshot struct {
	records map[string]entity.EmbeddingRecord
}

// NewSnapshot wraps records. The map must not be modified afterwards.
func NewSnapshot(records map[string]entity.EmbeddingRecord) *Snapshot {
	if records == nil {
		records = map[string]entity.EmbeddingRecord{}
	}
	return &Snapshot{records: records}
}

// LoadSnapshot reads all records from src.
func LoadSnapshot(ctx context.Context, src Source) (*Snapshot, error) {
	recs, err := src.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return NewSnapshot(recs), nil
}

// Record returns the record for symbol.
func (s *Snapshot) Record(symbol string) (entity.EmbeddingRecord, bool) {
	r, ok := s.records[symbol]
	return r, ok
}

// Len returns the number of stored entities, complete or not.
func (s *Snapshot) Len() int { return len(s.records) }

// CompleteSymbols returns, in ascending order, every symbol whose record has all four vectors.
// This is the scoreable universe.
func (s *Snapshot) CompleteSymbols() []string {
	out := make([]string, 0, len(s.records))
	for sym, r := range s.records {
		if r.Complete() {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// Dimension returns the length of the first primary_embed_a vector found, or 0.
func (s *Snapshot) Dimension() int {
	for _, sym := range s.CompleteSymbols() {
		return len(s.records[sym].PrimaryA)
	}
	return 0
}
