// Package embedding stores the four per-entity vectors and serves the ANN
// shortlist over PRIMARY/EMBED_A.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/db"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/db/valkey"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
)

const symbolField = "symbol"

// store is the consumer interface for the embedding repository (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo keeps one hash per entity ("<prefix>emb:<SYMBOL>") and an FT index
// over its primary_embed_a field.
type Repo struct {
	store     store
	keyPrefix string
	hnsw      HNSWConfig
}

// New creates a valkey-backed embedding repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// FieldName returns the hash field holding a profile/space vector, e.g. "primary_embed_a".
func FieldName(p domain.Profile, s domain.Space) string {
	return string(p) + "_" + string(s)
}

func (r *Repo) entityKeyPrefix() string { return r.keyPrefix + "emb:" }

func (r *Repo) entityKey(symbol string) string { return r.entityKeyPrefix() + symbol }

// IndexName is the FT index over PRIMARY/EMBED_A.
func (r *Repo) IndexName() string {
	return r.keyPrefix + FieldName(domain.ProfilePrimary, domain.SpaceA) + ":idx"
}

// EnsureIndex creates the ANN index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, dim int) error {
	exists, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(r.IndexName()).
		Prefix(r.entityKeyPrefix()).
		Tag(symbolField).
		VectorHNSW(FieldName(domain.ProfilePrimary, domain.SpaceA), dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Put writes the vectors present in rec. Absent vectors are left untouched.
func (r *Repo) Put(ctx context.Context, symbol string, rec entity.EmbeddingRecord) error {
	if err := r.store.HSet(ctx, r.entityKey(symbol), recordToHash(symbol, rec)); err != nil {
		return fmt.Errorf("put %s: %w", symbol, err)
	}
	return nil
}

// PutMany writes several records in one pipeline.
func (r *Repo) PutMany(ctx context.Context, recs map[string]entity.EmbeddingRecord) error {
	if len(recs) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(recs))
	for symbol, rec := range recs {
		items = append(items, db.HashSetItem{Key: r.entityKey(symbol), Fields: recordToHash(symbol, rec)})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("put %d records: %w", len(items), err)
	}
	return nil
}

// Fetch loads records for the given symbols. Missing symbols are absent from the result.
func (r *Repo) Fetch(ctx context.Context, symbols []string) (map[string]entity.EmbeddingRecord, error) {
	if len(symbols) == 0 {
		return map[string]entity.EmbeddingRecord{}, nil
	}
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = r.entityKey(s)
	}
	return r.load(ctx, keys)
}

// All loads every stored record.
func (r *Repo) All(ctx context.Context) (map[string]entity.EmbeddingRecord, error) {
	keys, err := r.store.Scan(ctx, r.entityKeyPrefix()+"*")
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}
	return r.load(ctx, keys)
}

func (r *Repo) load(ctx context.Context, keys []string) (map[string]entity.EmbeddingRecord, error) {
	out := make(map[string]entity.EmbeddingRecord, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	for i, h := range hashes {
		if len(h) == 0 {
			continue
		}
		symbol := h[symbolField]
		if symbol == "" {
			symbol = strings.TrimPrefix(keys[i], r.entityKeyPrefix())
		}
		out[symbol] = hashToRecord(h)
	}
	return out, nil
}

// Nearest returns up to k entities ordered by cosine similarity of
// primary_embed_a to vec.
func (r *Repo) Nearest(ctx context.Context, vec []float32, k int) ([]entity.Neighbor, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.IndexName(),
		VectorField:  FieldName(domain.ProfilePrimary, domain.SpaceA),
		Vector:       vec,
		K:            k,
		ReturnFields: []string{symbolField},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	out := make([]entity.Neighbor, 0, len(res.Entries))
	for _, e := range res.Entries {
		symbol := e.Fields[symbolField]
		if symbol == "" {
			symbol = strings.TrimPrefix(e.Key, r.entityKeyPrefix())
		}
		out = append(out, entity.Neighbor{Symbol: symbol, Similarity: e.Score})
	}
	return out, nil
}

func recordToHash(symbol string, rec entity.EmbeddingRecord) map[string]string {
	fields := map[string]string{symbolField: symbol}
	for _, p := range domain.Profiles {
		for _, s := range domain.Spaces {
			if v := rec.Vector(p, s); len(v) > 0 {
				fields[FieldName(p, s)] = valkey.VectorToBytes(v)
			}
		}
	}
	return fields
}

func hashToRecord(h map[string]string) entity.EmbeddingRecord {
	var rec entity.EmbeddingRecord
	for _, p := range domain.Profiles {
		for _, s := range domain.Spaces {
			if raw, ok := h[FieldName(p, s)]; ok {
				rec.Set(p, s, valkey.BytesToVector(raw))
			}
		}
	}
	return rec
}
