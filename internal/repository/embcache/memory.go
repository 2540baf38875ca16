package embcache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
)

// MemoryEmbedder caches embeddings in a bounded in-process LRU.
// Used when no shared store is configured and by the offline calibrator,
// which re-encodes the same validation queries on every run.
type MemoryEmbedder struct {
	inner      domain.Embedder
	cache      *lru.Cache
	cacheTotal *prometheus.CounterVec
}

// NewMemory creates an LRU caching decorator holding at most size vectors.
func NewMemory(inner domain.Embedder, size int, cacheTotal *prometheus.CounterVec) (*MemoryEmbedder, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &MemoryEmbedder{inner: inner, cache: c, cacheTotal: cacheTotal}, nil
}

// Embed returns a cached vector or calls the inner embedder.
func (m *MemoryEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := hashText(text)
	if v, ok := m.cache.Get(key); ok {
		incCache(m.cacheTotal, "memory", "hit")
		vec := v.([]float32)
		out := make([]float32, len(vec))
		copy(out, vec)
		return domain.EmbeddingResult{Embedding: out}, nil
	}

	incCache(m.cacheTotal, "memory", "miss")

	result, err := m.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	stored := make([]float32, len(result.Embedding))
	copy(stored, result.Embedding)
	m.cache.Add(key, stored)
	return result, nil
}

// Len reports the number of cached vectors.
func (m *MemoryEmbedder) Len() int { return m.cache.Len() }

// HealthCheck delegates to the inner embedder.
func (m *MemoryEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := m.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
