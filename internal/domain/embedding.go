package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Space names one of the two independent embedding spaces.
type Space string

const (
	// SpaceA is the first embedding space (EMBED_A).
	SpaceA Space = "embed_a"
	// SpaceB is the second embedding space (EMBED_B).
	SpaceB Space = "embed_b"
)

// Spaces lists both embedding spaces in a fixed order.
var Spaces = []Space{SpaceA, SpaceB}

// Profile names the entity description an embedding was computed from.
type Profile string

const (
	// ProfilePrimary is the company-level profile.
	ProfilePrimary Profile = "primary"
	// ProfileSecondary is the industry/keyword-level profile.
	ProfileSecondary Profile = "secondary"
)

// Profiles lists both entity profiles in a fixed order.
var Profiles = []Profile{ProfilePrimary, ProfileSecondary}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction and delegates to inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
