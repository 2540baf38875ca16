package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
)

type sourceFunc func(ctx context.Context) (map[string]entity.EmbeddingRecord, error)

func (f sourceFunc) All(ctx context.Context) (map[string]entity.EmbeddingRecord, error) { return f(ctx) }

func TestSnapshot_CompleteSymbols(t *testing.T) {
	partial := completeRecord(3)
	partial.SecondaryB = nil

	snap := NewSnapshot(map[string]entity.EmbeddingRecord{
		"TSLA": completeRecord(1),
		"AAPL": completeRecord(2),
		"F":    partial,
	})

	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, []string{"AAPL", "TSLA"}, snap.CompleteSymbols())
	assert.Equal(t, 2, snap.Dimension())
	rec, ok := snap.Record("TSLA")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, rec.Vector(domain.ProfilePrimary, domain.SpaceB))

	_, ok = snap.Record("MSFT")
	assert.False(t, ok)
}

func TestLoadSnapshot(t *testing.T) {
	snap, err := LoadSnapshot(context.Background(), sourceFunc(func(context.Context) (map[string]entity.EmbeddingRecord, error) {
		return map[string]entity.EmbeddingRecord{"TSLA": completeRecord(1)}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	_, err = LoadSnapshot(context.Background(), sourceFunc(func(context.Context) (map[string]entity.EmbeddingRecord, error) {
		return nil, errors.New("down")
	}))
	require.Error(t, err)
}

func TestSnapshot_Empty(t *testing.T) {
	snap := NewSnapshot(nil)
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, 0, snap.Dimension())
	assert.Empty(t, snap.CompleteSymbols())
}
