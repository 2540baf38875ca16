package weights

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
)

func TestFileStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "nested", "weights.json"))

	w := domweights.Default()
	w.Lambda3 = 2.5
	a := domweights.NewArtifact(w, 0.82, 50, true)

	require.NoError(t, s.Save(a))
	got, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, a.Version, got.Version)
	assert.Equal(t, a.Weights, got.Weights)
	assert.InDelta(t, 0.82, got.HitAtK, 1e-12)
	assert.True(t, got.Converged)
	assert.True(t, got.Calibrated())

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_SaveReplaces(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "weights.json"))

	first := domweights.NewArtifact(domweights.Default(), 0.5, 10, true)
	second := domweights.NewArtifact(domweights.Default(), 0.6, 20, false)
	require.NoError(t, s.Save(first))
	require.NoError(t, s.Save(second))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, second.Version, got.Version)
	assert.False(t, got.Converged)
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	_, err := s.Load()
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStore_LoadBareConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"alpha1": 1, "alpha2": 0, "top_k": 3}`), 0o644))

	got, err := NewFileStore(p).Load()
	require.NoError(t, err)
	assert.False(t, got.Calibrated())
	assert.InDelta(t, 1.0, got.Weights.Alpha1, 0)
	assert.InDelta(t, 0.0, got.Weights.Alpha2, 0)
	assert.InDelta(t, 0.25, got.Weights.Beta1, 0, "unspecified weights keep their defaults")
	assert.Equal(t, 3, got.Weights.TopK)
}

func TestFileStore_LoadInvalid(t *testing.T) {
	tests := map[string]string{
		"not json":        `{`,
		"negative weight": `{"weights": {"alpha1": -1, "top_k": 5}}`,
		"zero top_k":      `{"weights": {"alpha1": 1, "top_k": 0}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "weights.json")
			require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
			_, err := NewFileStore(p).Load()
			require.ErrorIs(t, err, domain.ErrInvalidWeights)
		})
	}
}

func TestFileStore_SaveRejectsInvalid(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "weights.json"))
	w := domweights.Default()
	w.TopK = 0
	require.ErrorIs(t, s.Save(domweights.NewArtifact(w, 0, 0, false)), domain.ErrInvalidWeights)
}
