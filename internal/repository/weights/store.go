// Package weights persists calibrated weight artifacts as JSON files.
package weights

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
)

// FileStore reads and atomically replaces a single artifact file.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the artifact at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the artifact location.
func (s *FileStore) Path() string { return s.path }

// Load reads and validates the artifact. A missing file yields domain.ErrNotFound.
// A bare weights object (no "weights" envelope) is accepted as an uncalibrated artifact.
func (s *FileStore) Load() (domweights.Artifact, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domweights.Artifact{}, fmt.Errorf("weights %s: %w", s.path, domain.ErrNotFound)
		}
		return domweights.Artifact{}, fmt.Errorf("read weights: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return domweights.Artifact{}, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidWeights, s.path, err)
	}

	var a domweights.Artifact
	if _, enveloped := probe["weights"]; enveloped {
		if err := json.Unmarshal(data, &a); err != nil {
			return domweights.Artifact{}, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidWeights, s.path, err)
		}
	} else {
		a.Weights = domweights.Default()
		if err := json.Unmarshal(data, &a.Weights); err != nil {
			return domweights.Artifact{}, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidWeights, s.path, err)
		}
	}

	if err := a.Weights.Validate(); err != nil {
		return domweights.Artifact{}, fmt.Errorf("weights %s: %w", s.path, err)
	}
	return a, nil
}

// Save writes the artifact to a temp file in the same directory, fsyncs it
// and renames it over the target. Readers never observe a partial file.
func (s *FileStore) Save(a domweights.Artifact) error {
	if err := a.Weights.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create weights dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace weights: %w", err)
	}
	return nil
}
