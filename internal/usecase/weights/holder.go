// Package weights keeps the active scoring weights and swaps them atomically on reload.
package weights

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
)

// Source loads the persisted artifact.
type Source interface {
	Load() (domweights.Artifact, error)
}

// Holder publishes the current artifact to concurrent readers.
// Readers always observe a complete artifact, old or new.
type Holder struct {
	src     Source
	current atomic.Pointer[domweights.Artifact]
	reloads *prometheus.CounterVec
	logger  *zap.Logger
}

// NewHolder starts with the default weights. Call Reload to read src.
// reloads may be nil.
func NewHolder(src Source, reloads *prometheus.CounterVec, logger *zap.Logger) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Holder{src: src, reloads: reloads, logger: logger}
	def := domweights.DefaultArtifact()
	h.current.Store(&def)
	return h
}

// Current returns the active artifact.
func (h *Holder) Current() domweights.Artifact {
	return *h.current.Load()
}

// Reload reads the source and swaps the artifact in.
// A missing artifact installs the defaults with a warning. An unreadable or
// invalid artifact leaves the current one in place and returns the error.
func (h *Holder) Reload() (domweights.Artifact, error) {
	a, err := h.src.Load()
	switch {
	case errors.Is(err, domain.ErrNotFound):
		def := domweights.DefaultArtifact()
		h.current.Store(&def)
		h.count("default")
		h.logger.Warn("Weights artifact not found, using defaults", zap.Error(err))
		return def, nil
	case err != nil:
		h.count("error")
		h.logger.Error("Weights reload failed, keeping current weights",
			zap.String("version", h.Current().Version.String()),
			zap.Error(err),
		)
		return h.Current(), fmt.Errorf("reload weights: %w", err)
	}

	h.current.Store(&a)
	h.count("ok")
	h.logger.Info("Weights loaded",
		zap.String("version", a.Version.String()),
		zap.Float64("hit_at_k", a.HitAtK),
		zap.Bool("converged", a.Converged),
	)
	return a, nil
}

func (h *Holder) count(result string) {
	if h.reloads != nil {
		h.reloads.WithLabelValues(result).Inc()
	}
}

// Calibrated reports whether the active weights came from a calibration run.
func (h *Holder) Calibrated() bool {
	return h.current.Load().Calibrated()
}
