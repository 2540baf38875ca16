// Package weights defines the mixing weights of the scoring function and the
// calibrated artifact that carries them between the calibrator and the server.
package weights

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
)

var validate = validator.New()

// Config holds the seven scoring weights and the evaluation cut-off.
// Replaced wholesale, never mutated in place.
type Config struct {
	Alpha1  float64 `json:"alpha1" yaml:"alpha1" validate:"gte=0"`
	Alpha2  float64 `json:"alpha2" yaml:"alpha2" validate:"gte=0"`
	Beta1   float64 `json:"beta1" yaml:"beta1" validate:"gte=0"`
	Beta2   float64 `json:"beta2" yaml:"beta2" validate:"gte=0"`
	Lambda1 float64 `json:"lambda1" yaml:"lambda1" validate:"gte=0"`
	Lambda2 float64 `json:"lambda2" yaml:"lambda2" validate:"gte=0"`
	Lambda3 float64 `json:"lambda3" yaml:"lambda3" validate:"gte=0"`
	TopK    int     `json:"top_k" yaml:"top_k" validate:"gte=1"`
}

// Default returns the weights used when no calibrated artifact is available.
func Default() Config {
	return Config{
		Alpha1:  0.5,
		Alpha2:  0.5,
		Beta1:   0.25,
		Beta2:   0.25,
		Lambda1: 0.1,
		Lambda2: 1.0,
		Lambda3: 1.0,
		TopK:    5,
	}
}

// Validate checks non-negativity and finiteness of every weight and TopK >= 1.
func (c Config) Validate() error {
	for i, v := range c.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", domain.ErrInvalidWeights, Names[i])
		}
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s must be %s %s", domain.ErrInvalidWeights, fe.Field(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidWeights, err)
	}
	return nil
}

// Names lists the weights in Vector order.
var Names = []string{"alpha1", "alpha2", "beta1", "beta2", "lambda1", "lambda2", "lambda3"}

// Vector returns the weights in Names order.
func (c Config) Vector() []float64 {
	return []float64{c.Alpha1, c.Alpha2, c.Beta1, c.Beta2, c.Lambda1, c.Lambda2, c.Lambda3}
}

// FromVector builds a Config from weights in Names order.
func FromVector(v []float64, topK int) (Config, error) {
	if len(v) != len(Names) {
		return Config{}, fmt.Errorf("%w: expected %d weights, got %d", domain.ErrInvalidWeights, len(Names), len(v))
	}
	c := Config{
		Alpha1: v[0], Alpha2: v[1], Beta1: v[2], Beta2: v[3],
		Lambda1: v[4], Lambda2: v[5], Lambda3: v[6],
		TopK: topK,
	}
	return c, c.Validate()
}

// Bounds is a closed search interval.
type Bounds struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Contains reports whether v lies in [Low, High].
func (b Bounds) Contains(v float64) bool { return v >= b.Low && v <= b.High }

// SearchSpace holds one interval per weight, in Names order.
type SearchSpace [7]Bounds

// DefaultSearchSpace returns [0,2] for alpha/beta/lambda1/lambda2 and [0.5,5] for lambda3.
func DefaultSearchSpace() SearchSpace {
	unit := Bounds{Low: 0, High: 2}
	return SearchSpace{unit, unit, unit, unit, unit, unit, {Low: 0.5, High: 5}}
}

// Validate rejects empty or negative intervals.
func (s SearchSpace) Validate() error {
	for i, b := range s {
		if b.Low < 0 || b.High < b.Low {
			return fmt.Errorf("%w: bad search bounds for %s: [%g, %g]", domain.ErrInvalidWeights, Names[i], b.Low, b.High)
		}
	}
	return nil
}

// Artifact is a calibrated WeightConfig plus provenance.
type Artifact struct {
	Version   uuid.UUID `json:"version"`
	Weights   Config    `json:"weights"`
	HitAtK    float64   `json:"best_hit_at_k_valid"`
	Trials    int       `json:"trials"`
	Converged bool      `json:"converged"`
	CreatedAt time.Time `json:"created_at"`
}

// NewArtifact stamps a calibrated result with a fresh version and creation time.
func NewArtifact(w Config, hitAtK float64, trials int, converged bool) Artifact {
	return Artifact{
		Version:   uuid.New(),
		Weights:   w,
		HitAtK:    hitAtK,
		Trials:    trials,
		Converged: converged,
		CreatedAt: time.Now().UTC(),
	}
}

// DefaultArtifact wraps Default() with a nil version, marking it as uncalibrated.
func DefaultArtifact() Artifact {
	return Artifact{Weights: Default()}
}

// Calibrated reports whether the artifact came from a calibration run.
func (a Artifact) Calibrated() bool { return a.Version != uuid.Nil }
