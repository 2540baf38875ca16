// Package calibrate fits the scoring weights against Hit@K on a labelled
// validation split using sequential model-based search.
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
)

// State is the calibrator lifecycle stage.
type State string

const (
	// StateInit means the dataset is not prepared yet.
	StateInit State = "INIT"
	// StateSearch means trials are running.
	StateSearch State = "SEARCH"
	// StateDone means a best artifact has been emitted.
	StateDone State = "DONE"
)

// Options configure a calibration run.
type Options struct {
	Space          weights.SearchSpace
	TopK           int
	Order          ranking.Order
	StartupTrials  int
	Candidates     int
	Gamma          float64
	Seed           uint64
	Workers        int
	MinImprovement float64
	// Baseline, when set, is evaluated as the first trial.
	Baseline *weights.Config
}

// DefaultTrials is the trial budget used when a Budget sets no limit.
const DefaultTrials = 50

// Budget bounds a run. A zero field is unlimited; when both are zero the
// run stops after DefaultTrials.
type Budget struct {
	Trials int
	Wall   time.Duration
}

// Metrics are the optional collectors updated per trial.
type Metrics struct {
	Trials *prometheus.CounterVec // source
	Best   prometheus.Gauge
}

// Trial is one evaluated weight configuration.
type Trial struct {
	Number  int
	Weights weights.Config
	HitAtK  float64
	Source  Source
}

// Calibrator runs INIT → SEARCH → DONE once per dataset.
type Calibrator struct {
	prepare func(ctx context.Context) (*Dataset, error)
	opts    Options
	metrics Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	state  State
	ds     *Dataset
	best   *Trial
	first  float64
	trials []Trial
}

// New creates a calibrator. prepare builds the dataset during INIT.
func New(prepare func(ctx context.Context) (*Dataset, error), opts Options, m Metrics, logger *zap.Logger) *Calibrator {
	if opts.TopK < 1 {
		opts.TopK = weights.Default().TopK
	}
	if opts.Order == "" {
		opts.Order = ranking.OrderScore
	}
	if opts.Space == (weights.SearchSpace{}) {
		opts.Space = weights.DefaultSearchSpace()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calibrator{prepare: prepare, opts: opts, metrics: m, logger: logger, state: StateInit}
}

// NewWithDataset creates a calibrator over an already prepared dataset.
func NewWithDataset(ds *Dataset, opts Options, m Metrics, logger *zap.Logger) *Calibrator {
	return New(func(context.Context) (*Dataset, error) { return ds, nil }, opts, m, logger)
}

// State returns the current lifecycle stage.
func (c *Calibrator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Best returns a copy of the best trial so far.
func (c *Calibrator) Best() (Trial, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.best == nil {
		return Trial{}, false
	}
	return *c.best, true
}

// Trials returns a copy of every completed trial.
func (c *Calibrator) Trials() []Trial {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Trial(nil), c.trials...)
}

// Dataset returns the prepared dataset, nil before INIT completes.
func (c *Calibrator) Dataset() *Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ds
}

// Run prepares the dataset and searches until budget or ctx runs out.
// Budget.Wall starts counting once the dataset is prepared.
// A cancelled search still returns the best-so-far artifact; an error is
// returned only when no trial completed.
func (c *Calibrator) Run(ctx context.Context, budget Budget) (weights.Artifact, error) {
	if err := c.opts.Space.Validate(); err != nil {
		return weights.Artifact{}, err
	}
	if budget.Trials <= 0 && budget.Wall <= 0 {
		budget.Trials = DefaultTrials
	}
	if err := c.init(ctx); err != nil {
		return weights.Artifact{}, err
	}

	// The wall budget covers the search only.
	if budget.Wall > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget.Wall)
		defer cancel()
	}

	c.setState(StateSearch)
	c.logger.Info("Calibration search started",
		zap.Int("queries", c.ds.Len()),
		zap.Int("universe", len(c.ds.Universe)),
		zap.Int("trial_budget", budget.Trials),
		zap.Duration("wall_budget", budget.Wall),
		zap.Int("top_k", c.opts.TopK),
	)

	stopErr := c.search(ctx, budget.Trials)

	best, ok := c.Best()
	if !ok {
		if stopErr == nil {
			stopErr = errors.New("no trial completed")
		}
		return weights.Artifact{}, fmt.Errorf("calibrate: %w", stopErr)
	}

	converged := best.HitAtK-c.first > c.opts.MinImprovement
	n := len(c.Trials())
	art := weights.NewArtifact(best.Weights, best.HitAtK, n, converged)
	c.setState(StateDone)

	fields := []zap.Field{
		zap.Int("trials", n),
		zap.Int("best_trial", best.Number),
		zap.Float64("best_hit_at_k", best.HitAtK),
		zap.Float64("first_hit_at_k", c.first),
		zap.Bool("converged", converged),
		zap.String("version", art.Version.String()),
	}
	if stopErr != nil {
		fields = append(fields, zap.NamedError("stopped", stopErr))
	}
	if !converged {
		c.logger.Warn("Calibration did not improve on the first trial", fields...)
	} else {
		c.logger.Info("Calibration finished", fields...)
	}
	return art, nil
}

func (c *Calibrator) init(ctx context.Context) error {
	c.mu.Lock()
	ready := c.ds != nil
	c.mu.Unlock()
	if ready {
		return nil
	}
	start := time.Now()
	ds, err := c.prepare(ctx)
	if err != nil {
		return fmt.Errorf("calibrate init: %w", err)
	}
	c.mu.Lock()
	c.ds = ds
	c.mu.Unlock()
	c.logger.Info("Calibration dataset prepared",
		zap.Int("queries", ds.Len()),
		zap.Int("dropped", ds.Dropped),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// search returns the reason it stopped early, nil when the trial budget ran out.
func (c *Calibrator) search(ctx context.Context, maxTrials int) error {
	tpe := NewTPE(c.opts.Space, c.opts.Seed, c.opts.StartupTrials, c.opts.Candidates, c.opts.Gamma)
	baseline := c.opts.Baseline

	for n := 0; maxTrials <= 0 || n < maxTrials; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			x   []float64
			src Source
		)
		if baseline != nil {
			x, src = clampToSpace(baseline.Vector(), c.opts.Space), SourceBaseline
			baseline = nil
		} else {
			x, src = tpe.Suggest()
		}
		w, err := weights.FromVector(x, c.opts.TopK)
		if err != nil {
			return err
		}

		hit, err := HitAtK(ctx, c.ds, w, c.opts.Order, c.opts.TopK, c.opts.Workers)
		if err != nil {
			// Partial evaluations are discarded.
			return err
		}
		tpe.Observe(x, hit)
		c.record(Trial{Number: n, Weights: w, HitAtK: hit, Source: src})
	}
	return nil
}

func (c *Calibrator) record(t Trial) {
	c.mu.Lock()
	c.trials = append(c.trials, t)
	if len(c.trials) == 1 {
		c.first = t.HitAtK
	}
	improved := c.best == nil || t.HitAtK > c.best.HitAtK
	if improved {
		b := t
		c.best = &b
	}
	best := c.best.HitAtK
	c.mu.Unlock()

	if c.metrics.Trials != nil {
		c.metrics.Trials.WithLabelValues(string(t.Source)).Inc()
	}
	if c.metrics.Best != nil {
		c.metrics.Best.Set(best)
	}
	c.logger.Debug("Calibration trial",
		zap.Int("trial", t.Number),
		zap.String("source", string(t.Source)),
		zap.Float64("hit_at_k", t.HitAtK),
		zap.Float64("best", best),
		zap.Bool("improved", improved),
	)
}

func (c *Calibrator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func clampToSpace(x []float64, space weights.SearchSpace) []float64 {
	for i, b := range space {
		x[i] = min(max(x[i], b.Low), b.High)
	}
	return x
}
