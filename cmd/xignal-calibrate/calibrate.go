package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/app"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/config"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/metrics"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/repository/validation"
	weightsrepo "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/repository/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/calibrate"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Search scoring weights that maximise Hit@K on the validation split",
	Long: "Runs a seeded TPE search over the seven scoring weights. Every query is encoded once; " +
		"each trial only recombines cached signals. Interrupting the search saves the best weights found so far.",
	RunE: runCalibrate,
}

var (
	calibrateOut    string
	calibrateTrials int
	calibrateSeed   int64
	calibrateOrder  string
	calibrateTopK   int
	calibrateDryRun bool
)

func init() {
	calibrateCmd.Flags().StringVarP(&calibrateOut, "out", "o", "", "Artifact path (default: weights.path from config)")
	calibrateCmd.Flags().IntVarP(&calibrateTrials, "trials", "n", 0, "Trial budget (default: calibration.trials)")
	calibrateCmd.Flags().Int64Var(&calibrateSeed, "seed", -1, "Sampler seed (default: calibration.seed)")
	calibrateCmd.Flags().StringVar(&calibrateOrder, "order", string(ranking.OrderScore), "Ordering optimised: score or mention_first")
	calibrateCmd.Flags().IntVarP(&calibrateTopK, "top-k", "k", 0, "Hit@K cut-off (default: calibration.top_k)")
	calibrateCmd.Flags().BoolVar(&calibrateDryRun, "dry-run", false, "Print the artifact without saving it")

	rootCmd.AddCommand(calibrateCmd)
}

func runCalibrate(cmd *cobra.Command, _ []string) error {
	ctx, cancel, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = logger.Sync() }()

	order, err := ranking.ParseOrder(calibrateOrder)
	if err != nil {
		return err
	}
	opts := calibrationOptions(cfg.Calibration, order)
	if calibrateTopK > 0 {
		opts.TopK = calibrateTopK
	}
	if calibrateSeed >= 0 {
		opts.Seed = uint64(calibrateSeed)
	}
	budget := calibrate.Budget{
		Trials: cfg.Calibration.Trials,
		Wall:   time.Duration(cfg.Calibration.TimeoutSec) * time.Second,
	}
	if calibrateTrials > 0 {
		budget.Trials = calibrateTrials
	}

	outPath := cfg.Weights.Path
	if calibrateOut != "" {
		outPath = calibrateOut
	}
	store := weightsrepo.NewFileStore(outPath)
	opts.Baseline = baselineWeights(store, opts.TopK, logger)

	st, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	pipeline, err := app.BuildPipeline(ctx, cfg, st, logger)
	if err != nil {
		return err
	}

	metrics.RegisterRankingMetrics()
	cal := calibrate.New(func(ctx context.Context) (*calibrate.Dataset, error) {
		return prepareDataset(ctx, cfg.Calibration, pipeline, logger)
	}, opts, calibrate.Metrics{
		Trials: metrics.CalibrationTrialsTotal,
		Best:   metrics.CalibrationBestHitAtK,
	}, logger)

	// Cancellation stops the search; Run still returns the best-so-far artifact.
	art, err := cal.Run(ctx, budget)
	if err != nil {
		return err
	}

	if err := printArtifact(cmd.OutOrStdout(), art, opts.TopK); err != nil {
		return err
	}
	if calibrateDryRun {
		return nil
	}
	if err := store.Save(art); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved weights %s to %s\n", art.Version, store.Path())
	return nil
}

// calibrationOptions maps configuration onto calibrator options.
func calibrationOptions(c config.CalibrationConfig, order ranking.Order) calibrate.Options {
	return calibrate.Options{
		Space:          domweights.DefaultSearchSpace(),
		TopK:           c.TopK,
		Order:          order,
		StartupTrials:  c.StartupTrials,
		Candidates:     c.Candidates,
		Gamma:          c.Gamma,
		Seed:           c.Seed,
		Workers:        c.Workers,
		MinImprovement: c.MinImprovement,
	}
}

// baselineWeights returns the currently saved weights, or the defaults when
// nothing usable is saved, re-cut at topK.
func baselineWeights(store *weightsrepo.FileStore, topK int, logger *zap.Logger) *domweights.Config {
	w := domweights.Default()
	a, err := store.Load()
	switch {
	case err == nil:
		w = a.Weights
	case errors.Is(err, domain.ErrNotFound):
	default:
		logger.Warn("Saved weights unusable, baseline is the defaults", zap.Error(err))
	}
	if topK > 0 {
		w.TopK = topK
	}
	return &w
}

// prepareDataset loads the labelled queries and encodes them against the scoreable universe.
func prepareDataset(ctx context.Context, c config.CalibrationConfig, p *app.Pipeline, logger *zap.Logger) (*calibrate.Dataset, error) {
	queries, err := validation.Load(c.ValidationPaths, validation.NewSymbolSet(p.Universe), validation.Options{
		Split:        c.Split,
		MaxPerSource: c.MaxPerSource,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("load validation set: %w", err)
	}
	return calibrate.Prepare(ctx, queries, p.Universe, p.Representer, p.Engine, c.Workers, logger)
}
