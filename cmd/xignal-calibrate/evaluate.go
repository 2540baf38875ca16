package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/app"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
	weightsrepo "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/repository/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/calibrate"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Report Hit@K of a weights artifact under both orderings",
	Long: "Evaluates saved weights (or the defaults) on a validation split, once sorted by score " +
		"and once with mentioned entities first.",
	RunE: runEvaluate,
}

var (
	evaluateWeights  string
	evaluateSplit    string
	evaluateTopK     int
	evaluateDefaults bool
)

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateWeights, "weights", "w", "", "Artifact path (default: weights.path from config)")
	evaluateCmd.Flags().StringVar(&evaluateSplit, "split", "", "Validation split (default: calibration.split)")
	evaluateCmd.Flags().IntVarP(&evaluateTopK, "top-k", "k", 0, "Hit@K cut-off (default: the artifact's top_k)")
	evaluateCmd.Flags().BoolVar(&evaluateDefaults, "defaults", false, "Evaluate the built-in default weights")

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx, cancel, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = logger.Sync() }()

	w := domweights.Default()
	if !evaluateDefaults {
		path := cfg.Weights.Path
		if evaluateWeights != "" {
			path = evaluateWeights
		}
		a, err := weightsrepo.NewFileStore(path).Load()
		if err != nil {
			return fmt.Errorf("load weights: %w", err)
		}
		w = a.Weights
	}
	if evaluateSplit != "" {
		cfg.Calibration.Split = evaluateSplit
	}

	st, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	pipeline, err := app.BuildPipeline(ctx, cfg, st, logger)
	if err != nil {
		return err
	}
	ds, err := prepareDataset(ctx, cfg.Calibration, pipeline, logger)
	if err != nil {
		return err
	}

	report, err := calibrate.Evaluate(ctx, ds, w, evaluateTopK, cfg.Calibration.Workers)
	if err != nil {
		return err
	}
	if ds.Dropped > 0 {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d queries dropped (encoder unavailable)\n", ds.Dropped)
	}
	return printReport(cmd.OutOrStdout(), report)
}
