package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/app"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
	weightsrepo "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/repository/weights"
)

var inferCmd = &cobra.Command{
	Use:   "infer [text]",
	Short: "Explain the ranking of one text",
	Long: "Prints the detected mentions and the top-K entities of a text, scored against every " +
		"scoreable entity, sorted by score and with mentioned entities first.",
	Args: cobra.MinimumNArgs(1),
	RunE: runInfer,
}

var (
	inferWeights string
	inferTopK    int
)

func init() {
	inferCmd.Flags().StringVarP(&inferWeights, "weights", "w", "", "Artifact path (default: weights.path from config)")
	inferCmd.Flags().IntVarP(&inferTopK, "top-k", "k", 0, "Entities to print (default: the artifact's top_k)")

	rootCmd.AddCommand(inferCmd)
}

func runInfer(cmd *cobra.Command, args []string) error {
	ctx, cancel, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = logger.Sync() }()

	path := cfg.Weights.Path
	if inferWeights != "" {
		path = inferWeights
	}
	w, err := loadOrDefault(weightsrepo.NewFileStore(path))
	if err != nil {
		return err
	}
	k := w.TopK
	if inferTopK > 0 {
		k = inferTopK
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

	text := strings.Join(args, " ")
	q, err := pipeline.Representer.Represent(ctx, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Text: %s\n", q.Text)
	_, _ = fmt.Fprintf(out, "Keywords: %s\n", strings.Join(q.Keywords.Sorted(), ", "))
	_, _ = fmt.Fprintf(out, "Mentions: %s\n\n", formatMentions(q.Mentions))

	baseline := pipeline.Engine.Score(q, pipeline.Universe, w, ranking.OrderScore, k)
	if err := printRanking(out, fmt.Sprintf("Top-%d by score", k), baseline); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out)
	first := pipeline.Engine.Score(q, pipeline.Universe, w, ranking.OrderMentionFirst, k)
	return printRanking(out, fmt.Sprintf("Top-%d mentioned first", k), first)
}

// loadOrDefault returns the saved weights, or the defaults when none are saved.
func loadOrDefault(store *weightsrepo.FileStore) (domweights.Config, error) {
	a, err := store.Load()
	switch {
	case err == nil:
		return a.Weights, nil
	case errors.Is(err, domain.ErrNotFound):
		return domweights.Default(), nil
	}
	return domweights.Config{}, fmt.Errorf("load weights: %w", err)
}
