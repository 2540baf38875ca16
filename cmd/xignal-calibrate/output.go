package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/mention"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	domweights "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/calibrate"
)

func printWeights(w io.Writer, c domweights.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, v := range c.Vector() {
		if _, err := fmt.Fprintf(tw, "  %s\t%.4f\n", domweights.Names[i], v); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(tw, "  top_k\t%d\n", c.TopK); err != nil {
		return err
	}
	return tw.Flush()
}

func printArtifact(w io.Writer, a domweights.Artifact, k int) error {
	if _, err := fmt.Fprintf(w, "Best Hit@%d: %.4f after %d trials (converged: %t)\n",
		k, a.HitAtK, a.Trials, a.Converged); err != nil {
		return err
	}
	return printWeights(w, a.Weights)
}

func printReport(w io.Writer, r calibrate.Report) error {
	if _, err := fmt.Fprintf(w, "Queries: %d\n", r.Queries); err != nil {
		return err
	}
	if err := printWeights(w, r.Weights); err != nil {
		return err
	}
	for _, o := range []ranking.Order{ranking.OrderScore, ranking.OrderMentionFirst} {
		if _, err := fmt.Fprintf(w, "Hit@%d (%s): %.4f\n", r.K, o, r.HitAtK[o]); err != nil {
			return err
		}
	}
	return nil
}

// formatMentions renders levels as "SYM=level", strongest first, then by symbol.
func formatMentions(levels mention.Levels) string {
	syms := levels.Symbols()
	if len(syms) == 0 {
		return "(none)"
	}
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = s + "=" + levels.Get(s).String()
	}
	return strings.Join(parts, ", ")
}

func printRanking(w io.Writer, title string, items []ranking.Item) error {
	if _, err := fmt.Fprintf(w, "%s\n", title); err != nil {
		return err
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "  (no scoreable entities)")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  #\tSYMBOL\tSCORE\tSIM_A1\tSIM_B1\tSIM_A2\tSIM_B2\tKW\tIND\tMENTION")
	for i, it := range items {
		s := it.Signals
		_, _ = fmt.Fprintf(tw, "  %d\t%s\t%.4f\t%.3f\t%.3f\t%.3f\t%.3f\t%d\t%t\t%s\n",
			i+1, it.Symbol, it.Score, s.SimA1, s.SimB1, s.SimA2, s.SimB2,
			s.KeywordOverlap, s.IndustryMatch, s.Mention)
	}
	return tw.Flush()
}
