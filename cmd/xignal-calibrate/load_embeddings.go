package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/app"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
)

var loadEmbeddingsCmd = &cobra.Command{
	Use:   "load-embeddings",
	Short: "Load precomputed entity embeddings into the vector store",
	Long: "Reads a JSON Lines file with one object per entity " +
		`({"symbol", "primary_embed_a", "primary_embed_b", "secondary_embed_a", "secondary_embed_b"}), ` +
		"creates the vector index and upserts every record.",
	RunE: runLoadEmbeddings,
}

var (
	loadEmbeddingsInput       string
	loadEmbeddingsBatch       int
	loadEmbeddingsCatalogOnly bool
)

func init() {
	loadEmbeddingsCmd.Flags().StringVarP(&loadEmbeddingsInput, "input", "i", "", "Path to the JSON Lines file (required)")
	loadEmbeddingsCmd.Flags().IntVar(&loadEmbeddingsBatch, "batch", 200, "Records per write")
	loadEmbeddingsCmd.Flags().BoolVar(&loadEmbeddingsCatalogOnly, "catalog-only", true, "Skip symbols absent from the catalog")

	if err := loadEmbeddingsCmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag as required: %v", err))
	}

	rootCmd.AddCommand(loadEmbeddingsCmd)
}

// embeddingLine is one entity in the input file. Missing vectors are allowed;
// such entities are stored but not scoreable.
type embeddingLine struct {
	Symbol     string    `json:"symbol"`
	PrimaryA   []float32 `json:"primary_embed_a"`
	PrimaryB   []float32 `json:"primary_embed_b"`
	SecondaryA []float32 `json:"secondary_embed_a"`
	SecondaryB []float32 `json:"secondary_embed_b"`
}

// readEmbeddings parses JSON Lines. Vectors of one space must share a
// dimension across the whole file; blank lines are skipped.
func readEmbeddings(r io.Reader) (map[string]entity.EmbeddingRecord, map[domain.Space]int, error) {
	recs := make(map[string]entity.EmbeddingRecord)
	dims := make(map[domain.Space]int, 2)

	check := func(line int, space domain.Space, v []float32) error {
		if len(v) == 0 {
			return nil
		}
		want, ok := dims[space]
		if !ok {
			dims[space] = len(v)
			return nil
		}
		if want != len(v) {
			return fmt.Errorf("line %d: %s: %w", line, space, &domain.DimensionMismatchError{Want: want, Got: len(v)})
		}
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	n := 0
	for sc.Scan() {
		n++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var l embeddingLine
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", n, err)
		}
		sym := strings.ToUpper(strings.TrimSpace(l.Symbol))
		if sym == "" {
			return nil, nil, fmt.Errorf("line %d: missing symbol", n)
		}
		for _, c := range []struct {
			space domain.Space
			v     []float32
		}{
			{domain.SpaceA, l.PrimaryA}, {domain.SpaceB, l.PrimaryB},
			{domain.SpaceA, l.SecondaryA}, {domain.SpaceB, l.SecondaryB},
		} {
			if err := check(n, c.space, c.v); err != nil {
				return nil, nil, err
			}
		}
		recs[sym] = entity.EmbeddingRecord{
			PrimaryA: l.PrimaryA, PrimaryB: l.PrimaryB,
			SecondaryA: l.SecondaryA, SecondaryB: l.SecondaryB,
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read embeddings: %w", err)
	}
	return recs, dims, nil
}

func runLoadEmbeddings(cmd *cobra.Command, _ []string) error {
	ctx, cancel, cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(loadEmbeddingsInput)
	if err != nil {
		return fmt.Errorf("open %s: %w", loadEmbeddingsInput, err)
	}
	defer f.Close()

	recs, dims, err := readEmbeddings(f)
	if err != nil {
		return err
	}
	if dims[domain.SpaceA] == 0 {
		return fmt.Errorf("%s: no %s vectors", loadEmbeddingsInput, domain.SpaceA)
	}

	if loadEmbeddingsCatalogOnly {
		cat, err := app.LoadCatalog(cfg.Catalog, logger)
		if err != nil {
			return err
		}
		for sym := range recs {
			if _, ok := cat.Get(sym); !ok {
				logger.Warn("Skipping symbol absent from catalog", zap.String("symbol", sym))
				delete(recs, sym)
			}
		}
	}

	st, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Vectors.EnsureIndex(ctx, dims[domain.SpaceA]); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	complete, err := storeBatches(ctx, st.Vectors, recs, loadEmbeddingsBatch)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d entities (%d complete), %s dim %d, %s dim %d\n",
		len(recs), complete, domain.SpaceA, dims[domain.SpaceA], domain.SpaceB, dims[domain.SpaceB])
	return nil
}

// batchWriter is the part of the vector store the import needs.
type batchWriter interface {
	PutMany(ctx context.Context, recs map[string]entity.EmbeddingRecord) error
	Fetch(ctx context.Context, symbols []string) (map[string]entity.EmbeddingRecord, error)
}

// storeBatches writes recs in batches and reads every batch back, returning
// how many stored records carry all four vectors.
func storeBatches(ctx context.Context, w batchWriter, recs map[string]entity.EmbeddingRecord, size int) (int, error) {
	complete := 0
	for _, batch := range batches(recs, size) {
		if err := w.PutMany(ctx, batch); err != nil {
			return complete, fmt.Errorf("store embeddings: %w", err)
		}
		symbols := make([]string, 0, len(batch))
		for sym := range batch {
			symbols = append(symbols, sym)
		}
		stored, err := w.Fetch(ctx, symbols)
		if err != nil {
			return complete, fmt.Errorf("verify embeddings: %w", err)
		}
		if len(stored) != len(batch) {
			return complete, fmt.Errorf("verify embeddings: wrote %d records, read back %d", len(batch), len(stored))
		}
		for _, r := range stored {
			if r.Complete() {
				complete++
			}
		}
	}
	return complete, nil
}

// batches splits recs into maps of at most size entries.
func batches(recs map[string]entity.EmbeddingRecord, size int) []map[string]entity.EmbeddingRecord {
	if size < 1 {
		size = len(recs)
	}
	var out []map[string]entity.EmbeddingRecord
	cur := make(map[string]entity.EmbeddingRecord, size)
	for sym, r := range recs {
		cur[sym] = r
		if len(cur) >= size {
			out = append(out, cur)
			cur = make(map[string]entity.EmbeddingRecord, size)
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
