// Package app assembles the ranking pipeline from configuration. It is the
// composition root shared by the API server and the calibration CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/config"
	dbValkey "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/db/valkey"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/entity"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/metrics"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/repository/catalog"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/repository/embcache"
	embrepo "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/repository/embedding"
	openaiEmb "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/transport/openai"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/calibrate"
	embeddinguc "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/embedding"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/keywords"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/mention"
	rankuc "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/rank"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/scoring"
)

// VectorStore is the entity embedding store behind either driver.
type VectorStore interface {
	embrepo.Source
	Nearest(ctx context.Context, vec []float32, k int) ([]entity.Neighbor, error)
	Put(ctx context.Context, symbol string, rec entity.EmbeddingRecord) error
	PutMany(ctx context.Context, recs map[string]entity.EmbeddingRecord) error
	Fetch(ctx context.Context, symbols []string) (map[string]entity.EmbeddingRecord, error)
	EnsureIndex(ctx context.Context, dim int) error
	Ping(ctx context.Context) error
}

// Store is an open embedding store plus, for valkey, the raw client used by the query cache.
type Store struct {
	Vectors VectorStore
	valkey  *dbValkey.Store
	close   func()
}

// Close releases the underlying connection.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// valkeyVectors adds Ping to the valkey-backed repository.
type valkeyVectors struct {
	*embrepo.Repo
	store *dbValkey.Store
}

func (v valkeyVectors) Ping(ctx context.Context) error { return v.store.Ping(ctx) }

// OpenStore connects to the configured driver and waits until it answers.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case "valkey":
		vs, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create valkey store: %w", err)
		}
		if err := vs.WaitForReady(ctx, readiness); err != nil {
			vs.Close()
			return nil, fmt.Errorf("valkey not ready: %w", err)
		}
		repo := embrepo.New(vs, cfg.KeyPrefix).WithHNSW(embrepo.HNSWConfig{
			M:           cfg.HNSWM,
			EFConstruct: cfg.HNSWEFConstruct,
		})
		logger.Info("Connected to database", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))
		return &Store{Vectors: valkeyVectors{Repo: repo, store: vs}, valkey: vs, close: vs.Close}, nil

	case "postgres":
		pingCtx, cancel := context.WithTimeout(ctx, readiness)
		defer cancel()
		conn, err := embrepo.OpenPostgres(pingCtx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres not ready: %w", err)
		}
		logger.Info("Connected to database", zap.String("driver", cfg.Driver))
		return &Store{
			Vectors: embrepo.NewPG(conn, embrepo.DefaultTable),
			close:   func() { _ = conn.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// LoadCatalog reads the entity catalog sources.
func LoadCatalog(cfg config.CatalogConfig, logger *zap.Logger) (*entity.Catalog, error) {
	cat, err := catalog.NewLoader(catalog.Sources{
		CSVPath:     cfg.CSVPath,
		KeywordDir:  cfg.KeywordDir,
		IndustryDir: cfg.IndustryDir,
		AliasesPath: cfg.AliasesPath,
	}, logger).Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// DetectorOptions maps mention configuration onto detector options.
// An explicitly empty list disables the corresponding default.
func DetectorOptions(cfg config.MentionConfig) mention.Options {
	opts := mention.DefaultOptions()
	if cfg.AmbiguousSymbols != nil {
		opts.AmbiguousSymbols = cfg.AmbiguousSymbols
	}
	if cfg.ShortWhitelist != nil {
		opts.ShortWhitelist = cfg.ShortWhitelist
	}
	if cfg.MinTermLength > 0 {
		opts.MinTermLength = cfg.MinTermLength
	}
	if cfg.CaseSensitiveSymbols != nil {
		opts.CaseSensitiveSymbols = *cfg.CaseSensitiveSymbols
	}
	return opts
}

// BuildEncoder assembles one decorator chain per embedding space and pairs them.
// vs may be nil when the cache backend is not valkey.
func BuildEncoder(cfg config.Config, vs *Store, logger *zap.Logger) (*embeddinguc.DualEncoder, error) {
	a, err := buildEmbedder(cfg, domain.SpaceA, cfg.Embedding.Spaces.EmbedA, vs, logger)
	if err != nil {
		return nil, err
	}
	b, err := buildEmbedder(cfg, domain.SpaceB, cfg.Embedding.Spaces.EmbedB, vs, logger)
	if err != nil {
		return nil, err
	}
	enc := embeddinguc.NewDualEncoder(a, b)
	if cfg.Ranking.EncodeTimeoutMs > 0 {
		enc = enc.WithTimeout(time.Duration(cfg.Ranking.EncodeTimeoutMs) * time.Millisecond)
	}
	return enc, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	cfg config.Config, space domain.Space, sp config.SpaceConfig, vs *Store, logger *zap.Logger,
) (domain.Embedder, error) {
	prov := cfg.Embedding.Providers[sp.Provider]

	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     prov.APIKey,
		BaseURL:    prov.BaseURL,
		Model:      sp.Model,
		Dimensions: sp.Dimensions,
		Provider:   sp.Provider,
		Space:      space,
		Timeout:    time.Duration(prov.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	switch cfg.Embedding.Cache.Backend {
	case "valkey":
		if vs == nil || vs.valkey == nil {
			return nil, fmt.Errorf("embedding cache %q requires a valkey store", cfg.Embedding.Cache.Backend)
		}
		embedder = embcache.New(base, vs.valkey, embcache.Options{
			KeyPrefix: cfg.Database.KeyPrefix,
			Namespace: string(space) + ":" + sp.Model,
			TTL:       time.Duration(cfg.Embedding.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	case "memory":
		mem, err := embcache.NewMemory(base, cfg.Embedding.Cache.Size, metrics.EmbeddingCacheTotal)
		if err != nil {
			return nil, fmt.Errorf("create %s cache: %w", space, err)
		}
		embedder = mem
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, sp.Provider, sp.Model, space, logger)

	// Instruction prefix (outermost, so the cache key includes it)
	if sp.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, sp.QueryInstruction), nil
	}
	return embedder, nil
}

// Pipeline is the loaded, read-only state every ranking path needs.
type Pipeline struct {
	Catalog     *entity.Catalog
	Vectors     *embrepo.Snapshot
	Universe    []string
	Engine      *scoring.Engine
	Representer *rankuc.Representer
	Encoder     *embeddinguc.DualEncoder
}

// BuildPipeline loads the catalog and the embedding snapshot and wires the
// detector, keyword extractor, encoder and scoring engine over them.
func BuildPipeline(ctx context.Context, cfg config.Config, st *Store, logger *zap.Logger) (*Pipeline, error) {
	cat, err := LoadCatalog(cfg.Catalog, logger)
	if err != nil {
		return nil, err
	}
	snap, err := embrepo.LoadSnapshot(ctx, st.Vectors)
	if err != nil {
		return nil, err
	}
	if err := checkSnapshot(snap, cfg.Embedding.Spaces.EmbedA, logger); err != nil {
		return nil, err
	}
	enc, err := BuildEncoder(cfg, st, logger)
	if err != nil {
		return nil, err
	}

	engine := scoring.New(cat, snap)
	universe := calibrate.Universe(cat, snap)
	if len(universe) < cat.Len() {
		logger.Warn("Entities without a complete embedding record are excluded",
			zap.Int("catalog", cat.Len()),
			zap.Int("scoreable", len(universe)),
		)
	}

	repr := rankuc.NewRepresenter(
		mention.NewDetector(cat, DetectorOptions(cfg.Mention)),
		keywords.New(cfg.Ranking.KeywordLimit, logger),
		enc,
	)
	return &Pipeline{
		Catalog:     cat,
		Vectors:     snap,
		Universe:    universe,
		Engine:      engine,
		Representer: repr,
		Encoder:     enc,
	}, nil
}

// checkSnapshot rejects stored vectors whose dimension disagrees with the
// configured query encoder of space A.
func checkSnapshot(snap *embrepo.Snapshot, space config.SpaceConfig, logger *zap.Logger) error {
	dim := snap.Dimension()
	logger.Info("Embedding snapshot loaded",
		zap.Int("stored", snap.Len()),
		zap.Int("complete", len(snap.CompleteSymbols())),
		zap.Int("dimension", dim),
	)
	if dim > 0 && space.Dimensions > 0 && dim != space.Dimensions {
		return fmt.Errorf("stored %s vectors: %w", domain.SpaceA,
			&domain.DimensionMismatchError{Want: space.Dimensions, Got: dim})
	}
	return nil
}
