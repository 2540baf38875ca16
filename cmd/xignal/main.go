package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/app"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/config"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/domain/ranking"
	logpkg "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/logger"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/metrics"
	weightsrepo "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/repository/weights"
	chiTransport "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/transport/chi"
	healthuc "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/health"
	rankuc "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/rank"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/retrieval"
	weightsuc "github.com/kimtaewan0309/XTock-Xignal-prototype/internal/usecase/weights"
	"github.com/kimtaewan0309/XTock-Xignal-prototype/internal/version"
)

func main() {
	_ = godotenv.Load()

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting xignal API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRankingMetrics()

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open embedding store", zap.Error(err))
	}
	defer store.Close()

	pipeline, err := app.BuildPipeline(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to build ranking pipeline", zap.Error(err))
	}
	logger.Info("Ranking pipeline ready",
		zap.Int("catalog", pipeline.Catalog.Len()),
		zap.Int("scoreable", len(pipeline.Universe)),
		zap.String("embed_a_model", cfg.Embedding.Spaces.EmbedA.Model),
		zap.String("embed_b_model", cfg.Embedding.Spaces.EmbedB.Model),
	)

	// Weights: defaults until a calibrated artifact loads
	holder := weightsuc.NewHolder(weightsrepo.NewFileStore(cfg.Weights.Path), metrics.WeightsReloadsTotal, logger)
	if _, err := holder.Reload(); err != nil {
		logger.Warn("Weights artifact rejected, serving defaults", zap.Error(err))
	}

	retriever := retrieval.New(store.Vectors, retrieval.Options{
		Multiplier: cfg.Ranking.CandidateMultiplier,
		Timeout:    time.Duration(cfg.Ranking.RetrievalTimeoutMs) * time.Millisecond,
	}, metrics.ShortlistSize, metrics.RetrievalFailuresTotal, logger)

	rankSvc := rankuc.New(pipeline.Representer, retriever, pipeline.Engine, holder, rankuc.Options{
		DefaultTopK:        cfg.Ranking.DefaultTopK,
		MaxTopK:            cfg.Ranking.MaxTopK,
		FallbackToMentions: cfg.Ranking.FallbackToMentions,
	}, rankuc.Metrics{
		Requests: metrics.RankRequestsTotal,
		Duration: metrics.RankDuration,
	})

	healthSvc := healthuc.New(store.Vectors, pipeline.Encoder, holder, len(pipeline.Universe))

	defaultOrder, err := ranking.ParseOrder(cfg.Ranking.DefaultOrder)
	if err != nil {
		logger.Fatal("Invalid default order", zap.Error(err))
	}
	server := chiTransport.NewServer(rankSvc, holder, healthSvc, defaultOrder, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware("/metrics"))
	chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{
		BaseRouter:       r,
		AdminMiddlewares: []func(http.Handler) http.Handler{chiTransport.AdminAuthMiddleware(cfg.HTTP.AdminTokens)},
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
				Code:    chiTransport.ErrorCodeBadRequest,
				Message: err.Error(),
			})
		},
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// SIGHUP reloads weights, SIGINT/SIGTERM stop the server
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			if _, err := holder.Reload(); err != nil {
				logger.Error("Weights reload failed, keeping current", zap.Error(err))
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	signal.Stop(hup)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
				zap.String("embedding_tokens", ww.Header().Get("X-Embedding-Tokens")),
			)
		})
	}
}
