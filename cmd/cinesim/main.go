package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/catalog"
	"github.com/kailas-cloud/cinesim/internal/config"
	"github.com/kailas-cloud/cinesim/internal/db"
	dbRedis "github.com/kailas-cloud/cinesim/internal/db/redis"
	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/fuzzy"
	logpkg "github.com/kailas-cloud/cinesim/internal/logger"
	"github.com/kailas-cloud/cinesim/internal/metrics"
	"github.com/kailas-cloud/cinesim/internal/repository/embcache"
	movierepo "github.com/kailas-cloud/cinesim/internal/repository/movie"
	searchrepo "github.com/kailas-cloud/cinesim/internal/repository/search"
	"github.com/kailas-cloud/cinesim/internal/session"
	"github.com/kailas-cloud/cinesim/internal/tracing"
	"github.com/kailas-cloud/cinesim/internal/transport/api"
	chiTransport "github.com/kailas-cloud/cinesim/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/cinesim/internal/transport/openai"
	"github.com/kailas-cloud/cinesim/internal/transport/remote"
	"github.com/kailas-cloud/cinesim/internal/transport/ws"
	"github.com/kailas-cloud/cinesim/internal/usecase/analysis"
	embeddinguc "github.com/kailas-cloud/cinesim/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/cinesim/internal/usecase/health"
	searchuc "github.com/kailas-cloud/cinesim/internal/usecase/search"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
	"github.com/kailas-cloud/cinesim/internal/version"
)

func main() {
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

	logger.Info("Starting cinesim API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("remote_sessions", cfg.Remote.BaseURL != ""),
	)

	ctx := context.Background()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version.Version,
		Environment:    env,
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SamplingRate:   cfg.Tracing.SamplingRate,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSessionMetrics()

	dims := cfg.Embedding.Dimensions
	if dims <= 0 {
		dims = domain.DefaultVectorConfig().Dimensions
	}
	created, err := movierepo.EnsureIndex(ctx, store, dims, db.ParseDistance(domain.DefaultVectorConfig().DistanceMetric))
	if err != nil {
		logger.Warn("Movie index unavailable, search falls back to catalog match", zap.Error(err))
	} else if created {
		logger.Info("Created movie index", zap.Int("dimensions", dims))
	}

	// Nil interface (not a typed nil pointer) disables semantic search.
	var queryEmbedder domain.Embedder
	if cfg.Embedding.APIKey != "" {
		queryEmbedder = buildEmbedder(cfg.Embedding, dims, store, logger)
		logger.Info("Query embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", dims),
		)
	} else {
		logger.Info("No embedding API key, semantic search disabled")
	}

	movies := movierepo.New(store, movierepo.Config{
		ChunkSize:   cfg.Similarity.LoadChunkSize,
		Concurrency: cfg.Similarity.LoadConcurrency,
	}, logger)

	similarSvc, err := similar.New(movies, similar.Config{
		TopN:                 cfg.Similarity.TopN,
		RecommendLimit:       cfg.Similarity.RecommendLimit,
		MissingModalityScore: cfg.Similarity.MissingScore(),
		CacheSize:            cfg.Similarity.CacheSize,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create similarity service", zap.Error(err))
	}

	cat := catalog.Load(cfg.Catalog.Path, logger)
	mergeCorpus(ctx, cat, similarSvc, logger)

	matcher := fuzzy.New(fuzzy.Config{
		TitleWeight:       cfg.Search.TitleWeight,
		DescriptionWeight: cfg.Search.DescriptionWeight,
		Threshold:         cfg.Search.FuzzyThreshold,
	})

	var searchEmbedder searchuc.Embedder
	if queryEmbedder != nil {
		searchEmbedder = queryEmbedder
	}
	searchSvc := searchuc.New(searchrepo.New(store, logger), searchEmbedder, cat, matcher, cfg.Search.MaxResults, logger)
	analysisSvc := analysis.New(similarSvc, time.Duration(cfg.Analysis.CacheTTLSec)*time.Second)

	var embeddingChecker healthuc.EmbeddingChecker
	if queryEmbedder != nil {
		embeddingChecker = newEmbeddingHealthChecker(queryEmbedder)
	}
	healthSvc := healthuc.New(store, embeddingChecker, similarSvc)

	sessions, err := buildSessions(cfg, cat, matcher, searchSvc, similarSvc, logger)
	if err != nil {
		logger.Fatal("Failed to create session backends", zap.Error(err))
	}

	server := chiTransport.NewServer(cat, searchSvc, similarSvc, analysisSvc, healthSvc, sessions, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Mount("/", server.Handler())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     otelhttp.NewHandler(r, "cinesim"),
		ReadTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		// WriteTimeout is left to the handlers: it would also cut long-lived websocket sessions.
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// SIGHUP reloads the scored corpus after an ingest run.
wait:
	for {
		select {
		case <-reload:
			logger.Info("Received reload signal")
			if err := similarSvc.Reload(ctx); err != nil {
				logger.Error("Corpus reload failed", zap.Error(err))
				continue
			}
			analysisSvc.Flush()
			mergeCorpus(ctx, cat, similarSvc, logger)
		case <-quit:
			break wait
		}
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error flushing traces", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// mergeCorpus adds scored movies missing from the catalog file so every result is browsable.
func mergeCorpus(ctx context.Context, cat *catalog.Catalog, svc *similar.Service, logger *zap.Logger) {
	items, err := svc.Items(ctx)
	if err != nil {
		logger.Warn("Could not load scored corpus, catalog file only", zap.Error(err))
		return
	}
	added := cat.Merge(items)
	logger.Info("Catalog ready", zap.Int("items", cat.Len()), zap.Int("merged_from_store", added))
}

// buildSessions wires the websocket session handler to remote or in-process backends.
func buildSessions(
	cfg config.Config,
	cat *catalog.Catalog,
	matcher *fuzzy.Matcher,
	searchSvc *searchuc.Service,
	similarSvc *similar.Service,
	logger *zap.Logger,
) (*ws.Handler, error) {
	var searchBackend session.SearchBackend = session.NewInProcessSearch(searchSvc)
	var similarityBackend session.SimilarityBackend = session.NewInProcessSimilarity(similarSvc)

	if cfg.Remote.BaseURL != "" {
		client, err := remote.New(remote.Config{
			BaseURL:    cfg.Remote.BaseURL,
			APIKey:     cfg.Remote.APIKey,
			Timeout:    time.Duration(cfg.Remote.TimeoutSec) * time.Second,
			RatePerSec: cfg.Remote.RatePerSec,
			Burst:      cfg.Remote.Burst,
		}, cat, logger)
		if err != nil {
			return nil, fmt.Errorf("remote backend: %w", err)
		}
		searchBackend, similarityBackend = client, client
		logger.Info("Sessions use remote backend", zap.String("base_url", cfg.Remote.BaseURL))
	}

	sessCfg := session.Config{
		Search: session.SearchConfig{
			MinQueryLength: cfg.Search.MinQueryLength,
			MaxResults:     cfg.Search.MaxResults,
		},
		PageSize: cfg.Search.PageSize,
	}
	factory := func(id string, l *zap.Logger) *session.Session {
		return session.New(id, session.Deps{
			Local:      matcher,
			Search:     searchBackend,
			Similarity: similarityBackend,
			Corpus:     cat.Items(),
		}, sessCfg, l)
	}

	return ws.NewHandler(factory, ws.Config{
		WriteTimeout:    time.Duration(cfg.Session.WriteTimeoutSec) * time.Second,
		PingInterval:    time.Duration(cfg.Session.PingIntervalSec) * time.Second,
		MaxMessageBytes: cfg.Session.MaxMessageBytes,
		AllowedOrigins:  cfg.Session.AllowedOrigins,
	}, logger), nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Throttled -> Cached -> Instruction.
// Cache hits never count against the local rate limit.
func buildEmbedder(cfg config.EmbeddingConfig, dims int, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: dims,
		Provider:   cfg.Provider,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		base, cfg.Provider, cfg.Model, cfg.RatePerSec, cfg.Burst, logger,
	)

	if cfg.CacheEnabled() {
		embedder = embcache.New(embedder, store, cfg.Model, 0, metrics.EmbeddingCacheTotal, logger)
	}

	// Instruction prefix (outermost, cache key includes instruction)
	if cfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}
	return embedder
}

func jsonStatus(status int, code api.ErrorCode, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Code: code, Message: msg})
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					jsonStatus(http.StatusInternalServerError, api.ErrorCodeInternalError, "internal error")(w, r)
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
				zap.String("search_method", ww.Header().Get("X-Search-Method")),
			)
		})
	}
}
