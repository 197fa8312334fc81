// Command cinesim-ingest loads per-modality movie embeddings into the store.
//
// Each axis comes as a separate export (.jsonl or .parquet) of
// {id, title, embedding, document} rows. Narrative rows drive the run; visual and
// audio rows are joined by title. Catalog metadata is attached when the title is known.
//
// Usage:
//
//	cinesim-ingest -narrative data/narrative.parquet -visual data/visual.jsonl -audio data/audio.jsonl
//
// The store address and embedding dimensions come from the ENV config (config/<env>.yaml).
// Send SIGHUP to a running server afterwards to reload its corpus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/catalog"
	"github.com/kailas-cloud/cinesim/internal/config"
	"github.com/kailas-cloud/cinesim/internal/db"
	dbRedis "github.com/kailas-cloud/cinesim/internal/db/redis"
	"github.com/kailas-cloud/cinesim/internal/domain"
	logpkg "github.com/kailas-cloud/cinesim/internal/logger"
	movierepo "github.com/kailas-cloud/cinesim/internal/repository/movie"
)

type options struct {
	narrative   string
	visual      string
	audio       string
	catalog     string
	workers     int
	batchSize   int
	maxRows     int
	metricsAddr string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.narrative, "narrative", "", "narrative export (.jsonl or .parquet), required")
	flag.StringVar(&o.visual, "visual", "", "visual export (optional)")
	flag.StringVar(&o.audio, "audio", "", "audio export (optional)")
	flag.StringVar(&o.catalog, "catalog", "", "catalog file for metadata (default: catalog.path from config)")
	flag.IntVar(&o.workers, "workers", 4, "parallel save workers")
	flag.IntVar(&o.batchSize, "batch-size", 100, "movies per pipelined save")
	flag.IntVar(&o.maxRows, "max-rows", 0, "max narrative rows to read (0=unlimited)")
	flag.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "cinesim-ingest:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if opts.narrative == "" {
		return fmt.Errorf("-narrative is required")
	}
	if opts.workers <= 0 || opts.batchSize <= 0 {
		return fmt.Errorf("-workers and -batch-size must be positive")
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	metrics := newIngestMetrics(reg)
	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, reg, logger)
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer store.Close()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}

	dims := cfg.Embedding.Dimensions
	if dims <= 0 {
		dims = domain.DefaultVectorConfig().Dimensions
	}
	created, err := movierepo.EnsureIndex(ctx, store, dims, db.ParseDistance(domain.DefaultVectorConfig().DistanceMetric))
	if err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	if created {
		logger.Info("Created movie index", zap.Int("dimensions", dims))
	}

	catalogPath := opts.catalog
	if catalogPath == "" {
		catalogPath = cfg.Catalog.Path
	}
	cat := catalog.Load(catalogPath, logger)

	visual, err := loadAxis(opts.visual)
	if err != nil {
		return fmt.Errorf("visual export: %w", err)
	}
	audio, err := loadAxis(opts.audio)
	if err != nil {
		return fmt.Errorf("audio export: %w", err)
	}
	logger.Info("Optional axes loaded", zap.Int("visual", len(visual)), zap.Int("audio", len(audio)))

	ing := &ingester{
		saver:     movierepo.New(store, movierepo.Config{}, logger),
		builder:   &builder{catalog: cat, visual: visual, audio: audio, dims: dims},
		workers:   opts.workers,
		batchSize: opts.batchSize,
		maxRows:   opts.maxRows,
		metrics:   metrics,
		logger:    logger,
	}

	res, err := ing.Run(ctx, func(cb recordCallback) error {
		return readRecords(opts.narrative, cb)
	})
	logger.Info("Ingest finished",
		zap.Int64("processed", res.Processed),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("failed", res.Failed),
		zap.Duration("duration", res.Duration.Round(time.Millisecond)),
	)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d movies failed to save", res.Failed)
	}
	return nil
}
