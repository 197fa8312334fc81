package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	dommovie "github.com/kailas-cloud/cinesim/internal/domain/movie"
)

// movieSaver persists a batch of movies.
type movieSaver interface {
	SaveBatch(ctx context.Context, movies []dommovie.Movie) error
}

// itemResolver finds catalog metadata for an exported title.
type itemResolver interface {
	ByTitle(title string) (item.Item, bool)
	ByID(id string) (item.Item, bool)
}

var errNoEmbedding = errors.New("narrative embedding is empty")

// builder joins a narrative record with the optional visual and audio records
// of the same title and the catalog metadata.
type builder struct {
	catalog itemResolver
	visual  map[string]embeddingRecord
	audio   map[string]embeddingRecord
	dims    int
}

// build returns the stored movie for a narrative record. Titles missing from the
// catalog get a bare item so they remain searchable by title.
func (b *builder) build(rec embeddingRecord) (dommovie.Movie, error) {
	if len(rec.Embedding) == 0 {
		return dommovie.Movie{}, errNoEmbedding
	}
	if b.dims > 0 && len(rec.Embedding) != b.dims {
		return dommovie.Movie{}, fmt.Errorf("narrative embedding has %d dimensions, want %d", len(rec.Embedding), b.dims)
	}

	it, err := b.resolve(rec)
	if err != nil {
		return dommovie.Movie{}, err
	}

	vectors := map[modality.Axis][]float32{modality.Narrative: rec.Embedding}
	docs := map[modality.Axis]string{modality.Narrative: rec.Document}
	key := titleKey(rec.Title)
	if v, ok := b.visual[key]; ok {
		vectors[modality.Visual] = v.Embedding
		docs[modality.Visual] = v.Document
	}
	if a, ok := b.audio[key]; ok {
		vectors[modality.Audio] = a.Embedding
		docs[modality.Audio] = a.Document
	}

	m, err := dommovie.New(it, vectors, docs)
	if err != nil {
		return dommovie.Movie{}, fmt.Errorf("build movie: %w", err)
	}
	return m, nil
}

func (b *builder) resolve(rec embeddingRecord) (item.Item, error) {
	if id := strings.TrimSpace(rec.ID); id != "" && b.catalog != nil {
		if it, ok := b.catalog.ByID(id); ok {
			return it, nil
		}
	}
	if b.catalog != nil {
		if it, ok := b.catalog.ByTitle(rec.Title); ok {
			return it, nil
		}
	}
	it, err := item.New(strings.TrimSpace(rec.ID), rec.Title, nil, "", 0, "")
	if err != nil {
		return item.Item{}, fmt.Errorf("record item: %w", err)
	}
	return it, nil
}

// ingestResult summarizes a run.
type ingestResult struct {
	Processed int64
	Skipped   int64
	Failed    int64
	Duration  time.Duration
}

// ingester streams narrative records into batches saved by a worker pool.
type ingester struct {
	saver     movieSaver
	builder   *builder
	workers   int
	batchSize int
	maxRows   int
	metrics   *ingestMetrics
	logger    *zap.Logger
}

// Run reads narrative records from read and saves them. A failed batch is counted
// and logged; only read errors and cancellation abort the run.
func (ing *ingester) Run(ctx context.Context, read func(recordCallback) error) (ingestResult, error) {
	start := time.Now()
	var processed, skipped, failed atomic.Int64

	batches := make(chan []dommovie.Movie, ing.workers*2)
	g, gctx := errgroup.WithContext(ctx)

	for id := range ing.workers {
		g.Go(func() error {
			for batch := range batches {
				ing.save(gctx, id, batch, &processed, &failed)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(batches)
		return ing.produce(gctx, read, batches, &skipped)
	})

	err := g.Wait()
	res := ingestResult{
		Processed: processed.Load(),
		Skipped:   skipped.Load(),
		Failed:    failed.Load(),
		Duration:  time.Since(start),
	}
	if err != nil {
		return res, fmt.Errorf("ingest: %w", err)
	}
	return res, nil
}

func (ing *ingester) produce(
	ctx context.Context,
	read func(recordCallback) error,
	out chan<- []dommovie.Movie,
	skipped *atomic.Int64,
) error {
	batch := make([]dommovie.Movie, 0, ing.batchSize)
	rows := 0
	send := func() bool {
		select {
		case out <- batch:
			batch = make([]dommovie.Movie, 0, ing.batchSize)
			return true
		case <-ctx.Done():
			return false
		}
	}

	err := read(func(rec embeddingRecord, line int) bool {
		if ctx.Err() != nil {
			return false
		}
		rows++
		m, err := ing.builder.build(rec)
		if err != nil {
			skipped.Add(1)
			ing.metrics.rowsSkipped.Inc()
			ing.logger.Warn("Skipping export row", zap.Int("row", line), zap.String("title", rec.Title), zap.Error(err))
		} else {
			batch = append(batch, m)
		}
		if len(batch) >= ing.batchSize && !send() {
			return false
		}
		return ing.maxRows <= 0 || rows < ing.maxRows
	})
	if err != nil {
		return fmt.Errorf("read narrative export: %w", err)
	}
	if len(batch) > 0 {
		send()
	}
	return ctx.Err() //nolint:wrapcheck // cancellation is reported as is
}

func (ing *ingester) save(ctx context.Context, worker int, batch []dommovie.Movie, processed, failed *atomic.Int64) {
	start := time.Now()
	err := ing.saver.SaveBatch(ctx, batch)
	ing.metrics.batchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		failed.Add(int64(len(batch)))
		ing.metrics.rowsFailed.Add(float64(len(batch)))
		ing.logger.Error("Batch save failed", zap.Int("worker", worker), zap.Int("size", len(batch)), zap.Error(err))
		return
	}
	ing.metrics.rowsProcessed.Add(float64(len(batch)))
	if total := processed.Add(int64(len(batch))); total%1000 < int64(len(batch)) {
		ing.logger.Info("Ingest progress", zap.Int64("processed", total), zap.Int64("failed", failed.Load()))
	}
}
