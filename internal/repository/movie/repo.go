// Package movie stores movies as hashes and loads the whole corpus for scoring.
package movie

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cinesim/internal/db"
	"github.com/kailas-cloud/cinesim/internal/domain"
	dommovie "github.com/kailas-cloud/cinesim/internal/domain/movie"
)

// store is the consumer interface for movie hashes (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Config tunes corpus loading.
type Config struct {
	ChunkSize   int // keys per HGETALL pipeline
	Concurrency int // pipelines in flight
}

// Repo implements the movie repository consumed by the similarity and analysis services.
type Repo struct {
	store  store
	cfg    Config
	logger *zap.Logger
}

// New creates a movie repository.
func New(s store, cfg Config, logger *zap.Logger) *Repo {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Repo{store: s, cfg: cfg, logger: logger}
}

// SaveBatch writes movies in one pipeline.
func (r *Repo) SaveBatch(ctx context.Context, movies []dommovie.Movie) error {
	items := make([]db.HashSetItem, len(movies))
	for i, m := range movies {
		items[i] = db.HashSetItem{Key: domain.MovieKey(m.Item().ID()), Fields: buildHashFields(m)}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("save %d movies: %w", len(movies), err)
	}
	return nil
}

// Get loads one movie by id.
func (r *Repo) Get(ctx context.Context, id string) (dommovie.Movie, error) {
	key := domain.MovieKey(id)
	h, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return dommovie.Movie{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(h) == 0 {
		return dommovie.Movie{}, domain.ErrNotFound
	}
	m, err := parseHashFields(key, h)
	if err != nil {
		return dommovie.Movie{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return m, nil
}

// LoadAll reads every stored movie, ordered by key. Malformed hashes are skipped with a warning.
func (r *Repo) LoadAll(ctx context.Context) ([]dommovie.Movie, error) {
	keys, err := r.store.Scan(ctx, domain.MovieKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan movies: %w", err)
	}
	slices.Sort(keys)

	hashes := make([]map[string]string, len(keys)) // chunks write disjoint ranges

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for start := 0; start < len(keys); start += r.cfg.ChunkSize {
		end := min(start+r.cfg.ChunkSize, len(keys))
		g.Go(func() error {
			res, err := r.store.HGetAllMulti(gctx, keys[start:end])
			if err != nil {
				return fmt.Errorf("load chunk %d-%d: %w", start, end, err)
			}
			if len(res) != end-start {
				return errors.New("load chunk: result count mismatch")
			}
			copy(hashes[start:end], res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per chunk
	}

	movies := make([]dommovie.Movie, 0, len(keys))
	for i, h := range hashes {
		m, err := parseHashFields(keys[i], h)
		if err != nil {
			r.logger.Warn("Skipping malformed movie hash", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		movies = append(movies, m)
	}
	return movies, nil
}
