// Package similar scores every stored movie against a reference and ranks them by weighted blend.
package similar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	dommovie "github.com/kailas-cloud/cinesim/internal/domain/movie"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/metrics"
)

// Config tunes the similarity service.
type Config struct {
	TopN                 int     // results of Similarity
	RecommendLimit       int     // results of Recommend
	MissingModalityScore float64 // score of an axis either side has no vector for
	CacheSize            int     // references whose breakdowns are kept
}

// Service computes per-modality breakdowns and ranked similarity lists.
type Service struct {
	movies MovieLoader
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	corpus *corpus

	cache *lru.Cache[string, []Candidate]
}

type corpus struct {
	movies  []dommovie.Movie
	byID    map[string]int
	byTitle map[string]int
}

// New creates a similarity service. The corpus is loaded on first use.
func New(movies MovieLoader, cfg Config, logger *zap.Logger) (*Service, error) {
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	if cfg.RecommendLimit <= 0 {
		cfg.RecommendLimit = 8
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	cache, err := lru.New[string, []Candidate](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create breakdown cache: %w", err)
	}
	return &Service{movies: movies, cfg: cfg, logger: logger, cache: cache}, nil
}

// Reload drops the loaded corpus and cached breakdowns, then loads the corpus again.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.corpus = nil
	s.cache.Purge()
	s.mu.Unlock()

	_, err := s.load(ctx)
	return err
}

func (s *Service) load(ctx context.Context) (*corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corpus != nil {
		return s.corpus, nil
	}

	movies, err := s.movies.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w: %w", domain.ErrIndexUnavailable, err)
	}
	c := &corpus{
		movies:  movies,
		byID:    make(map[string]int, len(movies)),
		byTitle: make(map[string]int, len(movies)),
	}
	for i, m := range movies {
		c.byID[m.Item().ID()] = i
		if key := strings.ToLower(strings.TrimSpace(m.Item().Title())); key != "" {
			if _, taken := c.byTitle[key]; !taken {
				c.byTitle[key] = i
			}
		}
	}
	s.corpus = c
	s.logger.Info("Similarity corpus loaded", zap.Int("movies", len(movies)))
	return c, nil
}

func (c *corpus) resolve(ref string) (dommovie.Movie, bool) {
	if i, ok := c.byTitle[strings.ToLower(strings.TrimSpace(ref))]; ok {
		return c.movies[i], true
	}
	if i, ok := c.byID[ref]; ok {
		return c.movies[i], true
	}
	return dommovie.Movie{}, false
}

// Count returns the number of scored movies.
func (s *Service) Count(ctx context.Context) (int, error) {
	c, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(c.movies), nil
}

// Items returns the items of the scored corpus in load order.
func (s *Service) Items(ctx context.Context) ([]item.Item, error) {
	c, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]item.Item, len(c.movies))
	for i, m := range c.movies {
		items[i] = m.Item()
	}
	return items, nil
}

// Lookup resolves a reference by title (case-insensitive) or id.
func (s *Service) Lookup(ctx context.Context, ref string) (dommovie.Movie, error) {
	c, err := s.load(ctx)
	if err != nil {
		return dommovie.Movie{}, err
	}
	m, ok := c.resolve(ref)
	if !ok {
		return dommovie.Movie{}, fmt.Errorf("movie %q: %w", ref, domain.ErrNotFound)
	}
	return m, nil
}

// Breakdown returns the modality scores of every other movie against ref, in corpus order.
func (s *Service) Breakdown(ctx context.Context, ref string) (item.Item, []Candidate, error) {
	c, err := s.load(ctx)
	if err != nil {
		return item.Item{}, nil, err
	}
	refMovie, ok := c.resolve(ref)
	if !ok {
		return item.Item{}, nil, fmt.Errorf("movie %q: %w", ref, domain.ErrNotFound)
	}
	id := refMovie.Item().ID()

	if cands, ok := s.cache.Get(id); ok {
		metrics.SimilarityRequestsTotal.WithLabelValues("hit").Inc()
		return refMovie.Item(), cands, nil
	}
	metrics.SimilarityRequestsTotal.WithLabelValues("miss").Inc()

	start := time.Now()
	cands := make([]Candidate, 0, len(c.movies))
	for _, m := range c.movies {
		if m.Item().ID() == id {
			continue
		}
		cands = append(cands, Candidate{Item: m.Item(), Score: refMovie.Compare(m, s.cfg.MissingModalityScore)})
	}
	metrics.SimilarityDuration.Observe(time.Since(start).Seconds())

	s.remember(c, id, cands)
	return refMovie.Item(), cands, nil
}

// remember caches cands only while c is still the loaded corpus.
// A breakdown computed before a Reload must not outlive the purge.
func (s *Service) remember(c *corpus, id string, cands []Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corpus == c {
		s.cache.Add(id, cands)
	}
}

// Similarity ranks the corpus against ref and returns the top results.
// An unknown reference yields an empty list.
func (s *Service) Similarity(ctx context.Context, ref string, w weights.Vector) ([]RankedResult, error) {
	if err := weights.Validate(w); err != nil {
		return nil, err //nolint:wrapcheck // sentinel-carrying domain error
	}
	refItem, cands, err := s.Breakdown(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []RankedResult{}, nil
		}
		return nil, err
	}
	ranked, err := Rank(refItem, cands, w)
	if err != nil {
		return nil, err
	}
	return Page(ranked, s.cfg.TopN), nil
}

// Recommend ranks the corpus against ref and returns the top results with explanation tags.
func (s *Service) Recommend(ctx context.Context, ref string, w weights.Vector) ([]RankedResult, error) {
	if err := weights.Validate(w); err != nil {
		return nil, err //nolint:wrapcheck // sentinel-carrying domain error
	}
	refItem, cands, err := s.Breakdown(ctx, ref)
	if err != nil {
		return nil, err
	}
	ranked, err := Rank(refItem, cands, w)
	if err != nil {
		return nil, err
	}
	ranked = Page(ranked, s.cfg.RecommendLimit)
	for i := range ranked {
		ranked[i].Tags = Explain(ranked[i].Breakdown, w)
	}
	return ranked, nil
}
