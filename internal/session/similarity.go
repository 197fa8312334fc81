package session

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/metrics"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

// SimilaritySnapshot is the renderable ranked-list state.
type SimilaritySnapshot struct {
	Generation uint64
	Reference  *item.Item
	Weights    weights.Vector
	Results    []similar.RankedResult
	Loading    bool
}

// SimilarityController owns the reference, the weights and the ranked list.
// Reference and weight changes re-rank cached breakdowns at once and refetch
// asynchronously; a response is applied only while its generation is current.
type SimilarityController struct {
	backend  SimilarityBackend
	pageSize int
	spawn    Spawner
	logger   *zap.Logger
	onChange func()

	mu         sync.Mutex
	generation uint64
	reference  item.Item
	weights    weights.Vector
	corpus     []item.Item
	breakdown  map[string]similar.Candidate // by candidate id, for reference
	results    []similar.RankedResult
	loading    bool
}

// SimilarityOption configures a SimilarityController.
type SimilarityOption func(*SimilarityController)

// WithSimilaritySpawner overrides how backend lookups are started.
func WithSimilaritySpawner(s Spawner) SimilarityOption {
	return func(c *SimilarityController) { c.spawn = s }
}

// OnSimilarityChange registers a callback fired after every visible state change.
func OnSimilarityChange(f func()) SimilarityOption {
	return func(c *SimilarityController) { c.onChange = f }
}

// NewSimilarityController creates a controller with default weights and no reference.
func NewSimilarityController(
	backend SimilarityBackend, pageSize int, logger *zap.Logger, opts ...SimilarityOption,
) *SimilarityController {
	if pageSize <= 0 {
		pageSize = similar.DefaultPageSize
	}
	c := &SimilarityController{
		backend:  backend,
		pageSize: pageSize,
		spawn:    goSpawn,
		logger:   logger,
		weights:  weights.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetCorpus replaces the items ranked when the backend returns only a subset.
func (c *SimilarityController) SetCorpus(items []item.Item) {
	c.mu.Lock()
	c.corpus = slices.Clone(items)
	c.rerank()
	c.mu.Unlock()
	c.changed()
}

// SetReference selects the reference item and starts a lookup. Returns the minted generation.
func (c *SimilarityController) SetReference(ctx context.Context, ref item.Item) uint64 {
	c.mu.Lock()
	if ref.ID() != c.reference.ID() {
		c.breakdown = nil
		c.results = nil
	}
	c.reference = ref
	gen := c.begin()
	w := c.weights
	c.mu.Unlock()

	c.changed()
	c.fetch(ctx, gen, ref, w)
	return gen
}

// SetWeights replaces the weights. Off-simplex vectors are rejected with ErrInvalidWeights.
func (c *SimilarityController) SetWeights(ctx context.Context, w weights.Vector) (uint64, error) {
	return c.updateWeights(ctx, func(weights.Vector) weights.Vector { return w })
}

// Adjust moves one axis and redistributes the rest.
func (c *SimilarityController) Adjust(ctx context.Context, axis modality.Axis, value float64) (uint64, error) {
	return c.updateWeights(ctx, func(cur weights.Vector) weights.Vector {
		return weights.Adjust(cur, axis, value)
	})
}

// Reset restores the default weights.
func (c *SimilarityController) Reset(ctx context.Context) (uint64, error) {
	return c.SetWeights(ctx, weights.Reset())
}

// updateWeights derives the next vector from the current one under c.mu.
func (c *SimilarityController) updateWeights(ctx context.Context, next func(weights.Vector) weights.Vector) (uint64, error) {
	c.mu.Lock()
	w := next(c.weights)
	if err := weights.Validate(w); err != nil {
		c.mu.Unlock()
		return 0, err //nolint:wrapcheck // sentinel-carrying domain error
	}
	c.weights = w
	if c.reference.IsZero() {
		gen := c.generation
		c.mu.Unlock()
		c.changed()
		return gen, nil
	}
	ref := c.reference
	gen := c.begin()
	c.mu.Unlock()

	c.changed()
	c.fetch(ctx, gen, ref, w)
	return gen, nil
}

// Clear drops the reference and results and invalidates in-flight lookups.
func (c *SimilarityController) Clear() {
	c.mu.Lock()
	c.generation++
	c.reference = item.Item{}
	c.breakdown = nil
	c.results = nil
	c.loading = false
	c.mu.Unlock()
	c.changed()
}

// begin mints a generation and re-ranks cached breakdowns. Callers hold mu.
func (c *SimilarityController) begin() uint64 {
	c.generation++
	c.loading = true
	c.rerank()
	return c.generation
}

func (c *SimilarityController) fetch(ctx context.Context, gen uint64, ref item.Item, w weights.Vector) {
	if c.backend == nil {
		c.mu.Lock()
		if gen == c.generation {
			c.loading = false
		}
		c.mu.Unlock()
		return
	}
	c.spawn(func() {
		cands, err := c.backend.Breakdown(ctx, ref, w)
		if err != nil {
			metrics.RemoteFailuresTotal.WithLabelValues("similarity").Inc()
			c.logger.Debug("Similarity lookup failed, keeping previous results",
				zap.Uint64("generation", gen), zap.String("reference", ref.ID()), zap.Error(err))
			c.settle(gen)
			return
		}
		c.ApplyResponse(gen, ref, cands)
	})
}

// settle clears the loading flag of a failed lookup that is still current.
func (c *SimilarityController) settle(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.loading = false
	c.mu.Unlock()
	c.changed()
}

// ApplyResponse stores the breakdowns of a lookup and re-ranks, unless gen is stale.
func (c *SimilarityController) ApplyResponse(gen uint64, ref item.Item, cands []similar.Candidate) bool {
	c.mu.Lock()
	if gen != c.generation || ref.ID() != c.reference.ID() {
		cur := c.generation
		c.mu.Unlock()
		metrics.StaleResponsesTotal.WithLabelValues("similarity").Inc()
		c.logger.Debug("Dropping similarity response", zap.Error(domain.NewStaleResponse(gen, cur)))
		return false
	}

	bd := make(map[string]similar.Candidate, len(cands))
	for _, cand := range cands {
		bd[cand.Item.ID()] = cand
	}
	c.breakdown = bd
	c.loading = false
	c.rerank()
	c.mu.Unlock()

	c.changed()
	return true
}

// rerank ranks every known candidate against the reference. Candidates the
// backend did not score count as zero. Callers hold mu.
func (c *SimilarityController) rerank() {
	if c.reference.IsZero() || c.breakdown == nil {
		return
	}

	cands := make([]similar.Candidate, 0, len(c.corpus)+len(c.breakdown))
	seen := make(map[string]bool, len(c.corpus))
	for _, it := range c.corpus {
		seen[it.ID()] = true
		cand, ok := c.breakdown[it.ID()]
		if !ok {
			cand = similar.Candidate{Item: it}
		}
		cands = append(cands, cand)
	}
	var extra []similar.Candidate
	for id, cand := range c.breakdown {
		if !seen[id] {
			extra = append(extra, cand)
		}
	}
	slices.SortFunc(extra, func(a, b similar.Candidate) int {
		return cmp.Compare(a.Item.ID(), b.Item.ID())
	})
	cands = append(cands, extra...)

	ranked, err := similar.Rank(c.reference, cands, c.weights)
	if err != nil {
		// Weights are validated on entry.
		c.logger.Error("Rank failed", zap.Error(err))
		return
	}
	c.results = similar.Page(ranked, c.pageSize)
}

// Weights returns the current weights.
func (c *SimilarityController) Weights() weights.Vector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weights
}

// Generation returns the current generation.
func (c *SimilarityController) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Snapshot returns a copy of the visible state.
func (c *SimilarityController) Snapshot() SimilaritySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := SimilaritySnapshot{
		Generation: c.generation,
		Weights:    c.weights,
		Results:    slices.Clone(c.results),
		Loading:    c.loading,
	}
	if !c.reference.IsZero() {
		ref := c.reference
		s.Reference = &ref
	}
	return s
}

func (c *SimilarityController) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
