package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/usecase/search"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

type searchService interface {
	Search(ctx context.Context, query string) (search.Result, error)
}

// InProcessSearch serves SearchBackend from the local search service.
type InProcessSearch struct {
	svc searchService
}

// NewInProcessSearch creates an in-process search backend.
func NewInProcessSearch(svc searchService) *InProcessSearch {
	return &InProcessSearch{svc: svc}
}

// Search implements SearchBackend.
func (b *InProcessSearch) Search(ctx context.Context, query string) ([]item.Item, error) {
	res, err := b.svc.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	items := make([]item.Item, len(res.Hits))
	for i, h := range res.Hits {
		items[i] = h.Item
	}
	return items, nil
}

type breakdownService interface {
	Breakdown(ctx context.Context, ref string) (item.Item, []similar.Candidate, error)
}

// InProcessSimilarity serves SimilarityBackend from the local similarity service.
// Breakdowns do not depend on weights, so every candidate is returned.
type InProcessSimilarity struct {
	svc breakdownService
}

// NewInProcessSimilarity creates an in-process similarity backend.
func NewInProcessSimilarity(svc breakdownService) *InProcessSimilarity {
	return &InProcessSimilarity{svc: svc}
}

// Breakdown implements SimilarityBackend. A reference without stored vectors yields no candidates.
func (b *InProcessSimilarity) Breakdown(
	ctx context.Context, reference item.Item, _ weights.Vector,
) ([]similar.Candidate, error) {
	_, cands, err := b.svc.Breakdown(ctx, reference.ID())
	if errors.Is(err, domain.ErrNotFound) {
		_, cands, err = b.svc.Breakdown(ctx, reference.Title())
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return []similar.Candidate{}, nil
	case err != nil:
		return nil, fmt.Errorf("breakdown %s: %w", reference.ID(), err)
	}
	return cands, nil
}
