// Package search runs narrative KNN and title prefix queries against the movie index.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/db"
	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/repository/movie"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchPrefix(ctx context.Context, q *db.PrefixQuery) (*db.SearchResult, error)
}

// Repo implements the search repository.
type Repo struct {
	store  store
	logger *zap.Logger
}

// New creates a search repository.
func New(s store, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{store: s, logger: logger}
}

// Narrative returns the k movies whose narrative embedding is closest to vector.
// Relevance is 1 - cosine distance, clamped to [0,1].
func (r *Repo) Narrative(ctx context.Context, vector []float32, k int) ([]item.Hit, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    domain.MovieIndexName,
		Field:        movie.VectorField(modality.Narrative),
		Vector:       vector,
		K:            k,
		ReturnFields: movie.ItemFields,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w: %w", domain.ErrIndexUnavailable, err)
	}
	return r.toHits(res, true), nil
}

// TitlePrefix returns up to limit movies whose title contains words starting with the query words.
func (r *Repo) TitlePrefix(ctx context.Context, text string, limit int) ([]item.Hit, error) {
	res, err := r.store.SearchPrefix(ctx, &db.PrefixQuery{
		IndexName:    domain.MovieIndexName,
		Field:        movie.FieldTitle,
		Prefix:       text,
		Limit:        limit,
		ReturnFields: movie.ItemFields,
	})
	if err != nil {
		return nil, fmt.Errorf("prefix search: %w: %w", domain.ErrIndexUnavailable, err)
	}
	return r.toHits(res, false), nil
}

func (r *Repo) toHits(res *db.SearchResult, scored bool) []item.Hit {
	if res == nil {
		return []item.Hit{}
	}
	hits := make([]item.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		it, err := movie.ItemFromHash(e.Key, e.Fields)
		if err != nil {
			r.logger.Warn("Skipping malformed search hit", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		rel := 1.0
		if scored {
			rel = min(1, max(0, e.Score))
		}
		hits = append(hits, item.Hit{Item: it, Relevance: rel})
	}
	return hits
}
