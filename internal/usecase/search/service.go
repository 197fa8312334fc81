// Package search answers search-as-you-type lookups: narrative KNN fused with title
// prefix matches, degrading to fuzzy catalog matching when the index is unavailable.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
)

// DefaultMaxResults caps every search response.
const DefaultMaxResults = 10

// Method tells which strategy produced a result.
type Method string

const (
	// MethodHybrid is narrative KNN fused with title prefix matches.
	MethodHybrid Method = "hybrid"
	// MethodPrefix is title prefix matching only (no embedder).
	MethodPrefix Method = "prefix"
	// MethodFuzzy is the in-process catalog fallback.
	MethodFuzzy Method = "fuzzy"
	// MethodNone marks an empty query.
	MethodNone Method = "none"
)

// Result is a capped, ordered search result.
type Result struct {
	Hits   []item.Hit
	Method Method
}

// Service handles title and description search.
type Service struct {
	repo    Repository
	embed   Embedder // nil disables semantic search
	catalog ItemSource
	matcher Matcher
	limit   int
	logger  *zap.Logger
}

// New creates a search service. embed may be nil.
func New(repo Repository, embed Embedder, catalog ItemSource, matcher Matcher, limit int, logger *zap.Logger) *Service {
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	return &Service{repo: repo, embed: embed, catalog: catalog, matcher: matcher, limit: limit, logger: logger}
}

// Search returns at most the configured number of hits. An empty query returns no hits.
// Index and embedder failures are logged and answered from the catalog.
func (s *Service) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Hits: []item.Hit{}, Method: MethodNone}, nil
	}

	hits, method, err := s.searchIndex(ctx, query)
	if err != nil {
		s.logger.Warn("Index search failed, falling back to catalog match",
			zap.String("query", query), zap.Error(err))
	}
	if err == nil && len(hits) > 0 {
		return Result{Hits: hits, Method: method}, nil
	}

	fuzzy := s.matcher.Score(query, s.catalog.Items())
	if len(fuzzy) > s.limit {
		fuzzy = fuzzy[:s.limit]
	}
	return Result{Hits: fuzzy, Method: MethodFuzzy}, nil
}

// searchIndex runs KNN and prefix queries in parallel and fuses them.
func (s *Service) searchIndex(ctx context.Context, query string) ([]item.Hit, Method, error) {
	if s.embed == nil {
		hits, err := s.repo.TitlePrefix(ctx, query, s.limit)
		if err != nil {
			return nil, MethodPrefix, fmt.Errorf("title prefix: %w", err)
		}
		return hits, MethodPrefix, nil
	}

	var knn, prefix []item.Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		emb, err := s.embed.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("vectorize query: %w: %w", domain.ErrEmbeddingProviderError, err)
		}
		domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

		knn, err = s.repo.Narrative(gctx, emb.Embedding, s.limit)
		if err != nil {
			return fmt.Errorf("narrative knn: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		prefix, err = s.repo.TitlePrefix(gctx, query, s.limit)
		if err != nil {
			return fmt.Errorf("title prefix: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, MethodHybrid, err //nolint:wrapcheck // wrapped inside the group
	}
	return fuseRRF(knn, prefix, s.limit), MethodHybrid, nil
}
