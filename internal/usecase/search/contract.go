package search

import (
	"context"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
)

// Repository defines the storage contract for search operations.
type Repository interface {
	Narrative(ctx context.Context, vector []float32, k int) ([]item.Hit, error)
	TitlePrefix(ctx context.Context, text string, limit int) ([]item.Hit, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ItemSource provides the catalog the fuzzy fallback scans.
type ItemSource interface {
	Items() []item.Item
}

// Matcher scores catalog items against the query.
type Matcher interface {
	Score(query string, corpus []item.Item) []item.Hit
}
