package session

import (
	"context"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

// SearchBackend is the authoritative (slow) search lookup.
type SearchBackend interface {
	Search(ctx context.Context, query string) ([]item.Item, error)
}

// SimilarityBackend returns modality breakdowns of candidates against a reference.
// It may return only a subset of the corpus.
type SimilarityBackend interface {
	Breakdown(ctx context.Context, reference item.Item, w weights.Vector) ([]similar.Candidate, error)
}

// LocalMatcher is the synchronous fuzzy index.
type LocalMatcher interface {
	Match(query string, corpus []item.Item) []item.Item
}

// Spawner runs an async task. Sessions use it to track in-flight lookups.
type Spawner func(task func())

func goSpawn(task func()) { go task() }
