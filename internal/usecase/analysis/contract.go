package analysis

import (
	"context"

	dommovie "github.com/kailas-cloud/cinesim/internal/domain/movie"
)

// MovieLookup resolves a movie by title or id.
type MovieLookup interface {
	Lookup(ctx context.Context, ref string) (dommovie.Movie, error)
}
