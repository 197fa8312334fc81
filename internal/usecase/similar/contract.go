package similar

import (
	"context"

	dommovie "github.com/kailas-cloud/cinesim/internal/domain/movie"
)

// MovieLoader reads the whole scored corpus.
type MovieLoader interface {
	LoadAll(ctx context.Context) ([]dommovie.Movie, error)
}
