package movie

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/cinesim/internal/db"
	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
)

// HNSW build parameters for the narrative field.
const (
	hnswM  = 16
	hnswEF = 200
)

type indexStore interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// BuildIndex returns the FT index over stored movies: title text, genres, year and the narrative vector.
func BuildIndex(dims int, distance db.DistanceMetric) (*db.IndexDefinition, error) {
	def, err := db.NewIndex(domain.MovieIndexName).
		Prefix(domain.MovieKeyPrefix).
		Text(fieldTitle).
		Tag(fieldGenres, genreSeparator).
		Numeric(fieldYear).
		VectorHNSW(VectorField(modality.Narrative), dims, distance, hnswM, hnswEF).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build movie index: %w", err)
	}
	return def, nil
}

// EnsureIndex creates the movie index unless it already exists.
func EnsureIndex(ctx context.Context, s indexStore, dims int, distance db.DistanceMetric) (created bool, err error) {
	exists, err := s.IndexExists(ctx, domain.MovieIndexName)
	if err != nil {
		return false, fmt.Errorf("check movie index: %w", err)
	}
	if exists {
		return false, nil
	}

	def, err := BuildIndex(dims, distance)
	if err != nil {
		return false, err
	}
	if err := s.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create movie index: %w", err)
	}
	return true, nil
}
