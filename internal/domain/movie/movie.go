// Package movie holds a catalog item together with its per-modality embeddings and analysis texts.
package movie

import (
	"fmt"
	"maps"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
)

// Movie is an immutable stored movie. Narrative is required; visual and audio are optional.
type Movie struct {
	item    item.Item
	vectors map[modality.Axis][]float32
	docs    map[modality.Axis]string
}

// New validates and creates a Movie.
func New(it item.Item, vectors map[modality.Axis][]float32, docs map[modality.Axis]string) (Movie, error) {
	if it.IsZero() {
		return Movie{}, fmt.Errorf("movie item is required")
	}
	if len(vectors[modality.Narrative]) == 0 {
		return Movie{}, fmt.Errorf("movie %q: narrative vector is required", it.Title())
	}
	vecs := maps.Clone(vectors)
	for a, v := range vecs {
		if _, err := modality.Parse(string(a)); err != nil {
			return Movie{}, fmt.Errorf("movie %q: %w", it.Title(), err)
		}
		if len(v) == 0 {
			delete(vecs, a)
		}
	}
	return Movie{item: it, vectors: vecs, docs: maps.Clone(docs)}, nil
}

// Reconstruct creates a Movie without validation (storage hydration).
func Reconstruct(it item.Item, vectors map[modality.Axis][]float32, docs map[modality.Axis]string) Movie {
	return Movie{item: it, vectors: vectors, docs: docs}
}

// Item returns the catalog metadata.
func (m Movie) Item() item.Item { return m.item }

// Vector returns the embedding for an axis.
func (m Movie) Vector(a modality.Axis) ([]float32, bool) {
	v, ok := m.vectors[a]
	return v, ok && len(v) > 0
}

// Doc returns the analysis text for an axis.
func (m Movie) Doc(a modality.Axis) (string, bool) {
	d, ok := m.docs[a]
	return d, ok && d != ""
}

// Has reports whether the axis has an embedding.
func (m Movie) Has(a modality.Axis) bool {
	_, ok := m.Vector(a)
	return ok
}

// Compare scores m against other on every axis. An axis missing on either side,
// or with incomparable vectors, gets the missing score.
func (m Movie) Compare(other Movie, missing float64) modality.Score {
	var s modality.Score
	for _, a := range modality.All {
		x, okx := m.Vector(a)
		y, oky := other.Vector(a)
		v := missing
		if okx && oky {
			if sim, ok := modality.Cosine(x, y); ok {
				v = sim
			}
		}
		s = s.With(a, v)
	}
	return s
}
