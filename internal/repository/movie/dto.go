package movie

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/cinesim/internal/db"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	dommovie "github.com/kailas-cloud/cinesim/internal/domain/movie"
)

// Hash field names. Vector fields hold FLOAT32 little-endian blobs.
const (
	fieldID          = "id"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldYear        = "year"
	fieldGenres      = "genres"
	fieldTrailer     = "trailer"

	genreSeparator = "|"
)

// FieldTitle is the TEXT-indexed title field.
const FieldTitle = fieldTitle

// VectorField returns the hash field holding an axis embedding.
func VectorField(a modality.Axis) string { return string(a) + "_vec" }

// DocField returns the hash field holding an axis analysis text.
func DocField(a modality.Axis) string { return string(a) + "_doc" }

// buildHashFields flattens a movie into HSET fields.
func buildHashFields(m dommovie.Movie) map[string]string {
	it := m.Item()
	fields := map[string]string{
		fieldID:    it.ID(),
		fieldTitle: it.Title(),
	}
	if it.Description() != "" {
		fields[fieldDescription] = it.Description()
	}
	if it.Year() > 0 {
		fields[fieldYear] = strconv.Itoa(it.Year())
	}
	if len(it.Genres()) > 0 {
		fields[fieldGenres] = strings.Join(it.Genres(), genreSeparator)
	}
	if it.Trailer() != "" {
		fields[fieldTrailer] = it.Trailer()
	}
	for _, a := range modality.All {
		if v, ok := m.Vector(a); ok {
			fields[VectorField(a)] = db.EncodeVector(v)
		}
		if d, ok := m.Doc(a); ok {
			fields[DocField(a)] = d
		}
	}
	return fields
}

// ItemFields lists the hash fields that carry item metadata.
var ItemFields = []string{fieldID, fieldTitle, fieldDescription, fieldYear, fieldGenres, fieldTrailer}

// ItemFromHash hydrates item metadata. The id falls back to the key suffix.
func ItemFromHash(key string, h map[string]string) (item.Item, error) {
	if len(h) == 0 {
		return item.Item{}, fmt.Errorf("hash %s is empty", key)
	}
	id := h[fieldID]
	if id == "" {
		id = key[strings.LastIndex(key, ":")+1:]
	}
	title := h[fieldTitle]
	if title == "" {
		return item.Item{}, fmt.Errorf("hash %s has no title", key)
	}

	year, _ := strconv.Atoi(h[fieldYear])
	var genres []string
	if g := h[fieldGenres]; g != "" {
		genres = strings.Split(g, genreSeparator)
	}
	return item.Reconstruct(id, title, genres, h[fieldDescription], year, h[fieldTrailer]), nil
}

// parseHashFields hydrates a movie from a hash.
func parseHashFields(key string, h map[string]string) (dommovie.Movie, error) {
	it, err := ItemFromHash(key, h)
	if err != nil {
		return dommovie.Movie{}, err
	}

	vectors := make(map[modality.Axis][]float32, len(modality.All))
	docs := make(map[modality.Axis]string, len(modality.All))
	for _, a := range modality.All {
		v, err := db.DecodeVector(h[VectorField(a)])
		if err != nil {
			return dommovie.Movie{}, fmt.Errorf("hash %s field %s: %w", key, VectorField(a), err)
		}
		if len(v) > 0 {
			vectors[a] = v
		}
		if d := h[DocField(a)]; d != "" {
			docs[a] = d
		}
	}
	if len(vectors[modality.Narrative]) == 0 {
		return dommovie.Movie{}, fmt.Errorf("hash %s has no narrative vector", key)
	}
	return dommovie.Reconstruct(it, vectors, docs), nil
}
