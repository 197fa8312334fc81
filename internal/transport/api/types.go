// Package api holds the JSON wire types shared by the HTTP server and the remote client.
package api

import (
	"unicode/utf8"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeNotFound               ErrorCode = "not_found"
	ErrorCodeInvalidWeights         ErrorCode = "invalid_weights"
	ErrorCodeInvalidQuery           ErrorCode = "invalid_query"
	ErrorCodeRateLimited            ErrorCode = "rate_limited"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeRemoteUnavailable      ErrorCode = "remote_unavailable"
	ErrorCodeIndexUnavailable       ErrorCode = "index_unavailable"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DescriptionPreview is the longest description (in runes) returned by search.
const DescriptionPreview = 200

// Item is a catalog item on the wire.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	YouTubeLink string   `json:"youtube_link"`
	Genres      []string `json:"genres"`
	Year        int      `json:"year,omitempty"`
}

// ItemFromDomain converts a domain item.
func ItemFromDomain(it item.Item) Item {
	genres := it.Genres()
	if genres == nil {
		genres = []string{}
	}
	return Item{
		ID:          it.ID(),
		Title:       it.Title(),
		Description: it.Description(),
		YouTubeLink: it.Trailer(),
		Genres:      genres,
		Year:        it.Year(),
	}
}

// Preview returns a copy with the description cut to DescriptionPreview runes plus "...".
func (i Item) Preview() Item {
	if utf8.RuneCountInString(i.Description) > DescriptionPreview {
		i.Description = string([]rune(i.Description)[:DescriptionPreview]) + "..."
	}
	return i
}

// ToDomain rebuilds a domain item. Items without an id get one derived from the title.
func (i Item) ToDomain() (item.Item, error) {
	return item.New(i.ID, i.Title, i.Genres, i.Description, i.Year, i.YouTubeLink) //nolint:wrapcheck // domain validation error
}

// Weights is a weight vector on the wire.
type Weights struct {
	Narrative float64 `json:"narrative" validate:"gte=0,lte=1"`
	Visual    float64 `json:"visual" validate:"gte=0,lte=1"`
	Audio     float64 `json:"audio" validate:"gte=0,lte=1"`
}

// WeightsFromDomain converts a domain weight vector.
func WeightsFromDomain(w weights.Vector) Weights {
	return Weights{Narrative: w.Narrative(), Visual: w.Visual(), Audio: w.Audio()}
}

// ToDomain validates the simplex invariant.
func (w Weights) ToDomain() (weights.Vector, error) {
	return weights.New(w.Narrative, w.Visual, w.Audio) //nolint:wrapcheck // sentinel-carrying domain error
}

// SimilarityRequest is the body of POST /api/similarity.
type SimilarityRequest struct {
	MovieTitle string   `json:"movie_title" validate:"required,max=512"`
	Weights    *Weights `json:"weights,omitempty"`
}

// Similarity is one entry of the /api/similarity response.
type Similarity struct {
	Title        string         `json:"title"`
	Similarity   float64        `json:"similarity"`
	Similarities modality.Score `json:"similarities"`
}

// Tag explains why a recommendation matched.
type Tag struct {
	Type     string  `json:"type"`
	Label    string  `json:"label"`
	Strength float64 `json:"strength"`
}

// Recommendation is one entry of the /api/recommend response.
type Recommendation struct {
	Item
	Similarity   float64        `json:"similarity"`
	Similarities modality.Score `json:"similarities"`
	Tags         []Tag          `json:"tags"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string            `json:"status"`
	MoviesCount       int               `json:"movies_count"`
	DatabaseConnected bool              `json:"database_connected"`
	TextModelLoaded   bool              `json:"text_model_loaded"`
	Checks            map[string]string `json:"checks"`
}
