// Package chi serves the cinesim HTTP API on a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/transport/api"
	healthuc "github.com/kailas-cloud/cinesim/internal/usecase/health"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the cinesim API.
type Server struct {
	catalog       Catalog
	search        SearchService
	similarity    SimilarityService
	analysis      AnalysisService
	health        HealthService
	sessions      http.Handler
	logger        *zap.Logger
	validate      *validator.Validate
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. sessions may be nil to disable websocket sessions.
func NewServer(
	catalog Catalog,
	search SearchService,
	similarity SimilarityService,
	analysis AnalysisService,
	health HealthService,
	sessions http.Handler,
	logger *zap.Logger,
) *Server {
	s := &Server{
		catalog:    catalog,
		search:     search,
		similarity: similarity,
		analysis:   analysis,
		health:     health,
		sessions:   sessions,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, api.ErrorCodeNotFound),
		sentinelHandler(domain.ErrInvalidWeights, http.StatusBadRequest, api.ErrorCodeInvalidWeights),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, api.ErrorCodeInvalidQuery),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, api.ErrorCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, api.ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrRemoteUnavailable, http.StatusBadGateway, api.ErrorCodeRemoteUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, api.ErrorCodeIndexUnavailable),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/movies", s.ListMovies)
		r.Get("/search", s.Search)
		r.Post("/similarity", s.Similarity)
		r.Get("/recommend/{title}", s.Recommend)
		r.Post("/recommend/{title}", s.Recommend)
		r.Get("/analysis/{title}", s.Analysis)
		if s.sessions != nil {
			r.Handle("/session/ws", s.sessions)
		}
	})
}

// Handler returns a router serving Routes with JSON 404/405 responses.
func (s *Server) Handler() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, api.ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, api.ErrorCodeBadRequest, "method not allowed")
	})
	s.Routes(r)
	return r
}

// ListMovies handles GET /api/movies.
func (s *Server) ListMovies(w http.ResponseWriter, _ *http.Request) {
	items := s.catalog.Items()
	out := make([]api.Item, len(items))
	for i, it := range items {
		out[i] = api.ItemFromDomain(it)
	}
	writeJSON(w, http.StatusOK, out)
}

// Search handles GET /api/search?q=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, []api.Item{})
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.search.Search(ctx, query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	w.Header().Set("X-Search-Method", string(res.Method))

	out := make([]api.Item, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = api.ItemFromDomain(h.Item).Preview()
	}
	writeJSON(w, http.StatusOK, out)
}

// Similarity handles POST /api/similarity.
func (s *Server) Similarity(w http.ResponseWriter, r *http.Request) {
	var req api.SimilarityRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	wv := weights.Default()
	if req.Weights != nil {
		var err error
		if wv, err = req.Weights.ToDomain(); err != nil {
			s.handleDomainError(w, err)
			return
		}
	}

	results, err := s.similarity.Similarity(r.Context(), req.MovieTitle, wv)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := make([]api.Similarity, len(results))
	for i, res := range results {
		out[i] = api.Similarity{
			Title:        res.Item.Title(),
			Similarity:   res.Overall,
			Similarities: res.Breakdown,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Recommend handles GET|POST /api/recommend/{title}.
// Weights come from the narrative/visual/audio query parameters or the JSON body.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	if strings.TrimSpace(title) == "" {
		writeError(w, http.StatusBadRequest, api.ErrorCodeValidationFailed, "title is required")
		return
	}

	wv, err := s.recommendWeights(w, r)
	if err != nil {
		if !errors.Is(err, errResponded) {
			s.handleDomainError(w, err)
		}
		return
	}

	results, err := s.similarity.Recommend(r.Context(), title, wv)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	out := make([]api.Recommendation, len(results))
	for i, res := range results {
		out[i] = recommendationToAPI(res)
	}
	writeJSON(w, http.StatusOK, out)
}

// errResponded marks an error already written to the client.
var errResponded = errors.New("response written")

func (s *Server) recommendWeights(w http.ResponseWriter, r *http.Request) (weights.Vector, error) {
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		var body api.Weights
		if !s.decodeJSON(w, r, &body) {
			return weights.Vector{}, errResponded
		}
		return body.ToDomain() //nolint:wrapcheck // sentinel-carrying domain error
	}

	q := r.URL.Query()
	if !q.Has("narrative") && !q.Has("visual") && !q.Has("audio") {
		return weights.Default(), nil
	}
	var vals [3]float64
	for i, name := range []string{"narrative", "visual", "audio"} {
		v, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			return weights.Vector{}, fmt.Errorf("%w: %s=%q", domain.ErrInvalidWeights, name, q.Get(name))
		}
		vals[i] = v
	}
	return weights.New(vals[0], vals[1], vals[2]) //nolint:wrapcheck // sentinel-carrying domain error
}

// Analysis handles GET /api/analysis/{title}.
func (s *Server) Analysis(w http.ResponseWriter, r *http.Request) {
	report, err := s.analysis.Get(r.Context(), chi.URLParam(r, "title"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, api.HealthResponse{
		Status:            string(report.Status),
		MoviesCount:       report.MoviesCount,
		DatabaseConnected: report.Checks["database"] == healthuc.CheckOK,
		TextModelLoaded:   report.Checks["embedding"] == healthuc.CheckOK,
		Checks:            checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeJSON decodes and validates a request body. It writes the error response and returns false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			code := api.ErrorCodeValidationFailed
			if strings.HasPrefix(fe.Namespace(), "Weights.") || strings.Contains(fe.Namespace(), ".Weights.") {
				code = api.ErrorCodeInvalidWeights
			}
			writeError(w, http.StatusBadRequest, code,
				fmt.Sprintf("field %s failed %q validation", fe.Field(), fe.Tag()))
			return false
		}
		writeError(w, http.StatusBadRequest, api.ErrorCodeValidationFailed, err.Error())
		return false
	}
	return true
}

func recommendationToAPI(r similar.RankedResult) api.Recommendation {
	tags := make([]api.Tag, len(r.Tags))
	for i, t := range r.Tags {
		tags[i] = api.Tag{Type: t.Type, Label: t.Label, Strength: t.Strength}
	}
	return api.Recommendation{
		Item:         api.ItemFromDomain(r.Item),
		Similarity:   r.Overall,
		Similarities: r.Breakdown,
		Tags:         tags,
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code api.ErrorCode, message string) {
	writeJSON(w, status, api.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidWeights,
		domain.ErrInvalidQuery,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrRemoteUnavailable,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code api.ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError maps a domain error to an HTTP response.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, api.ErrorCodeInternalError, "internal error")
}
