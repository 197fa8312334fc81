package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinesim/internal/domain"
	domanalysis "github.com/kailas-cloud/cinesim/internal/domain/analysis"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/transport/api"
	healthuc "github.com/kailas-cloud/cinesim/internal/usecase/health"
	searchuc "github.com/kailas-cloud/cinesim/internal/usecase/search"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

// --- Mocks ---

type stubCatalog struct{ items []item.Item }

func (c stubCatalog) Items() []item.Item { return c.items }

type stubSearch struct {
	result searchuc.Result
	err    error
	tokens int
	calls  int
}

func (s *stubSearch) Search(ctx context.Context, _ string) (searchuc.Result, error) {
	s.calls++
	if s.tokens > 0 {
		domain.UsageFromContext(ctx).AddTokens(s.tokens)
	}
	return s.result, s.err
}

type stubSimilarity struct {
	results []similar.RankedResult
	err     error
	gotRef  string
	gotW    weights.Vector
}

func (s *stubSimilarity) Similarity(_ context.Context, ref string, w weights.Vector) ([]similar.RankedResult, error) {
	s.gotRef, s.gotW = ref, w
	return s.results, s.err
}

func (s *stubSimilarity) Recommend(_ context.Context, ref string, w weights.Vector) ([]similar.RankedResult, error) {
	s.gotRef, s.gotW = ref, w
	return s.results, s.err
}

type stubAnalysis struct {
	report domanalysis.Report
	err    error
}

func (s stubAnalysis) Get(_ context.Context, _ string) (domanalysis.Report, error) {
	return s.report, s.err
}

type stubHealth struct{ report healthuc.Report }

func (s stubHealth) Check(_ context.Context) healthuc.Report { return s.report }

type fixture struct {
	search     *stubSearch
	similarity *stubSimilarity
	analysis   stubAnalysis
	health     stubHealth
	catalog    stubCatalog
}

func newFixture() *fixture {
	return &fixture{
		search:     &stubSearch{},
		similarity: &stubSimilarity{},
		health: stubHealth{report: healthuc.Report{
			Status:      healthuc.Healthy,
			Checks:      map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "corpus": healthuc.CheckOK},
			MoviesCount: 3,
		}},
	}
}

func (f *fixture) handler() http.Handler {
	s := NewServer(f.catalog, f.search, f.similarity, f.analysis, f.health, nil, zap.NewNop())
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var e api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

func ranked(title string, overall float64, s modality.Score) similar.RankedResult {
	return similar.RankedResult{
		Item:      item.Reconstruct(item.Slug(title), title, []string{"Drama"}, "desc", 2001, ""),
		Overall:   overall,
		Breakdown: s,
	}
}

// --- Tests ---

func TestListMovies(t *testing.T) {
	f := newFixture()
	f.catalog.items = []item.Item{
		item.Reconstruct("heat", "Heat", []string{"Crime"}, "LA heist", 1995, "https://youtu.be/x"),
		item.Reconstruct("up", "Up", nil, "", 0, ""),
	}

	rr := do(t, f.handler(), http.MethodGet, "/api/movies", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var got []api.Item
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Title != "Heat" || got[0].YouTubeLink != "https://youtu.be/x" {
		t.Errorf("unexpected movies: %+v", got)
	}
	if got[1].Genres == nil {
		t.Error("genres must encode as an empty list, not null")
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture()
	rr := do(t, f.handler(), http.MethodGet, "/api/search?q=%20%20", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", rr.Body.String())
	}
	if f.search.calls != 0 {
		t.Errorf("empty query must not reach the service, got %d calls", f.search.calls)
	}
}

func TestSearch_TruncatesDescriptionAndSetsHeaders(t *testing.T) {
	f := newFixture()
	long := strings.Repeat("é", 250)
	f.search.result = searchuc.Result{
		Method: searchuc.MethodHybrid,
		Hits: []item.Hit{
			{Item: item.Reconstruct("heat", "Heat", nil, long, 1995, ""), Relevance: 1},
			{Item: item.Reconstruct("ronin", "Ronin", nil, "short", 1998, ""), Relevance: 0.5},
		},
	}
	f.search.tokens = 7

	rr := do(t, f.handler(), http.MethodGet, "/api/search?q=heist", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "7" {
		t.Errorf("X-Embedding-Tokens: got %q, want 7", got)
	}
	if got := rr.Header().Get("X-Search-Method"); got != "hybrid" {
		t.Errorf("X-Search-Method: got %q, want hybrid", got)
	}

	var got []api.Item
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if want := strings.Repeat("é", 200) + "..."; got[0].Description != want {
		t.Errorf("description not truncated to 200 runes: %d runes", len([]rune(got[0].Description)))
	}
	if got[1].Description != "short" {
		t.Errorf("short description changed: %q", got[1].Description)
	}
}

func TestSearch_ProviderError(t *testing.T) {
	f := newFixture()
	f.search.err = fmt.Errorf("embed: %w", domain.ErrEmbeddingProviderError)

	rr := do(t, f.handler(), http.MethodGet, "/api/search?q=heist", "")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != api.ErrorCodeEmbeddingProviderError {
		t.Errorf("code: got %s", e.Code)
	}
}

func TestSimilarity_DefaultWeights(t *testing.T) {
	f := newFixture()
	f.similarity.results = []similar.RankedResult{
		ranked("Ronin", 0.9, modality.Score{Narrative: 1, Visual: 0.8, Audio: 0.8}),
	}

	rr := do(t, f.handler(), http.MethodPost, "/api/similarity", `{"movie_title":"Heat"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if f.similarity.gotRef != "Heat" {
		t.Errorf("ref: got %q", f.similarity.gotRef)
	}
	if !f.similarity.gotW.Equal(weights.Default()) {
		t.Errorf("expected default weights, got %v", f.similarity.gotW)
	}

	var got []api.Similarity
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Ronin" || got[0].Similarity != 0.9 || got[0].Similarities.Visual != 0.8 {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestSimilarity_CustomWeights(t *testing.T) {
	f := newFixture()
	f.similarity.results = []similar.RankedResult{}

	body := `{"movie_title":"Heat","weights":{"narrative":0.2,"visual":0.3,"audio":0.5}}`
	rr := do(t, f.handler(), http.MethodPost, "/api/similarity", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	want := weights.Reconstruct(0.2, 0.3, 0.5)
	if !f.similarity.gotW.Equal(want) {
		t.Errorf("weights: got %v, want %v", f.similarity.gotW, want)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", rr.Body.String())
	}
}

func TestSimilarity_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code api.ErrorCode
	}{
		{"malformed json", `{"movie_title":`, api.ErrorCodeBadRequest},
		{"missing title", `{"weights":{"narrative":1,"visual":0,"audio":0}}`, api.ErrorCodeValidationFailed},
		{"weight out of range", `{"movie_title":"Heat","weights":{"narrative":1.5,"visual":0,"audio":0}}`,
			api.ErrorCodeInvalidWeights},
		{"weights off simplex", `{"movie_title":"Heat","weights":{"narrative":0.5,"visual":0.5,"audio":0.5}}`,
			api.ErrorCodeInvalidWeights},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rr := do(t, f.handler(), http.MethodPost, "/api/similarity", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", rr.Code)
			}
			if e := decodeError(t, rr); e.Code != tt.code {
				t.Errorf("code: got %s, want %s", e.Code, tt.code)
			}
		})
	}
}

func TestRecommend_QueryWeights(t *testing.T) {
	f := newFixture()
	res := ranked("Ronin", 0.85, modality.Score{Narrative: 0.9, Visual: 0.8, Audio: 0.8})
	res.Tags = []similar.Tag{{Type: similar.TagCombined, Label: "Highly recommended match (85%)", Strength: 0.85}}
	f.similarity.results = []similar.RankedResult{res}

	rr := do(t, f.handler(), http.MethodGet, "/api/recommend/Heat?narrative=0.6&visual=0.2&audio=0.2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if f.similarity.gotRef != "Heat" {
		t.Errorf("ref: got %q", f.similarity.gotRef)
	}
	if !f.similarity.gotW.Equal(weights.Reconstruct(0.6, 0.2, 0.2)) {
		t.Errorf("weights: got %v", f.similarity.gotW)
	}

	var got []api.Recommendation
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Ronin" || got[0].Year != 2001 {
		t.Fatalf("unexpected body: %+v", got)
	}
	if len(got[0].Tags) != 1 || got[0].Tags[0].Type != similar.TagCombined {
		t.Errorf("unexpected tags: %+v", got[0].Tags)
	}
}

func TestRecommend_BodyWeights(t *testing.T) {
	f := newFixture()
	f.similarity.results = []similar.RankedResult{}

	rr := do(t, f.handler(), http.MethodPost, "/api/recommend/Heat", `{"narrative":0,"visual":1,"audio":0}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if !f.similarity.gotW.Equal(weights.Reconstruct(0, 1, 0)) {
		t.Errorf("weights: got %v", f.similarity.gotW)
	}
}

func TestRecommend_DefaultWeightsWithoutParams(t *testing.T) {
	f := newFixture()
	f.similarity.results = []similar.RankedResult{}

	rr := do(t, f.handler(), http.MethodGet, "/api/recommend/Heat", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !f.similarity.gotW.Equal(weights.Default()) {
		t.Errorf("expected default weights, got %v", f.similarity.gotW)
	}
}

func TestRecommend_Errors(t *testing.T) {
	t.Run("unknown title", func(t *testing.T) {
		f := newFixture()
		f.similarity.err = fmt.Errorf("movie %q: %w", "Nope", domain.ErrNotFound)
		rr := do(t, f.handler(), http.MethodGet, "/api/recommend/Nope", "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status: got %d, want 404", rr.Code)
		}
		if e := decodeError(t, rr); e.Code != api.ErrorCodeNotFound || e.Message != "not found" {
			t.Errorf("unexpected error: %+v", e)
		}
	})

	t.Run("unparsable weight", func(t *testing.T) {
		f := newFixture()
		rr := do(t, f.handler(), http.MethodGet, "/api/recommend/Heat?narrative=abc&visual=0&audio=0", "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status: got %d, want 400", rr.Code)
		}
		if e := decodeError(t, rr); e.Code != api.ErrorCodeInvalidWeights {
			t.Errorf("code: got %s", e.Code)
		}
	})

	t.Run("internal error hides details", func(t *testing.T) {
		f := newFixture()
		f.similarity.err = errors.New("redis: connection refused")
		rr := do(t, f.handler(), http.MethodGet, "/api/recommend/Heat", "")
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status: got %d, want 500", rr.Code)
		}
		if e := decodeError(t, rr); e.Code != api.ErrorCodeInternalError || e.Message != "internal error" {
			t.Errorf("unexpected error: %+v", e)
		}
	})

	t.Run("corpus unavailable", func(t *testing.T) {
		f := newFixture()
		f.similarity.err = fmt.Errorf("load corpus: %w: %w", domain.ErrIndexUnavailable, errors.New("dial tcp"))
		rr := do(t, f.handler(), http.MethodGet, "/api/recommend/Heat", "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status: got %d, want 503", rr.Code)
		}
		if e := decodeError(t, rr); e.Code != api.ErrorCodeIndexUnavailable {
			t.Errorf("code: got %s", e.Code)
		}
	})
}

func TestAnalysis(t *testing.T) {
	f := newFixture()
	f.analysis.report = domanalysis.Report{
		Title:     "Heat",
		Narrative: domanalysis.Modality{Available: true, Features: []domanalysis.Feature{{Type: "mood", Value: "tense"}}},
	}

	rr := do(t, f.handler(), http.MethodGet, "/api/analysis/Heat", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var got domanalysis.Report
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "Heat" || !got.Narrative.Available || len(got.Narrative.Features) != 1 {
		t.Errorf("unexpected report: %+v", got)
	}

	f.analysis.err = domain.ErrNotFound
	rr = do(t, f.handler(), http.MethodGet, "/api/analysis/Nope", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown title: got %d, want 404", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()
	rr := do(t, f.handler(), http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var got api.HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ok" || got.MoviesCount != 3 || !got.DatabaseConnected || got.TextModelLoaded {
		t.Errorf("unexpected health: %+v", got)
	}

	f.health.report = healthuc.Report{
		Status: healthuc.Unhealthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError, "corpus": healthuc.CheckError},
	}
	rr = do(t, f.handler(), http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy: got %d, want 503", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture()
	rr := do(t, f.handler(), http.MethodGet, "/api/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != api.ErrorCodeNotFound {
		t.Errorf("code: got %s", e.Code)
	}

	rr = do(t, f.handler(), http.MethodDelete, "/api/movies", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("method: got %d, want 405", rr.Code)
	}
}

func TestSessionsRouteMounted(t *testing.T) {
	f := newFixture()
	called := false
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})
	h := NewServer(f.catalog, f.search, f.similarity, f.analysis, f.health, ws, zap.NewNop()).Handler()

	rr := do(t, h, http.MethodGet, "/api/session/ws", "")
	if !called || rr.Code != http.StatusTeapot {
		t.Errorf("session handler not mounted: called=%v code=%d", called, rr.Code)
	}
}
