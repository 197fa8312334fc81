package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/transport/api"
)

// --- Mocks ---

type mapResolver map[string]item.Item

func (m mapResolver) ByTitle(title string) (item.Item, bool) {
	it, ok := m[title]
	return it, ok
}

func newClient(t *testing.T, h http.HandlerFunc, resolver TitleResolver) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", APIKey: "secret"}, resolver, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, srv
}

// --- Tests ---

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "not a url", "http://"} {
		if _, err := New(Config{BaseURL: u}, nil, nil); err == nil {
			t.Errorf("expected error for base url %q", u)
		}
	}
}

func TestSearch(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "the heat" {
			t.Errorf("query: got %q", q)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("authorization: got %q", auth)
		}
		_ = json.NewEncoder(w).Encode([]api.Item{
			{ID: "heat", Title: "Heat", Year: 1995, Genres: []string{"Crime"}},
			{Title: "Heat Wave"},
			{Title: ""}, // malformed, skipped
		})
	}, nil)

	items, err := c.Search(context.Background(), "the heat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID() != "heat" || items[0].Year() != 1995 {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].ID() != "heat-wave" {
		t.Errorf("expected slug id, got %q", items[1].ID())
	}
}

func TestSearch_EmptyQuerySkipsRequest(t *testing.T) {
	called := false
	c, _ := newClient(t, func(w http.ResponseWriter, _ *http.Request) { called = true }, nil)

	items, err := c.Search(context.Background(), "  ")
	if err != nil || len(items) != 0 {
		t.Fatalf("expected no items and no error, got %v, %v", items, err)
	}
	if called {
		t.Error("empty query must not hit the remote")
	}
}

func TestBreakdown(t *testing.T) {
	heathers := item.Reconstruct("tt0097493", "Heathers", nil, "", 1989, "")
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/similarity" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req api.SimilarityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.MovieTitle != "Heat" || req.Weights == nil || req.Weights.Visual != 0.35 {
			t.Errorf("unexpected request body: %+v", req)
		}
		_ = json.NewEncoder(w).Encode([]api.Similarity{
			{Title: "Heathers", Similarity: 0.5, Similarities: modality.Score{Narrative: 0.5, Visual: 0.5, Audio: 0.5}},
			{Title: "Ronin", Similarity: 0.9, Similarities: modality.Score{Narrative: 0.9, Visual: 0.9, Audio: 0.9}},
			{Title: "Broken", Similarity: 2, Similarities: modality.Score{Narrative: 2}},
		})
	}, mapResolver{"Heathers": heathers})

	ref := item.Reconstruct("heat", "Heat", nil, "", 1995, "")
	cands, err := c.Breakdown(context.Background(), ref, weights.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates (invalid score skipped), got %d", len(cands))
	}
	if cands[0].Item.ID() != "tt0097493" {
		t.Errorf("expected resolved catalog id, got %q", cands[0].Item.ID())
	}
	if cands[1].Item.ID() != "ronin" || cands[1].Score.Audio != 0.9 {
		t.Errorf("unexpected second candidate: %+v", cands[1])
	}
}

func TestFailuresAreRemoteUnavailable(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		rateLimited bool
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Code: api.ErrorCodeInternalError})
		}, false},
		{"rate limited", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}, true},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newClient(t, tt.handler, nil)
			_, err := c.Search(context.Background(), "heat")
			if !errors.Is(err, domain.ErrRemoteUnavailable) {
				t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
			}
			if got := errors.Is(err, domain.ErrRateLimited); got != tt.rateLimited {
				t.Errorf("ErrRateLimited: got %v, want %v", got, tt.rateLimited)
			}
		})
	}
}

func TestUnreachable(t *testing.T) {
	c, srv := newClient(t, func(http.ResponseWriter, *http.Request) {}, nil)
	srv.Close()

	_, err := c.Breakdown(context.Background(), item.Reconstruct("heat", "Heat", nil, "", 0, ""), weights.Default())
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected ErrRemoteUnavailable, got %v", err)
	}
}

func TestLocalRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, RatePerSec: 0.001, Burst: 1}, nil, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Search(context.Background(), "heat"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "heat")
	if !errors.Is(err, domain.ErrRateLimited) || !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected rate-limited remote failure, got %v", err)
	}
}
