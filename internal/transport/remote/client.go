// Package remote calls an external cinesim backend on behalf of interactive sessions.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/transport/api"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

// maxResponseBytes bounds decoded response bodies.
const maxResponseBytes = 8 << 20

// TitleResolver maps a returned title onto a known item.
type TitleResolver interface {
	ByTitle(title string) (item.Item, bool)
}

// Config holds remote backend settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// Client implements the session search and similarity backends over HTTP.
type Client struct {
	baseURL  *url.URL
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	resolver TitleResolver
	logger   *zap.Logger
}

// New creates a remote client. resolver may be nil.
func New(cfg Config, resolver TitleResolver, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: u,
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		resolver: resolver,
		logger:   logger,
	}, nil
}

// Search calls GET /api/search. An empty query returns no items without a request.
func (c *Client) Search(ctx context.Context, query string) ([]item.Item, error) {
	if strings.TrimSpace(query) == "" {
		return []item.Item{}, nil
	}

	var body []api.Item
	if err := c.do(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil, &body); err != nil {
		return nil, err
	}

	items := make([]item.Item, 0, len(body))
	for _, it := range body {
		d, err := c.resolve(it)
		if err != nil {
			c.logger.Debug("skipping malformed remote item", zap.String("title", it.Title), zap.Error(err))
			continue
		}
		items = append(items, d)
	}
	return items, nil
}

// Breakdown calls POST /api/similarity. The remote backend returns only its top
// candidates; the caller scores the rest as zero.
func (c *Client) Breakdown(ctx context.Context, reference item.Item, w weights.Vector) ([]similar.Candidate, error) {
	ww := api.WeightsFromDomain(w)
	req := api.SimilarityRequest{MovieTitle: reference.Title(), Weights: &ww}

	var body []api.Similarity
	if err := c.do(ctx, http.MethodPost, "/api/similarity", req, &body); err != nil {
		return nil, err
	}

	cands := make([]similar.Candidate, 0, len(body))
	for _, s := range body {
		if !s.Similarities.Valid() {
			c.logger.Debug("skipping invalid remote score", zap.String("title", s.Title))
			continue
		}
		it, err := c.resolve(api.Item{Title: s.Title})
		if err != nil {
			c.logger.Debug("skipping malformed remote title", zap.String("title", s.Title), zap.Error(err))
			continue
		}
		cands = append(cands, similar.Candidate{Item: it, Score: s.Similarities})
	}
	return cands, nil
}

// resolve prefers the locally known item with the same title.
func (c *Client) resolve(it api.Item) (item.Item, error) {
	if c.resolver != nil {
		if known, ok := c.resolver.ByTitle(it.Title); ok {
			return known, nil
		}
	}
	return it.ToDomain()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w: %w", domain.ErrRemoteUnavailable, domain.ErrRateLimited, err)
	}

	var reqBody io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reqBody)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", domain.ErrRemoteUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrRemoteUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		_ = json.NewDecoder(body).Decode(&e)
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w: status %d", domain.ErrRemoteUnavailable, domain.ErrRateLimited, resp.StatusCode)
		}
		return fmt.Errorf("%w: %s %s: status %d %s", domain.ErrRemoteUnavailable, method, path, resp.StatusCode, e.Code)
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", domain.ErrRemoteUnavailable, path, err)
	}
	return nil
}
