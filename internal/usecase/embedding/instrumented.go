// Package embedding decorates the query embedder with local throttling and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/metrics"
)

// InstrumentedEmbedder wraps Embedder with a local request rate limit and logging.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
// A throttled call fails fast with ErrRateLimited so search falls back to the catalog
// instead of queueing keystrokes behind the provider.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. A non-positive ratePerSec disables throttling.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	ratePerSec float64, burst int, logger *zap.Logger,
) *InstrumentedEmbedder {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	if burst <= 0 {
		burst = 1
	}
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}
}

// Embed checks the rate limit and delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if !p.limiter.Allow() {
		metrics.EmbeddingThrottledTotal.WithLabelValues(p.provider).Inc()
		p.logger.Debug("Embedding request throttled",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", domain.ErrRateLimited)
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}
