// Package analysis serves per-movie modality breakdowns parsed from stored analysis texts.
package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	domanalysis "github.com/kailas-cloud/cinesim/internal/domain/analysis"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
)

// DefaultTTL is how long a built report is served from memory.
const DefaultTTL = 10 * time.Minute

// Service builds analysis reports and keeps them in a TTL cache.
type Service struct {
	movies MovieLookup
	cache  *cache.Cache
}

// New creates an analysis service. A non-positive ttl uses DefaultTTL.
func New(movies MovieLookup, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{movies: movies, cache: cache.New(ttl, 2*ttl)}
}

// Get returns the analysis of the movie with the given title or id.
// Unknown movies yield domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, ref string) (domanalysis.Report, error) {
	key := strings.ToLower(strings.TrimSpace(ref))
	if v, ok := s.cache.Get(key); ok {
		return v.(domanalysis.Report), nil //nolint:forcetypeassert // only Reports are stored
	}

	m, err := s.movies.Lookup(ctx, ref)
	if err != nil {
		return domanalysis.Report{}, err //nolint:wrapcheck // lookup errors carry the reference
	}

	texts := make(map[modality.Axis]string, len(modality.All))
	available := make(map[modality.Axis]bool, len(modality.All))
	for _, a := range modality.All {
		if d, ok := m.Doc(a); ok {
			texts[a] = d
		}
		available[a] = m.Has(a)
	}

	report := domanalysis.Build(m.Item().Title(), texts, available)
	s.cache.SetDefault(key, report)
	return report, nil
}

// Flush drops every cached report.
func (s *Service) Flush() { s.cache.Flush() }
