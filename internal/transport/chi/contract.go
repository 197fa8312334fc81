package chi

import (
	"context"

	domanalysis "github.com/kailas-cloud/cinesim/internal/domain/analysis"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	healthuc "github.com/kailas-cloud/cinesim/internal/usecase/health"
	searchuc "github.com/kailas-cloud/cinesim/internal/usecase/search"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

// Catalog lists the browsable items in catalog order.
type Catalog interface {
	Items() []item.Item
}

// SearchService answers /api/search.
type SearchService interface {
	Search(ctx context.Context, query string) (searchuc.Result, error)
}

// SimilarityService answers /api/similarity and /api/recommend.
type SimilarityService interface {
	Similarity(ctx context.Context, ref string, w weights.Vector) ([]similar.RankedResult, error)
	Recommend(ctx context.Context, ref string, w weights.Vector) ([]similar.RankedResult, error)
}

// AnalysisService answers /api/analysis.
type AnalysisService interface {
	Get(ctx context.Context, ref string) (domanalysis.Report, error)
}

// HealthService answers /health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
