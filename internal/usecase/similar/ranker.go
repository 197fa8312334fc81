package similar

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
)

// DefaultPageSize is the number of ranked results shown at once.
const DefaultPageSize = 12

// Candidate is an item with its modality scores against the current reference.
type Candidate struct {
	Item  item.Item
	Score modality.Score
}

// RankedResult is a candidate with its blended score.
type RankedResult struct {
	Item      item.Item
	Overall   float64
	Breakdown modality.Score
	Tags      []Tag
}

// Rank blends candidate scores with w and orders them best first.
// The reference is excluded by id. Equal scores keep input order. Scores are not clamped.
func Rank(reference item.Item, candidates []Candidate, w weights.Vector) ([]RankedResult, error) {
	if err := weights.Validate(w); err != nil {
		return nil, err //nolint:wrapcheck // sentinel-carrying domain error
	}

	out := make([]RankedResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Item.ID() == reference.ID() {
			continue
		}
		out = append(out, RankedResult{
			Item:      c.Item,
			Overall:   w.Blend(c.Score),
			Breakdown: c.Score,
		})
	}

	slices.SortStableFunc(out, func(a, b RankedResult) int {
		return cmp.Compare(b.Overall, a.Overall)
	})
	return out, nil
}

// Page truncates results to the first n. A non-positive n returns them all.
func Page(results []RankedResult, n int) []RankedResult {
	if n <= 0 || len(results) <= n {
		return results
	}
	return results[:n]
}
