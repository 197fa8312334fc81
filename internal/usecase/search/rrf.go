package search

import (
	"cmp"
	"slices"

	"github.com/kailas-cloud/cinesim/internal/domain/item"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges narrative KNN and title prefix hits via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) over the lists containing d, scaled so that
// a document ranked first in both lists has relevance 1. Equal scores keep KNN order.
func fuseRRF(knn, prefix []item.Hit, topK int) []item.Hit {
	type scored struct {
		hit   item.Hit
		score float64
		order int
	}

	merged := make(map[string]*scored, len(knn)+len(prefix))
	var order []*scored
	add := func(hits []item.Hit) {
		for rank, h := range hits {
			s := 1.0 / float64(rrfK+rank+1)
			if existing, ok := merged[h.Item.ID()]; ok {
				existing.score += s
				continue
			}
			e := &scored{hit: h, score: s, order: len(order)}
			merged[h.Item.ID()] = e
			order = append(order, e)
		}
	}
	add(knn)
	add(prefix)

	slices.SortStableFunc(order, func(a, b *scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return a.order - b.order
	})

	const best = 2.0 / (rrfK + 1)
	if len(order) > topK {
		order = order[:topK]
	}
	results := make([]item.Hit, len(order))
	for i, s := range order {
		results[i] = item.Hit{Item: s.hit.Item, Relevance: min(1, s.score/best)}
	}
	return results
}
