package similar

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/item"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
)

func testItem(id string) item.Item {
	return item.Reconstruct(id, "Movie "+id, nil, "", 0, "")
}

func cand(id string, n, v, a float64) Candidate {
	return Candidate{Item: testItem(id), Score: modality.Score{Narrative: n, Visual: v, Audio: a}}
}

func ids(rs []RankedResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Item.ID()
	}
	return out
}

// --- Tests ---

func TestRank_OrdersByBlend(t *testing.T) {
	w := weights.Default()
	cands := []Candidate{
		cand("a", 0.2, 0.2, 0.2),
		cand("b", 0.9, 0.1, 0.1),
		cand("c", 0.5, 0.9, 0.9),
	}

	got, err := Rank(testItem("ref"), cands, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"c", "b", "a"}; !equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	wantOverall := 0.5*0.4 + 0.9*0.35 + 0.9*0.25
	if math.Abs(got[0].Overall-wantOverall) > 1e-12 {
		t.Errorf("expected overall %g, got %g", wantOverall, got[0].Overall)
	}
	if got[0].Breakdown != cands[2].Score {
		t.Errorf("breakdown not carried: %+v", got[0].Breakdown)
	}
}

func TestRank_ExcludesReference(t *testing.T) {
	got, err := Rank(testItem("b"), []Candidate{cand("a", 1, 1, 1), cand("b", 1, 1, 1)}, weights.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"a"}; !equal(ids(got), want) {
		t.Errorf("expected %v, got %v", want, ids(got))
	}
}

func TestRank_StableTies(t *testing.T) {
	cands := []Candidate{cand("x", 0.5, 0.5, 0.5), cand("y", 0.5, 0.5, 0.5), cand("z", 0.5, 0.5, 0.5)}
	got, _ := Rank(testItem("ref"), cands, weights.Default())
	if want := []string{"x", "y", "z"}; !equal(ids(got), want) {
		t.Errorf("expected input order on ties, got %v", ids(got))
	}
}

func TestRank_SingleAxisWeight(t *testing.T) {
	w, _ := weights.New(0, 1, 0)
	cands := []Candidate{cand("a", 1, 0.1, 1), cand("b", 0, 0.9, 0)}
	got, _ := Rank(testItem("ref"), cands, w)
	if ids(got)[0] != "b" || got[0].Overall != 0.9 {
		t.Errorf("expected visual-only ranking, got %v %g", ids(got), got[0].Overall)
	}
}

func TestRank_NarrativeOnly(t *testing.T) {
	w, err := weights.New(1, 0, 0)
	if err != nil {
		t.Fatalf("weights: %v", err)
	}
	cands := []Candidate{cand("low", 0.3, 0.9, 0.9), cand("high", 0.9, 0.1, 0.1)}

	got, err := Rank(testItem("ref"), cands, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"high", "low"}; !equal(ids(got), want) {
		t.Fatalf("expected %v, got %v", want, ids(got))
	}
	if got[0].Overall != 0.9 || got[1].Overall != 0.3 {
		t.Errorf("expected overall 0.9 and 0.3, got %g and %g", got[0].Overall, got[1].Overall)
	}
}

func TestRank_RandomCandidatesProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 42))
	for round := 0; round < 500; round++ {
		w := weights.Default()
		for i := 0; i < 3; i++ {
			w = weights.Adjust(w, modality.All[r.IntN(3)], r.Float64())
		}
		n := r.IntN(40)
		refID := fmt.Sprintf("c%d", r.IntN(n+1))
		cands := make([]Candidate, n)
		for i := range cands {
			cands[i] = cand(fmt.Sprintf("c%d", i), r.Float64(), r.Float64(), r.Float64())
		}

		got, err := Rank(testItem(refID), cands, w)
		if err != nil {
			t.Fatalf("round %d: unexpected error: %v", round, err)
		}
		for i, res := range got {
			if res.Item.ID() == refID {
				t.Fatalf("round %d: reference %s in output", round, refID)
			}
			if res.Overall < 0 || res.Overall > 1+weights.Epsilon {
				t.Fatalf("round %d: overall %g outside [0,1]", round, res.Overall)
			}
			if i > 0 && res.Overall > got[i-1].Overall {
				t.Fatalf("round %d: overall increases at %d: %g > %g", round, i, res.Overall, got[i-1].Overall)
			}
		}
		want := 0
		for _, c := range cands {
			if c.Item.ID() != refID {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("round %d: expected %d results, got %d", round, want, len(got))
		}
	}
}

func TestRank_Empty(t *testing.T) {
	got, err := Rank(testItem("ref"), nil, weights.Default())
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result, got %v %v", got, err)
	}
}

func TestRank_InvalidWeights(t *testing.T) {
	_, err := Rank(testItem("ref"), []Candidate{cand("a", 1, 1, 1)}, weights.Reconstruct(0.5, 0.5, 0.5))
	if !errors.Is(err, domain.ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestPage(t *testing.T) {
	rs := make([]RankedResult, 20)
	if got := Page(rs, DefaultPageSize); len(got) != 12 {
		t.Errorf("expected 12, got %d", len(got))
	}
	if got := Page(rs[:5], DefaultPageSize); len(got) != 5 {
		t.Errorf("expected 5, got %d", len(got))
	}
	if got := Page(rs, 0); len(got) != 20 {
		t.Errorf("expected all, got %d", len(got))
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
