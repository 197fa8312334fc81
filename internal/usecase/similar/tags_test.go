package similar

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
)

func TestExplain_Thresholds(t *testing.T) {
	tags := Explain(modality.Score{Narrative: 0.75, Visual: 0.6, Audio: 0.5}, weights.Default())
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %+v", tags)
	}
	if tags[0].Type != "narrative" || !strings.HasPrefix(tags[0].Label, "Strong narrative similarity (75%") {
		t.Errorf("unexpected first tag: %+v", tags[0])
	}
	if tags[1].Type != "visual" || !strings.HasPrefix(tags[1].Label, "Similar cinematography") {
		t.Errorf("unexpected second tag: %+v", tags[1])
	}
	if tags[0].Strength != 0.75*0.4 {
		t.Errorf("expected strength score*weight, got %g", tags[0].Strength)
	}
}

func TestExplain_CombinedAndTopThree(t *testing.T) {
	tags := Explain(modality.Score{Narrative: 0.95, Visual: 0.9, Audio: 0.85}, weights.Default())
	if len(tags) != 3 {
		t.Fatalf("expected top 3 tags, got %d", len(tags))
	}
	if tags[0].Type != TagCombined {
		t.Errorf("expected combined tag strongest, got %+v", tags[0])
	}
	for i := 1; i < len(tags); i++ {
		if tags[i].Strength > tags[i-1].Strength {
			t.Errorf("tags not sorted by strength: %+v", tags)
		}
	}
}

func TestExplain_None(t *testing.T) {
	if tags := Explain(modality.Score{Narrative: 0.5, Visual: 0.1}, weights.Default()); len(tags) != 0 {
		t.Errorf("expected no tags, got %+v", tags)
	}
}
