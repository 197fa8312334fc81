package similar

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
)

// Tag thresholds.
const (
	strongThreshold   = 0.7
	similarThreshold  = 0.5
	combinedThreshold = 0.8
	maxTags           = 3
)

// TagCombined is the type of the overall-match tag.
const TagCombined = "combined"

// Tag explains one reason a result ranks high.
type Tag struct {
	Type     string  `json:"type"`
	Label    string  `json:"label"`
	Strength float64 `json:"strength"`
}

var tagLabels = map[modality.Axis][2]string{
	modality.Narrative: {"Strong narrative similarity", "Similar storytelling themes"},
	modality.Visual:    {"Very similar visual style", "Similar cinematography"},
	modality.Audio:     {"Very similar audio style", "Similar sound design"},
}

// Explain returns up to three tags ordered by strength (score times weight).
func Explain(s modality.Score, w weights.Vector) []Tag {
	var tags []Tag
	for _, a := range modality.All {
		v := s.Get(a)
		var label string
		switch {
		case v > strongThreshold:
			label = tagLabels[a][0]
		case v > similarThreshold:
			label = tagLabels[a][1]
		default:
			continue
		}
		tags = append(tags, Tag{
			Type:     string(a),
			Label:    fmt.Sprintf("%s (%s)", label, percent(v)),
			Strength: v * w.Get(a),
		})
	}

	if total := w.Blend(s); total > combinedThreshold {
		tags = append(tags, Tag{
			Type:     TagCombined,
			Label:    fmt.Sprintf("Highly recommended match (%s)", percent(total)),
			Strength: total,
		})
	}

	slices.SortStableFunc(tags, func(a, b Tag) int { return cmp.Compare(b.Strength, a.Strength) })
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(v*100))
}
