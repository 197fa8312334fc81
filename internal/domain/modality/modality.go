package modality

import (
	"fmt"
	"math"
)

// Axis identifies one of the three independent similarity axes.
type Axis string

const (
	// Narrative is the story/theme axis.
	Narrative Axis = "narrative"
	// Visual is the cinematography axis.
	Visual Axis = "visual"
	// Audio is the sound design axis.
	Audio Axis = "audio"
)

// All lists the axes in canonical order.
var All = []Axis{Narrative, Visual, Audio}

// Parse converts a string into an Axis.
func Parse(s string) (Axis, error) {
	switch Axis(s) {
	case Narrative, Visual, Audio:
		return Axis(s), nil
	default:
		return "", fmt.Errorf("unknown modality %q", s)
	}
}

// Others returns the two axes other than a, in canonical order.
func (a Axis) Others() (Axis, Axis) {
	switch a {
	case Narrative:
		return Visual, Audio
	case Visual:
		return Narrative, Audio
	default:
		return Narrative, Visual
	}
}

// Score is the per-pair similarity triple produced by the scoring backend.
// Each component is expected in [0,1].
type Score struct {
	Narrative float64 `json:"narrative"`
	Visual    float64 `json:"visual"`
	Audio     float64 `json:"audio"`
}

// Get returns the component for an axis.
func (s Score) Get(a Axis) float64 {
	switch a {
	case Narrative:
		return s.Narrative
	case Visual:
		return s.Visual
	case Audio:
		return s.Audio
	}
	return 0
}

// With returns a copy with one component replaced.
func (s Score) With(a Axis, v float64) Score {
	switch a {
	case Narrative:
		s.Narrative = v
	case Visual:
		s.Visual = v
	case Audio:
		s.Audio = v
	}
	return s
}

// Valid reports whether every component lies in [0,1].
func (s Score) Valid() bool {
	for _, a := range All {
		v := s.Get(a)
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of two equal-length vectors clamped at zero.
// ok is false when the vectors are empty, differ in length or one has zero norm.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	return min(1, max(0, sim)), true
}
