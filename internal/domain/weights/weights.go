package weights

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
)

// Epsilon is the tolerance of the simplex invariant.
const Epsilon = 1e-9

// Vector is a point on the 3-simplex: every component in [0,1], sum == 1.
// It is a value type and is always replaced as a whole.
type Vector struct {
	narrative float64
	visual    float64
	audio     float64
}

// Default returns the initial weighting {0.4, 0.35, 0.25}.
func Default() Vector {
	return Vector{narrative: 0.4, visual: 0.35, audio: 0.25}
}

// Reset returns the default weighting.
func Reset() Vector { return Default() }

// New validates and creates a Vector.
func New(narrative, visual, audio float64) (Vector, error) {
	v := Vector{narrative: narrative, visual: visual, audio: audio}
	if err := Validate(v); err != nil {
		return Vector{}, err
	}
	return v, nil
}

// Reconstruct creates a Vector without validation. Callers must Validate before ranking.
func Reconstruct(narrative, visual, audio float64) Vector {
	return Vector{narrative: narrative, visual: visual, audio: audio}
}

// Narrative returns the narrative weight.
func (v Vector) Narrative() float64 { return v.narrative }

// Visual returns the visual weight.
func (v Vector) Visual() float64 { return v.visual }

// Audio returns the audio weight.
func (v Vector) Audio() float64 { return v.audio }

// Get returns the weight of an axis.
func (v Vector) Get(a modality.Axis) float64 {
	switch a {
	case modality.Narrative:
		return v.narrative
	case modality.Visual:
		return v.visual
	case modality.Audio:
		return v.audio
	}
	return 0
}

func (v Vector) with(a modality.Axis, x float64) Vector {
	switch a {
	case modality.Narrative:
		v.narrative = x
	case modality.Visual:
		v.visual = x
	case modality.Audio:
		v.audio = x
	}
	return v
}

// Sum returns the component sum.
func (v Vector) Sum() float64 { return v.narrative + v.visual + v.audio }

// Equal reports component-wise equality within Epsilon.
func (v Vector) Equal(o Vector) bool {
	return math.Abs(v.narrative-o.narrative) < Epsilon &&
		math.Abs(v.visual-o.visual) < Epsilon &&
		math.Abs(v.audio-o.audio) < Epsilon
}

// Blend returns the weighted sum of a modality score.
func (v Vector) Blend(s modality.Score) float64 {
	return s.Narrative*v.narrative + s.Visual*v.visual + s.Audio*v.audio
}

func (v Vector) String() string {
	return fmt.Sprintf("{narrative:%.4f visual:%.4f audio:%.4f}", v.narrative, v.visual, v.audio)
}

// Validate returns ErrInvalidWeights when v is not on the simplex.
func Validate(v Vector) error {
	for _, a := range modality.All {
		x := v.Get(a)
		if math.IsNaN(x) || x < 0 || x > 1 {
			return fmt.Errorf("%w: %s=%v out of [0,1]", domain.ErrInvalidWeights, a, x)
		}
	}
	if math.Abs(v.Sum()-1) >= Epsilon {
		return fmt.Errorf("%w: sum=%v", domain.ErrInvalidWeights, v.Sum())
	}
	return nil
}

// Adjust sets one axis to newValue (clamped to [0,1]) and redistributes the
// remainder over the other two axes in proportion to their current values.
// When both other axes are zero the remainder is split equally.
func Adjust(current Vector, axis modality.Axis, newValue float64) Vector {
	if math.IsNaN(newValue) {
		newValue = current.Get(axis)
	}
	newValue = min(1, max(0, newValue))
	remaining := 1 - newValue

	a, b := axis.Others()
	ca, cb := current.Get(a), current.Get(b)

	var na float64
	if total := ca + cb; total > 0 {
		na = remaining * ca / total
	} else {
		na = remaining / 2
	}
	// b absorbs the rounding error so the sum is exact.
	nb := max(0, remaining-na)

	return Vector{}.with(axis, newValue).with(a, na).with(b, nb)
}
