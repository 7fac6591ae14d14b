package robust

import (
	"math"
	"slices"
)

// Segment holds the cached statistics of one candidate segment: its
// observations in sorted order and the last location estimate, which warm
// starts the next Cost. Extending a segment touches only the new observation.
type Segment struct {
	values    []float64 // sorted ascending
	mu        float64
	cost      float64
	fresh     bool // cost and mu reflect the current values
	nonFinite bool
}

// NewSegment starts a segment with a single observation.
func NewSegment(x float64) *Segment {
	s := &Segment{
		values: []float64{x},
		mu:     x,
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		s.nonFinite = true
	}
	return s
}

// Extend appends one observation to the segment.
func (s *Segment) Extend(x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		s.nonFinite = true
		s.fresh = false
		return
	}
	i, _ := slices.BinarySearch(s.values, x)
	s.values = slices.Insert(s.values, i, x)
	s.fresh = false
}

// Len returns the number of observations in the segment.
func (s *Segment) Len() int {
	return len(s.values)
}

// Median returns the lower median, which is always an observed value.
func (s *Segment) Median() float64 {
	if len(s.values) == 0 {
		return 0
	}
	return s.values[(len(s.values)-1)/2]
}
