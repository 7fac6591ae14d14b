package detect

import "slices"

// Anomaly is one detected anomaly covering observations Start..End (1-based,
// inclusive).
type Anomaly struct {
	Start int  `json:"start"`
	End   int  `json:"end"`
	Kind  Kind `json:"kind"`
}

// Len returns the number of observations covered.
func (a Anomaly) Len() int {
	return a.End - a.Start + 1
}

// Anomalies walks the backpointers from the end of the series once and
// returns the anomalous segments in chronological order.
func (s *Solution) Anomalies() []Anomaly {
	var out []Anomaly
	for t := s.n; t > 0; t = s.prev[t] {
		if k := s.kind[t]; k != KindBackground {
			out = append(out, Anomaly{Start: s.prev[t] + 1, End: t, Kind: k})
		}
	}
	slices.Reverse(out)
	return out
}
