package detect

// Step is the online view at time T: how the best explanation of 1..T ends.
// Start is the first observation of the anomaly containing T, or T itself
// when T is background or a point anomaly. Earlier steps may be revised by
// later ones; each Step is consistent with the solver state at its instant.
type Step struct {
	T     int     `json:"t"`
	Start int     `json:"start"`
	Kind  Kind    `json:"kind"`
	Cost  float64 `json:"cost"`
}

// StepAt returns the online view at time t.
func (s *Solution) StepAt(t int) Step {
	step := Step{T: t, Start: t, Kind: s.kind[t], Cost: s.cost[t]}
	if step.Kind == KindCollective {
		step.Start = s.prev[t] + 1
	}
	return step
}

// LabelsAt classifies observations 1..t by following the backpointer chain
// from t. Backpointers up to t are fixed once step t is solved, so this is
// the labelling an online consumer would have seen at instant t.
func (s *Solution) LabelsAt(t int) []Kind {
	labels := make([]Kind, t)
	for cur := t; cur > 0; cur = s.prev[cur] {
		k := s.kind[cur]
		for i := s.prev[cur] + 1; i <= cur; i++ {
			labels[i-1] = k
		}
	}
	return labels
}

// Labels classifies every observation of the series.
func (s *Solution) Labels() []Kind {
	return s.LabelsAt(s.n)
}

// OnlineRecorder collects the step published at every time index.
type OnlineRecorder struct {
	steps []Step
}

// Record is a step hook; pass it to WithStepHook.
func (r *OnlineRecorder) Record(step Step) error {
	r.steps = append(r.steps, step)
	return nil
}

// Steps returns the recorded steps in time order.
func (r *OnlineRecorder) Steps() []Step {
	return r.steps
}
