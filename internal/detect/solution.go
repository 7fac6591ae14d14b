package detect

// Kind classifies the segment that ends at a time step.
type Kind int

// Kind codes are part of the flat integer result encoding.
const (
	KindBackground Kind = 0
	KindCollective Kind = 1
	KindPoint      Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindBackground:
		return "background"
	case KindCollective:
		return "collective"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// Solution is the solved state of one run: the optimal cost and backpointer
// for every prefix 1..t. It is never modified after Solve returns, so the
// reconstructors can read it independently.
type Solution struct {
	n         int
	cost      []float64 // cost[t] is the optimal penalised cost of 1..t
	prev      []int     // prev[t] is the end of the previous segment
	kind      []Kind    // kind[t] is the kind of the segment prev[t]+1..t
	penalties Penalties
}

func newSolution(n int, p Penalties) *Solution {
	return &Solution{
		n:         n,
		cost:      make([]float64, n+1),
		prev:      make([]int, n+1),
		kind:      make([]Kind, n+1),
		penalties: p,
	}
}

// Len returns the series length.
func (s *Solution) Len() int {
	return s.n
}

// Cost returns the optimal penalised cost of observations 1..t.
func (s *Solution) Cost(t int) float64 {
	return s.cost[t]
}

// Prev returns the backpointer of time t.
func (s *Solution) Prev(t int) int {
	return s.prev[t]
}

// KindAt returns the kind of the segment ending at time t.
func (s *Solution) KindAt(t int) Kind {
	return s.kind[t]
}

// Penalties returns the penalty configuration the solution was built with.
func (s *Solution) Penalties() Penalties {
	return s.penalties
}

// TotalCost is the optimal penalised cost of the whole series.
func (s *Solution) TotalCost() float64 {
	return s.cost[s.n]
}
