// Package robust implements the Tukey biweight segment cost used by the
// anomaly solver.
package robust

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Default estimator settings. The threshold is Tukey's tuning constant for
// 95% efficiency under Gaussian noise, expressed in baseline scale units.
const (
	DefaultThreshold     = 4.685
	DefaultTolerance     = 1e-8
	DefaultMaxIterations = 1000
)

var (
	// ErrNonFinite is returned when an observation or an intermediate value is NaN or Inf.
	ErrNonFinite = errors.New("non-finite value")
	// ErrNotConverged is returned when the location estimate does not settle
	// within the iteration budget.
	ErrNotConverged = errors.New("location estimate did not converge")
	// ErrInvalidEstimator is returned by Validate for unusable settings.
	ErrInvalidEstimator = errors.New("invalid estimator settings")
)

// Estimator computes robust segment costs with the Tukey biweight.
type Estimator struct {
	Threshold     float64 `mapstructure:"threshold" json:"threshold"`           // Tuning constant c
	Tolerance     float64 `mapstructure:"tolerance" json:"tolerance"`           // Relative change that ends the iteration
	MaxIterations int     `mapstructure:"max_iterations" json:"max_iterations"` // Iteration budget per start point
}

// DefaultEstimator returns the standard biweight settings.
func DefaultEstimator() Estimator {
	return Estimator{
		Threshold:     DefaultThreshold,
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

// Validate reports whether the settings can be used for estimation.
func (e Estimator) Validate() error {
	switch {
	case !(e.Threshold > 0) || math.IsInf(e.Threshold, 0):
		return fmt.Errorf("%w: threshold must be positive and finite, got %v", ErrInvalidEstimator, e.Threshold)
	case !(e.Tolerance > 0) || math.IsInf(e.Tolerance, 0):
		return fmt.Errorf("%w: tolerance must be positive and finite, got %v", ErrInvalidEstimator, e.Tolerance)
	case e.MaxIterations < 1:
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidEstimator, e.MaxIterations)
	}
	return nil
}

// Loss is the biweight loss of residual r, scaled to behave like r*r near zero.
// It is bounded by MaxLoss and non-decreasing in |r|.
func (e Estimator) Loss(r float64) float64 {
	c := e.Threshold
	if math.Abs(r) >= c {
		return c * c / 3
	}
	u := r / c
	v := 1 - u*u
	return c * c / 3 * (1 - v*v*v)
}

// MaxLoss is the loss of any residual at or beyond the threshold.
func (e Estimator) MaxLoss() float64 {
	return e.Threshold * e.Threshold / 3
}

// Weight is the biweight IRLS weight of residual r: (1-(r/c)^2)^2 inside the
// threshold, zero beyond it.
func (e Estimator) Weight(r float64) float64 {
	c := e.Threshold
	if math.Abs(r) >= c {
		return 0
	}
	u := r / c
	v := 1 - u*u
	return v * v
}

// Cost returns min over mu of sum Loss(x-mu) for the segment, approximated by
// the better of two local minima: one warm-started from the segment's cached
// location and one started from its median. The result and location are
// cached on the segment until it is extended again.
func (e Estimator) Cost(s *Segment) (float64, error) {
	if s.nonFinite {
		return 0, ErrNonFinite
	}
	if s.fresh {
		return s.cost, nil
	}

	starts := [2]float64{s.mu, s.Median()}
	best, bestMu := math.Inf(1), s.mu
	for i, start := range starts {
		if i > 0 && start == starts[0] {
			continue
		}
		mu, cost, err := e.locate(s.values, start)
		if err != nil {
			return 0, err
		}
		if cost < best {
			best, bestMu = cost, mu
		}
	}
	if math.IsNaN(best) || math.IsInf(best, 0) {
		return 0, ErrNonFinite
	}

	s.mu, s.cost, s.fresh = bestMu, best, true
	return best, nil
}

// locate descends the objective from start and returns the location reached
// together with its objective. Each pass proposes a Newton step and keeps the
// reweighted mean step as the fallback for when the Newton step does not lower
// the objective. The reweighted mean step never raises it, so a rise on that
// path means the iteration has broken down.
//
// The iteration stops once the objective or the step stops changing relative
// to Tolerance. Near the point where two modes merge the objective is almost
// flat and the reweighted mean alone crawls for thousands of passes.
func (e Estimator) locate(sorted []float64, start float64) (float64, float64, error) {
	mu, prev := start, math.Inf(1)
	var fallback float64
	newton := false
	for i := 0; i < e.MaxIterations; i++ {
		p := e.pass(sorted, mu)
		if newton && p.objective > prev {
			mu, newton = fallback, false
			continue
		}
		if p.objective > prev+e.Tolerance*math.Max(1, prev) {
			return 0, 0, fmt.Errorf("%w: objective rose from %v to %v", ErrNotConverged, prev, p.objective)
		}
		if prev-p.objective <= e.Tolerance*math.Max(1, p.objective) || p.weight == 0 {
			return mu, p.objective, nil
		}

		step := p.pull / p.weight
		if math.IsNaN(step) || math.IsInf(step, 0) {
			return 0, 0, ErrNonFinite
		}
		if math.Abs(step) <= e.Tolerance*math.Max(e.Threshold, math.Abs(mu)) {
			return mu, p.objective, nil
		}

		prev, newton = p.objective, false
		next := mu + step
		if p.curvature > 0 {
			if jump := mu + p.pull/p.curvature; !math.IsNaN(jump) && !math.IsInf(jump, 0) {
				fallback, next, newton = next, jump, true
			}
		}
		mu = next
	}
	return 0, 0, fmt.Errorf("%w after %d iterations", ErrNotConverged, e.MaxIterations)
}

// passStats holds the sums gathered in one scan of the inlier window.
type passStats struct {
	objective float64 // sum Loss(x-mu)
	weight    float64 // sum w
	pull      float64 // sum w*(x-mu)
	curvature float64 // half the second derivative of the objective in mu
}

// pass scans the inlier window around mu. Observations outside the window
// contribute MaxLoss each and nothing else.
func (e Estimator) pass(sorted []float64, mu float64) passStats {
	c := e.Threshold
	lo, hi := e.window(sorted, mu)
	p := passStats{objective: float64(len(sorted)-(hi-lo)) * e.MaxLoss()}
	for _, x := range sorted[lo:hi] {
		r := x - mu
		u2 := (r / c) * (r / c)
		v := 1 - u2
		p.objective += c * c / 3 * (1 - v*v*v)
		p.weight += v * v
		p.pull += v * v * r
		p.curvature += v * (1 - 5*u2)
	}
	return p
}

// window returns the index range of observations with |x-mu| < c.
func (e Estimator) window(sorted []float64, mu float64) (lo, hi int) {
	c := e.Threshold
	lo = sort.Search(len(sorted), func(i int) bool { return sorted[i] > mu-c })
	hi = sort.Search(len(sorted), func(i int) bool { return sorted[i] >= mu+c })
	return lo, hi
}
