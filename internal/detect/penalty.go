package detect

import (
	"fmt"
	"math"
)

// Penalties configures the cost of declaring anomalies. BetaChange[i] is the
// penalty of a collective anomaly of length MinLength+i.
type Penalties struct {
	MinLength   int       `mapstructure:"min_length" json:"min_length"`
	MaxLength   int       `mapstructure:"max_length" json:"max_length"`
	BetaChange  []float64 `mapstructure:"beta_change" json:"beta_change"`
	BetaAnomaly float64   `mapstructure:"beta_anomaly" json:"beta_anomaly"`
}

// ConstantPenalties builds a table with the same penalty for every
// admissible collective length.
func ConstantPenalties(minLength, maxLength int, beta, betaAnomaly float64) Penalties {
	p := Penalties{
		MinLength:   minLength,
		MaxLength:   maxLength,
		BetaAnomaly: betaAnomaly,
	}
	if maxLength >= minLength && minLength > 0 {
		p.BetaChange = make([]float64, maxLength-minLength+1)
		for i := range p.BetaChange {
			p.BetaChange[i] = beta
		}
	}
	return p
}

// DefaultBeta returns the default collective penalty for a series of length n.
func DefaultBeta(n int) float64 {
	return 4 * math.Log(float64(max(n, 2)))
}

// DefaultBetaAnomaly returns the default point-anomaly penalty for a series of length n.
func DefaultBetaAnomaly(n int) float64 {
	return 3 * math.Log(float64(max(n, 2)))
}

// DefaultPenalties returns the log(n) scaled defaults for a series of length n.
func DefaultPenalties(n, minLength, maxLength int) Penalties {
	return ConstantPenalties(minLength, maxLength, DefaultBeta(n), DefaultBetaAnomaly(n))
}

// Validate checks the penalties against a series of length n.
func (p Penalties) Validate(n int) error {
	switch {
	case p.MinLength < 1:
		return fmt.Errorf("%w: min length must be positive, got %d", ErrInvalidConfig, p.MinLength)
	case p.MinLength > p.MaxLength:
		return fmt.Errorf("%w: min length %d exceeds max length %d", ErrInvalidConfig, p.MinLength, p.MaxLength)
	case p.MaxLength > n:
		return fmt.Errorf("%w: max length %d exceeds series length %d", ErrInvalidConfig, p.MaxLength, n)
	case len(p.BetaChange) != p.MaxLength-p.MinLength+1:
		return fmt.Errorf("%w: penalty table has %d entries, want %d",
			ErrInvalidConfig, len(p.BetaChange), p.MaxLength-p.MinLength+1)
	}
	if !validPenalty(p.BetaAnomaly) {
		return fmt.Errorf("%w: point anomaly penalty must be finite and non-negative, got %v", ErrInvalidConfig, p.BetaAnomaly)
	}
	for i, b := range p.BetaChange {
		if !validPenalty(b) {
			return fmt.Errorf("%w: penalty for length %d must be finite and non-negative, got %v",
				ErrInvalidConfig, p.MinLength+i, b)
		}
	}
	return nil
}

// Collective returns the penalty of a collective anomaly of the given length
// and whether that length is admissible.
func (p Penalties) Collective(length int) (float64, bool) {
	if length < p.MinLength || length > p.MaxLength {
		return 0, false
	}
	return p.BetaChange[length-p.MinLength], true
}

// bounds returns the smallest and largest collective penalty.
func (p Penalties) bounds() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, b := range p.BetaChange {
		lo = math.Min(lo, b)
		hi = math.Max(hi, b)
	}
	return lo, hi
}

func validPenalty(b float64) bool {
	return b >= 0 && !math.IsInf(b, 0)
}
