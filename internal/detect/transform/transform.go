// Package transform maps raw observations into the baseline units the
// detector expects: typical level 0 and typical spread 1.
package transform

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// madConsistency makes the MAD a consistent estimator of the Gaussian
// standard deviation.
const madConsistency = 1.4826

// Methods accepted by Apply.
const (
	MethodNone   = "none"
	MethodRobust = "robust"
)

// ErrUnknownMethod is returned by Apply for an unrecognised method name.
var ErrUnknownMethod = errors.New("unknown transform")

// Scaling describes the affine map applied to a series.
type Scaling struct {
	Method   string
	Location float64
	Scale    float64
}

// Apply transforms series with the named method. The empty name means none.
// The input is never modified.
func Apply(method string, series []float64) ([]float64, Scaling, error) {
	switch method {
	case "", MethodNone:
		return series, Scaling{Method: MethodNone, Scale: 1}, nil
	case MethodRobust:
		out, sc := RobustScale(series)
		return out, sc, nil
	default:
		return nil, Scaling{}, fmt.Errorf("%w %q", ErrUnknownMethod, method)
	}
}

// RobustScale centres series on its median and divides by 1.4826*MAD. When
// the MAD is zero the standard deviation is used instead, and when that is
// zero too the series is only centred. Non-finite values are ignored when
// estimating the scaling.
func RobustScale(series []float64) ([]float64, Scaling) {
	finite := make([]float64, 0, len(series))
	for _, x := range series {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			finite = append(finite, x)
		}
	}

	sc := Scaling{Method: MethodRobust, Scale: 1}
	if len(finite) > 0 {
		sc.Location = Median(finite)
		sc.Scale = scale(finite, sc.Location)
	}

	out := make([]float64, len(series))
	for i, x := range series {
		out[i] = (x - sc.Location) / sc.Scale
	}
	return out, sc
}

func scale(finite []float64, median float64) float64 {
	dev := make([]float64, len(finite))
	for i, x := range finite {
		dev[i] = math.Abs(x - median)
	}
	if mad := Median(dev); mad > 0 {
		return madConsistency * mad
	}
	if len(finite) > 1 {
		if sd := stat.StdDev(finite, nil); sd > 0 {
			return sd
		}
	}
	return 1
}

// Median returns the empirical median of xs (the lower middle value for an
// even count). xs is not modified.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
