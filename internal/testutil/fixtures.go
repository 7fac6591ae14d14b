// Package testutil provides series and request fixtures for tests.
package testutil

import (
	"math/rand/v2"

	"github.com/HerbHall/capa/pkg/anomaly"
)

// NewSeries returns a flat series of n zeros. Apply options to add
// contamination. Indices passed to options are 1-based, matching the
// positions reported by the detector.
func NewSeries(n int, opts ...func([]float64)) []float64 {
	s := make([]float64, n)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSpike sets the value at 1-based index i.
func WithSpike(i int, v float64) func([]float64) {
	return func(s []float64) { s[i-1] = v }
}

// WithShift adds delta to every value in the 1-based inclusive range start..end.
func WithShift(start, end int, delta float64) func([]float64) {
	return func(s []float64) {
		for i := start; i <= end; i++ {
			s[i-1] += delta
		}
	}
}

// WithNoise adds deterministic Gaussian noise with standard deviation sigma.
func WithNoise(seed uint64, sigma float64) func([]float64) {
	return func(s []float64) {
		r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		for i := range s {
			s[i] += sigma * r.NormFloat64()
		}
	}
}

// WithLevel adds a constant offset to the whole series.
func WithLevel(level float64) func([]float64) {
	return func(s []float64) {
		for i := range s {
			s[i] += level
		}
	}
}

// NewDetectRequest returns a batch request over series with explicit
// penalties. Override individual fields via options.
func NewDetectRequest(series []float64, opts ...func(*anomaly.DetectRequest)) anomaly.DetectRequest {
	beta, betaAnomaly := 10.0, 5.0
	req := anomaly.DetectRequest{
		Series:      series,
		MinLength:   5,
		MaxLength:   20,
		Beta:        &beta,
		BetaAnomaly: &betaAnomaly,
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// WithOnline selects online reconstruction.
func WithOnline() func(*anomaly.DetectRequest) {
	return func(r *anomaly.DetectRequest) { r.Online = true }
}

// WithLengths sets the admissible collective lengths.
func WithLengths(minLength, maxLength int) func(*anomaly.DetectRequest) {
	return func(r *anomaly.DetectRequest) {
		r.MinLength = minLength
		r.MaxLength = maxLength
	}
}
