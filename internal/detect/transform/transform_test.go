package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{name: "single", xs: []float64{3}, want: 3},
		{name: "odd count", xs: []float64{5, 1, 3}, want: 3},
		{name: "even count takes lower middle", xs: []float64{4, 1, 3, 2}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(tt.xs))
		})
	}

	assert.True(t, math.IsNaN(Median(nil)))
}

func TestMedian_DoesNotModifyInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	Median(xs)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestRobustScale(t *testing.T) {
	series := []float64{10, 11, 9, 10, 12, 8, 10, 100}

	out, sc := RobustScale(series)
	require.Len(t, out, len(series))

	assert.Equal(t, MethodRobust, sc.Method)
	assert.Equal(t, 10.0, sc.Location)
	// Absolute deviations 0,1,1,0,2,2,0,90 have lower median 1.
	assert.InDelta(t, madConsistency, sc.Scale, 1e-12)
	assert.InDelta(t, 90/madConsistency, out[7], 1e-9)
	assert.Equal(t, 0.0, out[0])
}

func TestRobustScale_FallsBackToStdDev(t *testing.T) {
	// More than half the values equal the median, so the MAD is zero.
	series := []float64{5, 5, 5, 5, 5, 7}

	_, sc := RobustScale(series)
	assert.Equal(t, 5.0, sc.Location)
	assert.Greater(t, sc.Scale, 0.0)
	assert.NotEqual(t, 1.0, sc.Scale)
}

func TestRobustScale_ConstantSeries(t *testing.T) {
	out, sc := RobustScale([]float64{4, 4, 4})
	assert.Equal(t, 1.0, sc.Scale)
	assert.Equal(t, []float64{0, 0, 0}, out)
}

func TestRobustScale_IgnoresNonFiniteForScaling(t *testing.T) {
	out, sc := RobustScale([]float64{1, 2, math.NaN(), 3})
	assert.Equal(t, 2.0, sc.Location)
	assert.True(t, math.IsNaN(out[2]))
}

func TestApply(t *testing.T) {
	series := []float64{1, 2, 3}

	out, sc, err := Apply("", series)
	require.NoError(t, err)
	assert.Equal(t, series, out)
	assert.Equal(t, MethodNone, sc.Method)

	_, sc, err = Apply(MethodRobust, series)
	require.NoError(t, err)
	assert.Equal(t, MethodRobust, sc.Method)

	_, _, err = Apply("zscore", series)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
