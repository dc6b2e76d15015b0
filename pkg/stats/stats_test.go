package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptive(t *testing.T) {
	x := []float64{1, 2, 3, 4}

	assert.Equal(t, 2.5, Mean(x))
	assert.Equal(t, 1.25, Variance(x))
	assert.InDelta(t, math.Sqrt(5.0/3.0), SampleStd(x), 1e-12)
	assert.Equal(t, 2.5, Median(x))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 1.75, Percentile(x, 25))
	assert.Equal(t, 4.0, Percentile(x, 100))
	assert.Equal(t, []float64{1, 2.5, 4}, Quantiles(x, []float64{0, 0.5, 1}))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 2.0, Ratio(4, 2))
	assert.True(t, math.IsNaN(Ratio(4, 0)))
	assert.True(t, math.IsNaN(Ratio(math.NaN(), 1)))
}

func TestClipOutliersKeepsNaN(t *testing.T) {
	X := [][]float64{{0}, {10}, {math.NaN()}, {100}}
	out := ClipOutliers(X, 0, 50)

	assert.Equal(t, 0.0, out[0][0])
	assert.Equal(t, 10.0, out[1][0])
	assert.True(t, math.IsNaN(out[2][0]))
	assert.Equal(t, 10.0, out[3][0])
}
