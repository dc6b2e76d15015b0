package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{1000, 1000})
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, p, 1e-12)

	p = Softmax([]float64{0, math.Log(3)})
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, p, 1e-12)
}

func TestCrossEntropy(t *testing.T) {
	loss, grad := CrossEntropy([]int{1}, [][]float64{{0.25, 0.75}})

	assert.InDelta(t, -math.Log(0.75), loss, 1e-12)
	assert.InDeltaSlice(t, []float64{0.25, -0.25}, grad[0], 1e-12)
}

func TestHinge(t *testing.T) {
	loss, grad := Hinge([]float64{1, -1}, []float64{2, 0.5})

	assert.InDelta(t, 0.75, loss, 1e-12)
	assert.Equal(t, []float64{0, 0.5}, grad)
}
