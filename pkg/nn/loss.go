package nn

import "math"

const probFloor = 1e-12

// CrossEntropy returns the mean categorical cross-entropy of probability rows
// against integer class indices, and the gradient with respect to the logits
// (p - onehot(y)) / n.
func CrossEntropy(yTrue []int, proba [][]float64) (float64, [][]float64) {
	n := len(yTrue)
	s := 0.0
	grad := make([][]float64, n)
	for i := range n {
		p := proba[i]
		g := make([]float64, len(p))
		for k := range p {
			g[k] = p[k] / float64(n)
		}
		g[yTrue[i]] -= 1 / float64(n)
		s -= math.Log(math.Max(p[yTrue[i]], probFloor))
		grad[i] = g
	}
	return s / float64(n), grad
}

// Hinge returns the mean hinge loss for labels in {-1, +1} and the gradient
// with respect to the scores.
func Hinge(yTrue, scores []float64) (float64, []float64) {
	n := len(yTrue)
	s := 0.0
	grad := make([]float64, n)
	for i := range n {
		m := 1 - yTrue[i]*scores[i]
		if m > 0 {
			s += m
			grad[i] = -yTrue[i] / float64(n)
		}
	}
	return s / float64(n), grad
}
