package model

import (
	"math"

	"stockml/pkg/nn"
)

// GaussianNB models each feature as an independent normal per class.
type GaussianNB struct {
	// VarSmoothing is added to every variance as a share of the largest one.
	VarSmoothing float64

	classes []int
	priors  []float64
	means   [][]float64
	vars    [][]float64
}

func NewGaussianNB() *GaussianNB { return &GaussianNB{VarSmoothing: 1e-9} }

func (m *GaussianNB) Fit(X [][]float64, y []int) error {
	_, p, err := validate(X, y)
	if err != nil {
		return err
	}
	classes, enc := labelIndex(y)
	k := len(classes)
	m.classes = classes
	m.priors = make([]float64, k)
	m.means = make([][]float64, k)
	m.vars = make([][]float64, k)
	counts := make([][]float64, k)
	for c := 0; c < k; c++ {
		m.means[c] = make([]float64, p)
		m.vars[c] = make([]float64, p)
		counts[c] = make([]float64, p)
	}
	for i, row := range X {
		c := enc[i]
		m.priors[c]++
		for j, v := range row {
			if !math.IsNaN(v) {
				m.means[c][j] += v
				counts[c][j]++
			}
		}
	}
	for c := 0; c < k; c++ {
		for j := 0; j < p; j++ {
			if counts[c][j] > 0 {
				m.means[c][j] /= counts[c][j]
			}
		}
	}
	maxVar := 0.0
	for i, row := range X {
		c := enc[i]
		for j, v := range row {
			if !math.IsNaN(v) {
				d := v - m.means[c][j]
				m.vars[c][j] += d * d
			}
		}
	}
	for c := 0; c < k; c++ {
		for j := 0; j < p; j++ {
			if counts[c][j] > 0 {
				m.vars[c][j] /= counts[c][j]
			}
			maxVar = math.Max(maxVar, m.vars[c][j])
		}
		m.priors[c] /= float64(len(X))
	}
	eps := m.VarSmoothing * maxVar
	if eps == 0 {
		eps = m.VarSmoothing
	}
	for c := range m.vars {
		for j := range m.vars[c] {
			m.vars[c][j] += eps
		}
	}
	return nil
}

func (m *GaussianNB) Classes() []int { return m.classes }

// PredictProba evaluates the joint log-likelihood and normalizes it with a
// softmax. Missing features are skipped.
func (m *GaussianNB) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			ll := make([]float64, len(m.classes))
			for c := range m.classes {
				s := math.Log(m.priors[c])
				for j, v := range X[i] {
					if math.IsNaN(v) {
						continue
					}
					d := v - m.means[c][j]
					s -= 0.5*math.Log(2*math.Pi*m.vars[c][j]) + d*d/(2*m.vars[c][j])
				}
				ll[c] = s
			}
			out[i] = nn.Softmax(ll)
		}
	})
	return out
}

func (m *GaussianNB) Predict(X [][]float64) []int {
	return predictFromProba(m.classes, m.PredictProba(X))
}
