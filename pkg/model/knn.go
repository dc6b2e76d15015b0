package model

import (
	"math"
	"sort"
)

// KNN classifies by majority vote of the K nearest training rows.
type KNN struct {
	K int
	X [][]float64
	y []int

	classes []int
}

// NewKNN creates and returns a new KNN model.
func NewKNN(k int) *KNN {
	return &KNN{K: k}
}

// Fit stores the training data; the model is lazy.
func (m *KNN) Fit(X [][]float64, y []int) error {
	if _, _, err := validate(X, y); err != nil {
		return err
	}
	classes, enc := labelIndex(y)
	m.classes = classes
	m.X = X
	m.y = enc
	return nil
}

func (m *KNN) Classes() []int { return m.classes }

// PredictProba returns the share of neighbour votes per class.
func (m *KNN) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = m.votes(X[i])
		}
	})
	return out
}

func (m *KNN) Predict(X [][]float64) []int {
	return predictFromProba(m.classes, m.PredictProba(X))
}

func (m *KNN) votes(xi []float64) []float64 {
	type neighbor struct {
		d     float64
		label int
	}
	k := min(m.K, len(m.X))
	nbrs := make([]neighbor, 0, k+1)
	for j, xj := range m.X {
		d := euclidSquared(xi, xj)
		if len(nbrs) < k {
			nbrs = append(nbrs, neighbor{d, m.y[j]})
			sort.Slice(nbrs, func(a, b int) bool { return nbrs[a].d < nbrs[b].d })
		} else if d < nbrs[len(nbrs)-1].d {
			nbrs[len(nbrs)-1] = neighbor{d, m.y[j]}
			sort.Slice(nbrs, func(a, b int) bool { return nbrs[a].d < nbrs[b].d })
		}
	}
	p := make([]float64, len(m.classes))
	for _, nb := range nbrs {
		p[nb.label] += 1 / float64(len(nbrs))
	}
	return p
}

// euclidSquared computes the squared Euclidean distance, skipping dimensions
// missing in either vector.
func euclidSquared(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		if math.IsNaN(d) {
			continue
		}
		sum += d * d
	}
	return sum
}
