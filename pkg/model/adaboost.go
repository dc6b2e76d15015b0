package model

import (
	"math"

	"stockml/pkg/nn"
)

// AdaBoost is multi-class SAMME boosting over depth-1 trees.
type AdaBoost struct {
	NEstimators  int
	LearningRate float64
	RandomState  int64

	classes     []int
	stumps      []*DecisionTreeClassifier
	alphas      []float64
	importances []float64
}

func NewAdaBoost(nEstimators int, lr float64, seed int64) *AdaBoost {
	return &AdaBoost{NEstimators: nEstimators, LearningRate: lr, RandomState: seed}
}

func (m *AdaBoost) Fit(X [][]float64, y []int) error {
	n, p, err := validate(X, y)
	if err != nil {
		return err
	}
	classes, enc := labelIndex(y)
	m.classes = classes
	m.stumps = nil
	m.alphas = nil
	m.importances = make([]float64, p)
	k := float64(len(classes))

	idx := make([]int, n)
	w := make([]float64, n)
	for i := range w {
		idx[i] = i
		w[i] = 1 / float64(n)
	}
	for s := 0; s < m.NEstimators; s++ {
		stump := NewDecisionTreeClassifier(WithMaxDepth(1), WithRandomState(m.RandomState+int64(s)))
		stump.fit(X, enc, classes, idx, w)

		errW := 0.0
		miss := make([]bool, n)
		for i := range X {
			if argmax(stump.predictProbaSingle(X[i])) != enc[i] {
				miss[i] = true
				errW += w[i]
			}
		}
		if errW <= 0 {
			m.add(stump, 1)
			break
		}
		if errW >= 1-1/k {
			if len(m.stumps) == 0 {
				m.add(stump, 1)
			}
			break
		}
		alpha := m.LearningRate * (math.Log((1-errW)/errW) + math.Log(k-1))
		m.add(stump, alpha)

		total := 0.0
		for i := range w {
			if miss[i] {
				w[i] *= math.Exp(alpha)
			}
			total += w[i]
		}
		for i := range w {
			w[i] /= total
		}
	}
	m.importances = normalizeSum(m.importances)
	return nil
}

func (m *AdaBoost) add(stump *DecisionTreeClassifier, alpha float64) {
	m.stumps = append(m.stumps, stump)
	m.alphas = append(m.alphas, alpha)
	for j, v := range stump.importances {
		m.importances[j] += alpha * v
	}
}

func (m *AdaBoost) Classes() []int { return m.classes }

func (m *AdaBoost) FeatureImportances() []float64 { return m.importances }

// decision sums alpha-weighted votes per class.
func (m *AdaBoost) decision(x []float64) []float64 {
	d := make([]float64, len(m.classes))
	for s, stump := range m.stumps {
		d[argmax(stump.predictProbaSingle(x))] += m.alphas[s]
	}
	return d
}

// PredictProba normalizes the vote scores with a softmax scaled by 1/(K-1).
func (m *AdaBoost) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	k := float64(len(m.classes))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			d := m.decision(X[i])
			if k > 1 {
				for c := range d {
					d[c] /= k - 1
				}
			}
			out[i] = nn.Softmax(d)
		}
	})
	return out
}

func (m *AdaBoost) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = m.classes[argmax(m.decision(X[i]))]
		}
	})
	return out
}
