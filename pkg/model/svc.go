package model

import (
	"math"
	"math/rand"

	"stockml/pkg/loader"
	"stockml/pkg/nn"
	"stockml/pkg/optim"
)

// LinearSVC trains one hinge-loss linear separator per class (one-vs-rest).
type LinearSVC struct {
	C         float64 // inverse regularization strength
	Lr        float64
	Epochs    int
	BatchSize int
	Seed      int64

	W       [][]float64
	B       []float64
	classes []int
}

func NewLinearSVC(seed int64) *LinearSVC {
	return &LinearSVC{C: 1, Lr: 0.05, Epochs: 100, BatchSize: 64, Seed: seed}
}

func (m *LinearSVC) Fit(X [][]float64, y []int) error {
	n, p, err := validate(X, y)
	if err != nil {
		return err
	}
	classes, enc := labelIndex(y)
	m.classes = classes
	m.W = make([][]float64, len(classes))
	m.B = make([]float64, len(classes))
	for c := range classes {
		m.W[c] = make([]float64, p)
		target := make([]float64, n)
		for i, v := range enc {
			target[i] = -1
			if v == c {
				target[i] = 1
			}
		}
		m.fitBinary(X, target, m.W[c], &m.B[c], m.Seed+int64(c))
	}
	return nil
}

func (m *LinearSVC) fitBinary(X [][]float64, target, w []float64, b *float64, seed int64) {
	rnd := rand.New(rand.NewSource(seed))
	opt := optim.NewSGD(m.Lr)
	opt.WeightDecay = 1 / (m.C * float64(len(X)))
	opt.Decay = 0.01
	for ep := 0; ep < m.Epochs; ep++ {
		for _, batch := range loader.Batches(len(X), m.BatchSize, rnd) {
			scores := make([]float64, len(batch))
			for bi, i := range batch {
				scores[bi] = score(w, *b, X[i])
			}
			_, ds := nn.Hinge(loader.Take(target, batch), scores)
			gW := make([]float64, len(w))
			gb := 0.0
			for bi, i := range batch {
				if ds[bi] == 0 {
					continue
				}
				for j, v := range X[i] {
					if !math.IsNaN(v) {
						gW[j] += ds[bi] * v
					}
				}
				gb += ds[bi]
			}
			opt.Step(w, gW)
			opt.StepBias(b, gb)
		}
		opt.NextEpoch()
	}
}

func score(w []float64, b float64, x []float64) float64 {
	s := b
	for j, v := range x {
		if !math.IsNaN(v) {
			s += w[j] * v
		}
	}
	return s
}

// DecisionFunction returns the per-class margins.
func (m *LinearSVC) DecisionFunction(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			d := make([]float64, len(m.W))
			for c, w := range m.W {
				d[c] = score(w, m.B[c], X[i])
			}
			out[i] = d
		}
	})
	return out
}

func (m *LinearSVC) Classes() []int { return m.classes }

// PredictProba is a softmax over the margins; it ranks but is not calibrated.
func (m *LinearSVC) PredictProba(X [][]float64) [][]float64 {
	d := m.DecisionFunction(X)
	for i := range d {
		d[i] = nn.Softmax(d[i])
	}
	return d
}

func (m *LinearSVC) Predict(X [][]float64) []int {
	return predictFromProba(m.classes, m.DecisionFunction(X))
}

// FeatureImportances is |coef| averaged across classes.
func (m *LinearSVC) FeatureImportances() []float64 { return meanAbsCoef(m.W) }
