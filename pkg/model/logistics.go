package model

import (
	"math"
	"math/rand"

	"stockml/pkg/loader"
	"stockml/pkg/nn"
	"stockml/pkg/optim"
)

// LogisticRegression is multinomial (softmax) regression trained with
// mini-batch gradient descent.
type LogisticRegression struct {
	W         [][]float64 // classes x features
	B         []float64
	Lr        float64
	L2        float64
	Epochs    int
	BatchSize int
	Seed      int64

	classes []int
	Loss    float64 // last epoch mean cross-entropy
}

type LogisticOption func(*LogisticRegression)

func WithLearningRate(lr float64) LogisticOption {
	return func(m *LogisticRegression) { m.Lr = lr }
}
func WithEpochs(n int) LogisticOption    { return func(m *LogisticRegression) { m.Epochs = n } }
func WithBatchSize(n int) LogisticOption { return func(m *LogisticRegression) { m.BatchSize = n } }
func WithL2(v float64) LogisticOption    { return func(m *LogisticRegression) { m.L2 = v } }
func WithLogisticSeed(seed int64) LogisticOption {
	return func(m *LogisticRegression) { m.Seed = seed }
}

// NewLogisticRegression returns a model with defaults suited to standardized features.
func NewLogisticRegression(opts ...LogisticOption) *LogisticRegression {
	m := &LogisticRegression{Lr: 0.1, L2: 1e-4, Epochs: 200, BatchSize: 64}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Fit trains the model. Weights start at small random values to break symmetry.
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	_, p, err := validate(X, y)
	if err != nil {
		return err
	}
	classes, enc := labelIndex(y)
	m.classes = classes
	k := len(classes)
	rnd := rand.New(rand.NewSource(m.Seed))
	m.W = make([][]float64, k)
	for c := range m.W {
		m.W[c] = make([]float64, p)
		for j := range m.W[c] {
			m.W[c][j] = rnd.NormFloat64() * 0.01
		}
	}
	m.B = make([]float64, k)

	opt := optim.NewSGD(m.Lr)
	opt.WeightDecay = m.L2
	opt.Decay = 0.01
	for ep := 0; ep < m.Epochs; ep++ {
		total := 0.0
		for _, batch := range loader.Batches(len(X), m.BatchSize, rnd) {
			bx := loader.Take(X, batch)
			by := loader.Take(enc, batch)
			loss, dz := nn.CrossEntropy(by, m.logits(bx, true))
			total += loss * float64(len(batch))
			for c := 0; c < k; c++ {
				gW := make([]float64, p)
				gb := 0.0
				for i, row := range bx {
					d := dz[i][c]
					for j, v := range row {
						if !math.IsNaN(v) {
							gW[j] += d * v
						}
					}
					gb += d
				}
				opt.Step(m.W[c], gW)
				opt.StepBias(&m.B[c], gb)
			}
		}
		m.Loss = total / float64(len(X))
		opt.NextEpoch()
	}
	return nil
}

// logits returns softmax probabilities when proba is set, raw scores otherwise.
// NaN features contribute nothing.
func (m *LogisticRegression) logits(X [][]float64, proba bool) [][]float64 {
	out := make([][]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			z := make([]float64, len(m.W))
			for c, w := range m.W {
				s := m.B[c]
				for j, v := range X[i] {
					if !math.IsNaN(v) {
						s += w[j] * v
					}
				}
				z[c] = s
			}
			if proba {
				z = nn.Softmax(z)
			}
			out[i] = z
		}
	})
	return out
}

func (m *LogisticRegression) Classes() []int { return m.classes }

func (m *LogisticRegression) PredictProba(X [][]float64) [][]float64 { return m.logits(X, true) }

func (m *LogisticRegression) Predict(X [][]float64) []int {
	return predictFromProba(m.classes, m.PredictProba(X))
}

// FeatureImportances is |coef| averaged across classes.
func (m *LogisticRegression) FeatureImportances() []float64 {
	return meanAbsCoef(m.W)
}

func meanAbsCoef(W [][]float64) []float64 {
	if len(W) == 0 {
		return nil
	}
	out := make([]float64, len(W[0]))
	for _, w := range W {
		for j, v := range w {
			out[j] += math.Abs(v) / float64(len(W))
		}
	}
	return out
}
