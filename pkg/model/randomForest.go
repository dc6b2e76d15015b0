package model

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// RandomForest for classification
type RandomForest struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => sqrt(p)
	Bootstrap       bool
	RandomState     int64

	Trees       []*DecisionTreeClassifier
	classes     []int
	importances []float64
}

// RandomForestOption functional config for RandomForest
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithForestMaxDepth(d int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxDepth = d }
}
func WithForestMaxFeatures(k int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = k }
}
func WithForestSeed(seed int64) RandomForestOption {
	return func(rf *RandomForest) { rf.RandomState = seed }
}

// NewRandomForest initializes the forest with sensible defaults.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest. Each tree sees a bootstrap sample drawn as an index
// slice over X; the data itself is never copied.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	n, p, err := validate(X, y)
	if err != nil {
		return err
	}
	if rf.NEstimators <= 0 {
		return errors.New("randomforest: NEstimators must be positive")
	}
	classes, enc := labelIndex(y)
	rf.classes = classes
	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(p))))
	}

	rf.Trees = make([]*DecisionTreeClassifier, rf.NEstimators)
	var wg sync.WaitGroup
	for i := 0; i < rf.NEstimators; i++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			seed := rf.RandomState + int64(t)
			treeRand := rand.New(rand.NewSource(seed))
			sample := make([]int, n)
			for j := range sample {
				if rf.Bootstrap {
					sample[j] = treeRand.Intn(n)
				} else {
					sample[j] = j
				}
			}
			tree := NewDecisionTreeClassifier(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(maxFeatures),
				WithRandomState(seed),
			)
			tree.fit(X, enc, classes, sample, nil)
			rf.Trees[t] = tree
		}(i)
	}
	wg.Wait()

	rf.importances = make([]float64, p)
	for _, t := range rf.Trees {
		for j, v := range t.importances {
			rf.importances[j] += v / float64(len(rf.Trees))
		}
	}
	return nil
}

// Classes returns the labels seen during Fit.
func (rf *RandomForest) Classes() []int { return rf.classes }

// FeatureImportances averages the trees' impurity importances.
func (rf *RandomForest) FeatureImportances() []float64 { return rf.importances }

// Predict returns the majority vote of all trees. Ties go to the smaller label.
func (rf *RandomForest) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	parallelRows(len(X), func(start, end int) {
		votes := make([]float64, len(rf.classes))
		for i := start; i < end; i++ {
			clear(votes)
			for _, t := range rf.Trees {
				votes[argmax(t.predictProbaSingle(X[i]))]++
			}
			out[i] = rf.classes[argmax(votes)]
		}
	})
	return out
}

// PredictProba averages the trees' leaf distributions.
func (rf *RandomForest) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			p := make([]float64, len(rf.classes))
			for _, t := range rf.Trees {
				for k, v := range t.predictProbaSingle(X[i]) {
					p[k] += v / float64(len(rf.Trees))
				}
			}
			out[i] = p
		}
	})
	return out
}
