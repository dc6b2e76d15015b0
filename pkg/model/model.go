// Package model holds the multi-class classifiers used to predict the
// next-period return category of a stock.
package model

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
)

var (
	ErrEmptyInput = errors.New("model: empty input")
	ErrLength     = errors.New("model: X and y length mismatch")
	ErrNotFitted  = errors.New("model: not fitted")
)

// Classifier predicts integer class labels.
// PredictProba rows are aligned with Classes().
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	PredictProba(X [][]float64) [][]float64
	Classes() []int
}

// Importancer is implemented by classifiers that score their input features.
type Importancer interface {
	FeatureImportances() []float64
}

var registry = map[string]func(p Params, seed int64) Classifier{
	"decision_tree": func(p Params, seed int64) Classifier {
		t := p.DecisionTree
		return NewDecisionTreeClassifier(
			WithMaxDepth(t.MaxDepth),
			WithMinSamplesSplit(t.MinSamplesSplit),
			WithMinSamplesLeaf(t.MinSamplesLeaf),
			WithCriterion(t.Criterion),
			WithMaxFeatures(t.MaxFeatures),
			WithMinImpurityDecrease(t.MinImpurityDecrease),
			WithRandomState(seed))
	},
	"random_forest": func(p Params, seed int64) Classifier {
		f := p.RandomForest
		return NewRandomForest(
			WithNEstimators(f.NEstimators),
			WithForestMaxDepth(f.MaxDepth),
			WithForestMaxFeatures(f.MaxFeatures),
			WithBootstrap(f.Bootstrap),
			WithForestSeed(seed))
	},
	"logistic_regression": func(p Params, seed int64) Classifier {
		l := p.LogisticRegression
		return NewLogisticRegression(
			WithLearningRate(l.LearningRate),
			WithEpochs(l.Epochs),
			WithBatchSize(l.BatchSize),
			WithL2(l.L2),
			WithLogisticSeed(seed))
	},
	"naive_bayes": func(Params, int64) Classifier { return NewGaussianNB() },
	"adaboost": func(p Params, seed int64) Classifier {
		return NewAdaBoost(p.AdaBoost.NEstimators, p.AdaBoost.LearningRate, seed)
	},
	"gradient_boosting": func(p Params, seed int64) Classifier {
		g := p.GradientBoosting
		return NewGradientBoosting(g.NEstimators, g.LearningRate, g.MaxDepth, seed)
	},
	"linear_svc": func(p Params, seed int64) Classifier {
		m := NewLinearSVC(seed)
		m.C, m.Epochs = p.LinearSVC.C, p.LinearSVC.Epochs
		return m
	},
	"knn": func(p Params, _ int64) Classifier { return NewKNN(p.KNN.K) },
}

// New returns a classifier by registry name with DefaultParams.
func New(name string, seed int64) (Classifier, error) {
	return NewWithParams(name, DefaultParams(), seed)
}

// NewWithParams returns a classifier by registry name built from p.
func NewWithParams(name string, p Params, seed int64) (Classifier, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("model: unknown classifier %q", name)
	}
	return ctor(p, seed), nil
}

// Names lists the registered classifiers.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func validate(X [][]float64, y []int) (n, p int, err error) {
	if len(X) == 0 {
		return 0, 0, ErrEmptyInput
	}
	if len(y) != len(X) {
		return 0, 0, ErrLength
	}
	p = len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return 0, 0, fmt.Errorf("model: row %d has %d features, want %d", i, len(X[i]), p)
		}
	}
	return len(X), p, nil
}

// labelIndex returns the sorted distinct labels and y mapped to positions in it.
func labelIndex(y []int) ([]int, []int) {
	seen := map[int]struct{}{}
	var classes []int
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			classes = append(classes, v)
		}
	}
	sort.Ints(classes)
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	enc := make([]int, len(y))
	for i, v := range y {
		enc[i] = pos[v]
	}
	return classes, enc
}

func argmax(arr []float64) int {
	best := 0
	for i := 1; i < len(arr); i++ {
		if arr[i] > arr[best] {
			best = i
		}
	}
	return best
}

// predictFromProba picks the most probable class per row.
func predictFromProba(classes []int, proba [][]float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = classes[argmax(p)]
	}
	return out
}

// ExpectedClass returns sum_k p_k * class_k per row; used to rank tickers.
func ExpectedClass(c Classifier, X [][]float64) []float64 {
	classes := c.Classes()
	proba := c.PredictProba(X)
	out := make([]float64, len(proba))
	for i, p := range proba {
		for k, v := range p {
			out[i] += v * float64(classes[k])
		}
	}
	return out
}

// parallelRows splits [0, n) into GOMAXPROCS contiguous chunks.
func parallelRows(n int, body func(start, end int)) {
	workers := runtime.GOMAXPROCS(0)
	per := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * per
		end := min(start+per, n)
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			body(s, e)
		}(start, end)
	}
	wg.Wait()
}

func normalizeSum(v []float64) []float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	out := make([]float64, len(v))
	if s == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / s
	}
	return out
}
