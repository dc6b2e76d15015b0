package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns three well-separated classes in the first two features plus a
// pure-noise third feature.
func blobs(perClass int, seed int64) ([][]float64, []int) {
	rnd := rand.New(rand.NewSource(seed))
	centers := [][2]float64{{-5, 0}, {5, 0}, {0, 6}}
	var X [][]float64
	var y []int
	for c, ctr := range centers {
		for i := 0; i < perClass; i++ {
			X = append(X, []float64{
				ctr[0] + rnd.NormFloat64(),
				ctr[1] + rnd.NormFloat64(),
				rnd.NormFloat64(),
			})
			y = append(y, c)
		}
	}
	return X, y
}

func TestRegistryClassifiersSeparateBlobs(t *testing.T) {
	X, y := blobs(40, 1)
	Xt, yt := blobs(20, 2)

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := New(name, 42)
			require.NoError(t, err)
			require.NoError(t, c.Fit(X, y))
			assert.Equal(t, []int{0, 1, 2}, c.Classes())

			acc := Accuracy(yt, c.Predict(Xt))
			assert.Greater(t, acc, 0.85, "accuracy %.3f", acc)

			proba := c.PredictProba(Xt)
			require.Len(t, proba, len(Xt))
			for _, p := range proba {
				require.Len(t, p, 3)
				assert.InDelta(t, 1, sum(p), 1e-9)
			}
		})
	}

	_, err := New("xgboost", 0)
	assert.Error(t, err)
}

func TestFitValidation(t *testing.T) {
	tree := NewDecisionTreeClassifier()
	assert.ErrorIs(t, tree.Fit(nil, nil), ErrEmptyInput)
	assert.ErrorIs(t, tree.Fit([][]float64{{1}}, []int{0, 1}), ErrLength)
	assert.Error(t, tree.Fit([][]float64{{1}, {1, 2}}, []int{0, 1}))
}

func TestTreeImportancesFavourInformativeFeature(t *testing.T) {
	X := make([][]float64, 0, 100)
	y := make([]int, 0, 100)
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		x0 := float64(i)
		X = append(X, []float64{rnd.Float64(), x0})
		label := 0
		if x0 >= 50 {
			label = 1
		}
		y = append(y, label)
	}
	tree := NewDecisionTreeClassifier(WithMaxDepth(3), WithRandomState(1))
	require.NoError(t, tree.Fit(X, y))

	imp := tree.FeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1, imp[1], 1e-9)
	assert.Equal(t, 1.0, Accuracy(y, tree.Predict(X)))
	assert.Equal(t, 0, argmax(tree.root.left.probas))
	assert.InDelta(t, 49.5, tree.root.threshold, 1e-9)
}

func TestTreeRoutesMissingValues(t *testing.T) {
	nan := math.NaN()
	X := [][]float64{{1}, {2}, {nan}, {nan}, {10}, {11}}
	y := []int{0, 0, 0, 0, 1, 1}
	tree := NewDecisionTreeClassifier(WithRandomState(1))
	require.NoError(t, tree.Fit(X, y))

	assert.Equal(t, []int{0, 1, 0}, tree.Predict([][]float64{{1.5}, {12}, {nan}}))
}

func TestPruneCollapsesNoise(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []int{0, 1, 0, 0}
	tree := NewDecisionTreeClassifier(WithRandomState(1))
	require.NoError(t, tree.Fit(X, y))

	pruned, err := tree.PruneReducedError([][]float64{{1}, {2}, {3}, {4}}, []int{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Positive(t, pruned)
	assert.Equal(t, []int{0, 0, 0, 0}, tree.Predict(X))

	_, err = NewDecisionTreeClassifier().PruneReducedError(X, y)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestForestImportances(t *testing.T) {
	X, y := blobs(30, 5)
	rf := NewRandomForest(WithNEstimators(20), WithForestSeed(9))
	require.NoError(t, rf.Fit(X, y))
	imp := rf.FeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1, sum(imp), 1e-9)
	assert.Less(t, imp[2], imp[0])
	assert.Less(t, imp[2], imp[1])
}

func TestLinearImportancesAreMeanAbsCoef(t *testing.T) {
	m := &LogisticRegression{W: [][]float64{{1, -2}, {-3, 0}}}
	assert.Equal(t, []float64{2, 1}, m.FeatureImportances())
}

func TestExpectedClass(t *testing.T) {
	X, y := blobs(20, 7)
	nb := NewGaussianNB()
	require.NoError(t, nb.Fit(X, y))

	e := ExpectedClass(nb, [][]float64{{-5, 0, 0}, {0, 6, 0}})
	assert.InDelta(t, 0, e[0], 0.05)
	assert.InDelta(t, 2, e[1], 0.05)
}

func TestEvaluate(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 2}
	yPred := []int{0, 1, 1, 1, 0}

	labels, cm := ConfusionMatrix(yTrue, yPred)
	assert.Equal(t, []int{0, 1, 2}, labels)
	assert.Equal(t, [][]int{{1, 1, 0}, {0, 2, 0}, {1, 0, 0}}, cm)

	r := Evaluate(yTrue, yPred)
	assert.InDelta(t, 0.6, r.Accuracy, 1e-12)
	// precision: 0.5, 2/3, 0 ; recall: 0.5, 1, 0
	assert.InDelta(t, (0.5+2.0/3)/3, r.Precision, 1e-12)
	assert.InDelta(t, 0.5, r.Recall, 1e-12)
	assert.InDelta(t, (0.5+0.8)/3, r.F1, 1e-12)
	assert.Equal(t, 5, r.Support)
}

func TestPCAFindsDominantAxis(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	X := make([][]float64, 200)
	for i := range X {
		X[i] = []float64{rnd.NormFloat64() * 10, rnd.NormFloat64() * 0.1}
	}
	pca := NewPCA(2)
	require.NoError(t, pca.Fit(X))
	assert.InDelta(t, 1, pca.Components[0][0], 1e-3)
	assert.InDelta(t, 1, math.Abs(pca.Components[1][1]), 1e-3)
	assert.Greater(t, pca.Explained[0], pca.Explained[1])
	assert.Greater(t, pca.ExplainedRatio()[0], 0.99)

	out, err := pca.Transform(X[:3])
	require.NoError(t, err)
	require.Len(t, out[0], 2)

	_, err = NewPCA(1).Transform(X)
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.Error(t, NewPCA(3).Fit(X))
}

func TestNewWithParams(t *testing.T) {
	p := DefaultParams()
	p.DecisionTree.Criterion = "entropy"
	p.DecisionTree.MinImpurityDecrease = 0.01
	p.RandomForest.Bootstrap = false
	p.RandomForest.MaxFeatures = 2
	p.LogisticRegression.Epochs = 7
	p.LogisticRegression.L2 = 0.5
	p.LinearSVC.C = 3
	p.KNN.K = 9

	c, err := NewWithParams("decision_tree", p, 1)
	require.NoError(t, err)
	tree := c.(*DecisionTreeClassifier)
	assert.Equal(t, "entropy", tree.Criterion)
	assert.Equal(t, 0.01, tree.MinImpurityDecrease)
	assert.Equal(t, int64(1), tree.RandomState)

	c, err = NewWithParams("random_forest", p, 1)
	require.NoError(t, err)
	rf := c.(*RandomForest)
	assert.False(t, rf.Bootstrap)
	assert.Equal(t, 2, rf.MaxFeatures)

	c, err = NewWithParams("logistic_regression", p, 1)
	require.NoError(t, err)
	lr := c.(*LogisticRegression)
	assert.Equal(t, 7, lr.Epochs)
	assert.Equal(t, 0.5, lr.L2)
	assert.Equal(t, 64, lr.BatchSize)

	c, err = NewWithParams("linear_svc", p, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, c.(*LinearSVC).C)

	c, err = NewWithParams("knn", p, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, c.(*KNN).K)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.DecisionTree.Criterion = "mse"
	p.KNN.K = 0
	p.AdaBoost.LearningRate = 0
	err := p.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "criterion")
	assert.ErrorContains(t, err, "knn.k")
	assert.ErrorContains(t, err, "adaboost.learning_rate")
}
