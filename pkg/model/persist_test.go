package model

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiersSurviveGob(t *testing.T) {
	X, y := blobs(30, 3)
	Xt, _ := blobs(10, 4)

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			c, err := New(name, 7)
			require.NoError(t, err)
			require.NoError(t, c.Fit(X, y))

			var buf bytes.Buffer
			var in Classifier = c
			require.NoError(t, gob.NewEncoder(&buf).Encode(&in))
			var out Classifier
			require.NoError(t, gob.NewDecoder(&buf).Decode(&out))

			assert.IsType(t, c, out)
			assert.Equal(t, c.Classes(), out.Classes())
			assert.Equal(t, c.Predict(Xt), out.Predict(Xt))
			assert.Equal(t, c.PredictProba(Xt), out.PredictProba(Xt))
			if imp, ok := c.(Importancer); ok {
				assert.Equal(t, imp.FeatureImportances(), out.(Importancer).FeatureImportances())
			}
		})
	}
}

func TestTreeMarshalKeepsPrunedShape(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	tree := NewDecisionTreeClassifier(WithRandomState(1), WithCriterion("entropy"))
	require.NoError(t, tree.Fit(X, []int{0, 1, 0, 0}))
	_, err := tree.PruneReducedError(X, []int{0, 0, 0, 0})
	require.NoError(t, err)

	b, err := tree.MarshalBinary()
	require.NoError(t, err)
	var got DecisionTreeClassifier
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, "entropy", got.Criterion)
	assert.Equal(t, tree.Predict(X), got.Predict(X))
	nodes, _ := flattenTree(got.root, nil)
	want, _ := flattenTree(tree.root, nil)
	assert.Equal(t, want, nodes)

	var empty DecisionTreeClassifier
	b, err = NewDecisionTreeClassifier().MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, empty.UnmarshalBinary(b))
	assert.Nil(t, empty.root)
}
