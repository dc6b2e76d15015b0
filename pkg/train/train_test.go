package train

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stockml/pkg/data"
	"stockml/pkg/fmp"
	"stockml/pkg/model"
	"stockml/pkg/universe"
)

func quarter(k int) time.Time { return time.Date(2019, time.Month(1+3*k), 1, 0, 0, 0, 0, time.UTC) }

func signal(ticker, k int) float64 {
	if (ticker+k)%2 == 0 {
		return 1
	}
	return -1
}

// synthetic builds 10 tickers over 16 quarters where the signal column
// decides whether the next close rises or falls by 15%.
func synthetic() *data.Frame { return syntheticFlipped(-1, -1) }

// syntheticFlipped is synthetic with the move after (ticker, k) reversed.
func syntheticFlipped(ticker, k int) *data.Frame {
	f := data.NewFrame("signal", "noise", CloseColumn)
	for i := 0; i < 10; i++ {
		price := 100.0
		for q := 0; q < 16; q++ {
			s := signal(i, q)
			f.Append(fmt.Sprintf("T%d", i), quarter(q), []float64{s, math.Sin(float64(i*16 + q)), price})
			if i == ticker && q == k {
				s = -s
			}
			price *= 1 + 0.15*s
		}
	}
	return f
}

func options() Options {
	opts := DefaultOptions()
	opts.TrainEnd = quarter(8) // 2021-01-01
	opts.ValEnd = quarter(12)  // 2022-01-01
	opts.End = time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)
	opts.Model = "decision_tree"
	opts.Selector = "none"
	opts.TopN = 3
	return opts
}

func TestRun(t *testing.T) {
	res, err := New(options(), zaptest.NewLogger(t)).Run(synthetic())
	require.NoError(t, err)

	assert.Equal(t, []string{"signal", "noise"}, res.Features)
	assert.Equal(t, 80, res.TrainRows)
	assert.Equal(t, 1.0, res.Validation.Accuracy)
	assert.Equal(t, 40, res.Validation.Support)
	assert.Equal(t, 30, res.Test.Support, "last quarter has no next close")

	require.Len(t, res.Predictions, 8)
	for k, p := range res.Predictions {
		assert.Equal(t, quarter(8+k), p.Quarter)
		require.Len(t, p.Tickers, 3)
		for _, ticker := range p.Tickers {
			var i int
			fmt.Sscanf(ticker, "T%d", &i)
			assert.Equal(t, 1.0, signal(i, 8+k), "quarter %d picked %s", k, ticker)
		}
	}
}

func TestRunWithUniverse(t *testing.T) {
	opts := options()
	opts.Universe = universe.Timeline{{Date: quarter(0), Symbols: []string{"T0", "T1"}}}
	res, err := New(opts, nil).Run(synthetic())
	require.NoError(t, err)
	for k, p := range res.Predictions {
		require.Len(t, p.Tickers, 2, "only two members are candidates")
		winner := "T0"
		if signal(1, 8+k) > 0 {
			winner = "T1"
		}
		assert.Equal(t, winner, p.Tickers[0])
	}
}

func TestRunRequiresClose(t *testing.T) {
	f := data.NewFrame("signal")
	_, err := New(options(), nil).Run(f)
	assert.Error(t, err)
}

func TestRunWithoutTrainingRows(t *testing.T) {
	opts := options()
	opts.TrainEnd = quarter(0)
	_, err := New(opts, nil).Run(synthetic())
	assert.ErrorIs(t, err, ErrNoTrainingRows)
}

func TestPredictBeforeFit(t *testing.T) {
	_, err := New(options(), nil).Predict(synthetic(), []time.Time{quarter(1)})
	assert.Error(t, err)
}

type fakePrices struct{ fail string }

func (f fakePrices) HistoricalPrices(_ context.Context, symbol string, from, to time.Time) ([]fmp.PriceBar, error) {
	if symbol == f.fail {
		return nil, errors.New("status 404")
	}
	var out []fmp.PriceBar
	for d := to; !d.Before(from); d = d.AddDate(0, 0, -7) {
		out = append(out, fmp.PriceBar{Date: fmp.Date{Time: d}, Close: float64(d.Month())})
	}
	return out, nil
}

func TestAttachClose(t *testing.T) {
	f := data.NewFrame("x")
	f.Append("AAA", time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC), []float64{1})
	f.Append("AAA", time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), []float64{2})
	f.Append("BAD", time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), []float64{3})

	require.NoError(t, AttachClose(context.Background(), f, fakePrices{fail: "BAD"}, 2, nil))
	closes, err := f.Column(CloseColumn)
	require.NoError(t, err)
	assert.Equal(t, 6.0, closes[1])
	assert.False(t, math.IsNaN(closes[0]))
	assert.True(t, math.IsNaN(closes[2]))

	require.NoError(t, AttachClose(context.Background(), f, fakePrices{}, 1, nil), "existing column is kept")
	assert.Len(t, f.Columns, 2)
}

func TestCompare(t *testing.T) {
	scores, err := Compare(context.Background(), synthetic(), []string{"naive_bayes", "decision_tree"}, 4, options(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.ElementsMatch(t, []string{"naive_bayes", "decision_tree"}, []string{scores[0].Model, scores[1].Model})
	assert.GreaterOrEqual(t, scores[0].Accuracy, scores[1].Accuracy)
	for _, s := range scores {
		assert.Equal(t, 4, s.Folds)
	}
	byName := map[string]Score{scores[0].Model: scores[0], scores[1].Model: scores[1]}
	assert.Equal(t, 1.0, byName["decision_tree"].Accuracy)
}

func TestCompareHoldout(t *testing.T) {
	scores, err := Compare(context.Background(), synthetic(), []string{"decision_tree"}, 0, options(), nil)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 1, scores[0].Folds)
}

func TestCompareUnknownModel(t *testing.T) {
	_, err := Compare(context.Background(), synthetic(), []string{"xgboost"}, 2, options(), nil)
	assert.ErrorContains(t, err, "unknown classifier")
}

func TestRunWithDateFeatures(t *testing.T) {
	opts := options()
	opts.DateFeatures = true
	src := synthetic()
	res, err := New(opts, nil).Run(src)
	require.NoError(t, err)
	assert.Contains(t, res.Features, "month_sin")
	assert.Contains(t, res.Features, "dayofyear_cos")
	assert.Len(t, src.Columns, 3, "input frame is not modified")
	assert.Len(t, res.Predictions, 8)
}

func TestRunWithWinsorize(t *testing.T) {
	opts := options()
	opts.Winsorize = 5
	res, err := New(opts, nil).Run(synthetic())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Validation.Accuracy)
}

func TestRunPrunesDecisionTree(t *testing.T) {
	// T0 rises after quarter 1 although its signal says fall, so the tree
	// grows a noise split that the validation window does not support.
	opts := options()
	opts.Prune = false
	res, err := New(opts, nil).Run(syntheticFlipped(0, 1))
	require.NoError(t, err)
	assert.Zero(t, res.Pruned)

	opts.Prune = true
	res, err = New(opts, zaptest.NewLogger(t)).Run(syntheticFlipped(0, 1))
	require.NoError(t, err)
	assert.Positive(t, res.Pruned)
	assert.Equal(t, 1.0, res.Validation.Accuracy)

	opts.Model = "naive_bayes"
	res, err = New(opts, nil).Run(syntheticFlipped(0, 1))
	require.NoError(t, err)
	assert.Zero(t, res.Pruned, "only decision trees are pruned")
}

func TestRunUsesConfiguredParams(t *testing.T) {
	opts := options()
	opts.Model = "knn"
	opts.Params.KNN.K = 1
	tr := New(opts, nil)
	_, err := tr.Run(synthetic())
	require.NoError(t, err)
	knn, ok := tr.clf.(*model.KNN)
	require.True(t, ok)
	assert.Equal(t, 1, knn.K)
}

func TestModelRoundTrip(t *testing.T) {
	for _, tc := range []struct{ model, selector, scaler string }{
		{"decision_tree", "none", "zscore"},
		{"random_forest", "importance", "quantile-normal"},
		{"gradient_boosting", "cluster", "power"},
		{"logistic_regression", "pca", "sigmoid"},
		{"knn", "none", "robust"},
	} {
		t.Run(tc.model, func(t *testing.T) {
			opts := options()
			opts.Model, opts.Selector, opts.Scaler = tc.model, tc.selector, tc.scaler
			opts.Winsorize = 1
			opts.Params.RandomForest.NEstimators = 10
			opts.Params.GradientBoosting.NEstimators = 10
			tr := New(opts, nil)
			res, err := tr.Run(synthetic())
			require.NoError(t, err)

			m, err := tr.Model()
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, m.Save(&buf))

			loaded, err := LoadModel(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.model, loaded.Name)
			assert.Equal(t, res.Features, loaded.Features)

			restored := Restore(loaded, options(), nil)
			preds, err := restored.Forecast(synthetic())
			require.NoError(t, err)
			assert.Equal(t, res.Predictions, preds)
		})
	}
}

func TestModelBeforeFit(t *testing.T) {
	_, err := New(options(), nil).Model()
	assert.ErrorIs(t, err, model.ErrNotFitted)
}

func TestLoadModelRejectsOtherVersions(t *testing.T) {
	tr := New(options(), nil)
	_, err := tr.Run(synthetic())
	require.NoError(t, err)
	m, err := tr.Model()
	require.NoError(t, err)
	m.Version = 99
	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))
	_, err = LoadModel(&buf)
	assert.ErrorIs(t, err, ErrModelVersion)

	_, err = LoadModel(bytes.NewReader([]byte("not gob")))
	assert.Error(t, err)
}
