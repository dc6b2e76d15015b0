package dataprep

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockml/pkg/data"
)

var nan = math.NaN()

func TestImputerMedian(t *testing.T) {
	train := [][]float64{{1, nan}, {3, nan}, {100, nan}}
	m := NewImputer(StrategyMedian)
	m.Constant = -1
	require.NoError(t, m.Fit(train))
	assert.Equal(t, []float64{3, -1}, m.Fill)

	out, err := m.Transform([][]float64{{nan, 5}, {math.Inf(1), nan}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 5}, {3, -1}}, out)

	_, err = NewImputer(StrategyMean).Transform(train)
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestForwardFill(t *testing.T) {
	X := [][]float64{{nan, 1}, {2, nan}, {nan, nan}, {4, 5}}
	ForwardFill(X)

	assert.True(t, math.IsNaN(X[0][0]))
	assert.Equal(t, []float64{2, 1}, X[1])
	assert.Equal(t, []float64{2, 1}, X[2])
	assert.Equal(t, []float64{4, 5}, X[3])
}

func TestDropSparseAndDuplicates(t *testing.T) {
	d := time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC)
	f := data.NewFrame("dense", "sparse")
	f.AppendMap("A", d, map[string]float64{"dense": 1})
	f.AppendMap("A", d, map[string]float64{"dense": 2})
	f.AppendMap("B", d, map[string]float64{"dense": 3, "sparse": 1})

	out, dropped := DropSparseColumns(f, 0.5)
	assert.Equal(t, []string{"sparse"}, dropped)
	assert.Equal(t, []string{"dense"}, out.Columns)

	uniq := DropDuplicates(out)
	require.Len(t, uniq.Rows, 2)
	assert.Equal(t, 1.0, uniq.Rows[0].Values[0])
}

func TestDateFeatures(t *testing.T) {
	jan1 := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC) // Friday
	got := DateFeatures(jan1)
	require.Len(t, got, len(DateFeatureNames))

	assert.InDelta(t, 0, got[0], 1e-12) // month_sin
	assert.InDelta(t, 1, got[1], 1e-12) // month_cos
	assert.InDelta(t, 0, got[2], 1e-12) // quarter_sin
	s, c := Cyclical(5, 7)
	assert.InDelta(t, s, got[4], 1e-12)
	assert.InDelta(t, c, got[5], 1e-12)

	jul := DateFeatures(time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC))
	assert.InDelta(t, -1, jul[1], 1e-12)
	assert.InDelta(t, -1, jul[3], 1e-12)

	f := data.NewFrame("x")
	f.AppendMap("A", jan1, map[string]float64{"x": 1})
	require.NoError(t, EncodeDates(f))
	assert.Equal(t, append([]string{"x"}, DateFeatureNames...), f.Columns)
}

func TestReturns(t *testing.T) {
	pc := PctChange([]float64{100, 110, 99})
	assert.True(t, math.IsNaN(pc[0]))
	assert.InDelta(t, 0.1, pc[1], 1e-12)
	assert.InDelta(t, -0.1, pc[2], 1e-12)

	lr := LogReturns([]float64{1, math.E})
	assert.InDelta(t, 1, lr[1], 1e-12)

	assert.Equal(t, [][]float64{{3, 1}}, FeatureSelect([][]float64{{1, 2, 3}}, []int{2, 0}))
}

func TestWinsorizer(t *testing.T) {
	w := NewWinsorizer(0)
	_, err := w.Transform([][]float64{{1}})
	assert.ErrorIs(t, err, ErrNotFitted)

	w = &Winsorizer{Lower: 0, Upper: 50}
	require.NoError(t, w.Fit([][]float64{{0, nan}, {10, nan}, {100, nan}}))
	out, err := w.Transform([][]float64{{-5, 3}, {500, nan}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[0][0])
	assert.Equal(t, 10.0, out[1][0])
	assert.Equal(t, 3.0, out[0][1], "all-NaN column is left unbounded")
	assert.True(t, math.IsNaN(out[1][1]))

	_, err = w.Transform([][]float64{{1, 2, 3}})
	assert.Error(t, err)
}
