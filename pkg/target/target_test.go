package target

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockml/pkg/data"
)

func TestBin(t *testing.T) {
	c := NewFiveCategory()
	tests := []struct {
		pct  float64
		want int
	}{
		{-50, 0},
		{-10, 0},
		{-9.99, 1},
		{0, 1},
		{0.01, 2},
		{5, 2},
		{7, 3},
		{10, 3},
		{10.01, 4},
		{math.NaN(), -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Bin(tt.pct), "pct %v", tt.pct)
	}
}

func q(m int) time.Time { return time.Date(2021, time.Month(m), 1, 0, 0, 0, 0, time.UTC) }

func TestLabelsShiftPerTicker(t *testing.T) {
	f := data.NewFrame("close", "x")
	// out of order on purpose
	require.NoError(t, f.Append("A", q(4), []float64{108, 2}))
	require.NoError(t, f.Append("A", q(1), []float64{100, 1}))
	require.NoError(t, f.Append("A", q(7), []float64{88, 3}))
	require.NoError(t, f.Append("B", q(1), []float64{50, 4}))
	require.NoError(t, f.Append("B", q(4), []float64{52, 5}))
	require.NoError(t, f.Append("B", q(7), []float64{math.NaN(), 6}))

	out, y := NewFiveCategory().Labels(f)

	// A: 100->108 (+8) => 3, 108->88 (-18.5) => 0; B: 50->52 (+4) => 2, 52->NaN dropped
	assert.Equal(t, []int{3, 0, 2}, y)
	require.Len(t, out.Rows, 3)
	assert.Equal(t, []float64{100, 1}, out.Rows[0].Values)
	assert.Equal(t, []float64{108, 2}, out.Rows[1].Values)
	assert.Equal(t, "B", out.Rows[2].Ticker)
	assert.Equal(t, q(1), out.Rows[2].Date)
}

func TestLabelsWithoutClose(t *testing.T) {
	f := data.NewFrame("x")
	require.NoError(t, f.Append("A", q(1), []float64{1}))
	require.NoError(t, f.Append("A", q(4), []float64{2}))
	require.NoError(t, f.Append("A", q(7), []float64{3}))

	out, y := NewFiveCategory().Labels(f)
	assert.Equal(t, []int{0, 0}, y)
	assert.Len(t, out.Rows, 2)
}

func TestLabelsFromZeroClose(t *testing.T) {
	f := data.NewFrame("close")
	require.NoError(t, f.Append("A", q(1), []float64{0}))
	require.NoError(t, f.Append("A", q(4), []float64{5}))
	require.NoError(t, f.Append("A", q(7), []float64{0}))
	require.NoError(t, f.Append("B", q(1), []float64{0}))
	require.NoError(t, f.Append("B", q(4), []float64{0}))
	require.NoError(t, f.Append("B", q(7), []float64{1}))

	out, y := NewFiveCategory().Labels(f)

	// A: 0->5 is +Inf => 4, 5->0 (-100) => 0; B: 0->0 is undefined, 0->1 => 4
	assert.Equal(t, []int{4, 0, 4}, y)
	require.Len(t, out.Rows, 3)
	assert.Equal(t, "B", out.Rows[2].Ticker)
	assert.Equal(t, q(4), out.Rows[2].Date)
	assert.Equal(t, 4, NewFiveCategory().Bin(math.Inf(1)))
	assert.Equal(t, -1, NewFiveCategory().Bin(math.Inf(-1)))
}
