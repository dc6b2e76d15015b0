package data

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCSVRoundTripKeepsNaN(t *testing.T) {
	in := "Ticker,date,ROE,P/E\nAAPL,2021-03-31,0.3,\nMSFT,2021-03-31,NaN,25.5\n"
	f, err := ReadCSV(context.Background(), strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"ROE", "P/E"}, f.Columns)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, "AAPL", f.Rows[0].Ticker)
	assert.Equal(t, day("2021-03-31"), f.Rows[0].Date)
	assert.True(t, math.IsNaN(f.Rows[0].Values[1]))
	assert.True(t, math.IsNaN(f.Rows[1].Values[0]))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))
	assert.Equal(t, "Ticker,date,ROE,P/E\nAAPL,2021-03-31,0.3,\nMSFT,2021-03-31,,25.5\n", buf.String())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("a,b\n1,2\n"))
	assert.Error(t, err)

	_, err = ReadCSV(context.Background(), strings.NewReader("Ticker,date,x\nA,03/31/2021,1\n"))
	assert.ErrorContains(t, err, "bad date")
}

func TestReadTickers(t *testing.T) {
	in := "Symbol,Name\nAAPL,Apple\n,Blank\nMSFT,Microsoft\nAAPL,Dup\n"
	got, err := ReadTickers(strings.NewReader(in), "Symbol")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	_, err = ReadTickers(strings.NewReader(in), "Ticker")
	assert.Error(t, err)
}

func TestFrameOps(t *testing.T) {
	f := NewFrame("a", "b")
	require.NoError(t, f.Append("Z", day("2021-02-01"), []float64{1, 2}))
	require.NoError(t, f.Append("A", day("2021-03-01"), []float64{3, 4}))
	f.AppendMap("A", day("2021-01-01"), map[string]float64{"b": 6})
	assert.Error(t, f.Append("A", day("2021-01-01"), []float64{1}))

	f.Sort()
	assert.Equal(t, []string{"A", "A", "Z"}, []string{f.Rows[0].Ticker, f.Rows[1].Ticker, f.Rows[2].Ticker})
	assert.True(t, math.IsNaN(f.Rows[0].Values[0]))

	b, err := f.Column("b")
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 4, 2}, b)

	require.NoError(t, f.AddColumn("c", []float64{7, 8, 9}))
	assert.Error(t, f.AddColumn("c", []float64{7, 8, 9}))

	sel := f.Drop("a")
	assert.Equal(t, []string{"b", "c"}, sel.Columns)
	assert.Equal(t, []float64{4, 8}, sel.Rows[1].Values)

	win := f.Between(day("2021-01-15"), day("2021-02-01"))
	require.Len(t, win.Rows, 1)
	assert.Equal(t, "Z", win.Rows[0].Ticker)

	groups, order := f.Groups()
	assert.Equal(t, []string{"A", "Z"}, order)
	assert.Equal(t, []int{0, 1}, groups["A"])
}

func TestConcatUnionsColumns(t *testing.T) {
	a := NewFrame("x")
	a.AppendMap("A", day("2021-01-01"), map[string]float64{"x": 1})
	b := NewFrame("y", "x")
	b.AppendMap("B", day("2021-01-01"), map[string]float64{"x": 2, "y": 3})

	c := Concat(a, b)
	assert.Equal(t, []string{"x", "y"}, c.Columns)
	assert.True(t, math.IsNaN(c.Rows[0].Values[1]))
	assert.Equal(t, []float64{2, 3}, c.Rows[1].Values)
}
