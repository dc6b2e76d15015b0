package backtest

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockml/pkg/fmp"
)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

// fakePrices serves one close per (symbol, date).
type fakePrices struct {
	bars  map[string][]fmp.PriceBar
	calls atomic.Int32
	fail  string
}

func (f *fakePrices) HistoricalPrices(_ context.Context, symbol string, from, to time.Time) ([]fmp.PriceBar, error) {
	f.calls.Add(1)
	if symbol == f.fail {
		return nil, errors.New("status 500")
	}
	var out []fmp.PriceBar
	for _, b := range f.bars[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func bar(d time.Time, adj, close float64) fmp.PriceBar {
	return fmp.PriceBar{Date: fmp.Date{Time: d}, AdjClose: adj, Close: close}
}

func fixture() *fakePrices {
	return &fakePrices{bars: map[string][]fmp.PriceBar{
		"AAA": {
			bar(date(2023, 1, 1), 10, 10),
			bar(date(2023, 4, 1), 12, 12),
			bar(date(2023, 6, 30), 15, 15),
		},
		"BBB": {
			bar(date(2022, 12, 28), 0, 20), // adjClose missing
			bar(date(2023, 3, 31), 0, 18),
			bar(date(2023, 6, 30), 0, 18),
		},
		"ZERO": {
			bar(date(2023, 1, 1), 0, 0),
			bar(date(2023, 4, 1), 5, 5),
		},
		"^GSPC": {
			bar(date(2022, 12, 30), 4000, 4000),
			bar(date(2023, 4, 1), 4200, 4200),
			bar(date(2023, 6, 30), 4400, 4400),
		},
	}}
}

var preds = []Prediction{
	{Quarter: date(2023, 4, 1), Tickers: []string{"AAA"}},
	{Quarter: date(2023, 1, 1), Tickers: []string{"AAA", "BBB", "ZERO", "MISSING"}},
}

func TestPriceOn(t *testing.T) {
	src := fixture()
	b := New(src)
	ctx := context.Background()

	p, ok, err := b.PriceOn(ctx, "BBB", date(2023, 1, 1))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 20.0, p, "close used when adjClose is absent, within the buffer")

	_, ok, err = b.PriceOn(ctx, "AAA", date(2022, 12, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	before := src.calls.Load()
	_, _, _ = b.PriceOn(ctx, "BBB", date(2023, 1, 1))
	assert.Equal(t, before, src.calls.Load(), "memoized")
}

func TestPriceOnFailureIsMissing(t *testing.T) {
	src := fixture()
	src.fail = "AAA"
	_, ok, err := New(src).PriceOn(context.Background(), "AAA", date(2023, 1, 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStrategyCurve(t *testing.T) {
	b := New(fixture(), WithWorkers(2))
	curve, err := b.StrategyCurve(context.Background(), preds, date(2023, 1, 1), date(2023, 6, 30))
	require.NoError(t, err)
	require.Len(t, curve, 3)

	assert.Equal(t, Point{Date: date(2023, 1, 1), Equity: 100}, curve[0])
	// AAA +20%, BBB -10%; ZERO has a zero start price and MISSING no prices.
	assert.InDelta(t, 105, curve[1].Equity, 1e-9)
	assert.Equal(t, date(2023, 4, 1), curve[1].Date)
	assert.InDelta(t, 105*1.25, curve[2].Equity, 1e-9)
	assert.Equal(t, date(2023, 6, 30), curve[2].Date)
}

func TestStrategyCurveSkipsEarlyPredictions(t *testing.T) {
	b := New(fixture())
	curve, err := b.StrategyCurve(context.Background(), preds, date(2023, 2, 1), date(2023, 6, 30))
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.InDelta(t, 125, curve[1].Equity, 1e-9)
}

func TestStrategyCurveNoPricedTickers(t *testing.T) {
	b := New(fixture())
	curve, err := b.StrategyCurve(context.Background(),
		[]Prediction{{Quarter: date(2023, 1, 1), Tickers: []string{"MISSING"}}},
		date(2023, 1, 1), date(2023, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, 100.0, curve[1].Equity)
}

func TestBenchmarkCurve(t *testing.T) {
	b := New(fixture(), WithInitialEquity(1000))
	curve, err := b.BenchmarkCurve(context.Background(), preds, date(2023, 1, 1), date(2023, 6, 30))
	require.NoError(t, err)
	require.Len(t, curve, 3, "start equals the first quarter")
	assert.Equal(t, 1000.0, curve[0].Equity)
	assert.InDelta(t, 1050, curve[1].Equity, 1e-9)
	assert.InDelta(t, 1100, curve[2].Equity, 1e-9)
}

func TestBenchmarkCurveWithoutStartPrice(t *testing.T) {
	b := New(fixture(), WithBenchmark("NOPE"))
	_, err := b.BenchmarkCurve(context.Background(), preds, date(2023, 1, 1), date(2023, 6, 30))
	assert.ErrorIs(t, err, ErrNoBenchmarkPrice)
}

func TestRunWritesCSV(t *testing.T) {
	b := New(fixture())
	rep, err := b.Run(context.Background(), preds, date(2022, 12, 31), date(2023, 6, 30))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "QuarterEnd,Equity,Benchmark_Equity", lines[0])
	assert.Equal(t, "2022-12-31,100,100", lines[1])
	assert.Len(t, lines, 5, "header, start and three quarter points")

	s := Summarize(rep.Strategy)
	assert.InDelta(t, 0.3125, s.TotalReturn, 1e-9)
	assert.Equal(t, 0.0, s.MaxDrawdown)
}

func TestRunWithoutPredictions(t *testing.T) {
	_, err := New(fixture()).Run(context.Background(), nil, date(2023, 1, 1), date(2023, 6, 30))
	assert.Error(t, err)
}

func TestPredictionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePredictions(&buf, preds, 20))
	assert.True(t, strings.HasPrefix(buf.String(), "Quarter,Top20_Tickers\n"))

	back, err := ReadPredictions(&buf)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, date(2023, 1, 1), back[0].Quarter, "sorted by quarter")
	assert.Equal(t, []string{"AAA"}, back[1].Tickers)

	legacy := "Quarter,Top5_Tickers\n2023-01-01,\"['AAA', 'BBB']\"\n"
	back, err = ReadPredictions(strings.NewReader(legacy))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, back[0].Tickers)
}

func TestSummarizeDrawdown(t *testing.T) {
	s := Summarize([]Point{
		{date(2020, 1, 1), 100},
		{date(2020, 7, 1), 150},
		{date(2021, 1, 1), 75},
	})
	assert.InDelta(t, -0.5, s.MaxDrawdown, 1e-12)
	assert.InDelta(t, -0.25, s.TotalReturn, 1e-12)
	assert.False(t, math.IsNaN(s.CAGR))
}
