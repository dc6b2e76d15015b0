package backtest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"stockml/pkg/data"
)

// Prediction is the set of tickers held from Quarter until the next prediction.
type Prediction struct {
	Quarter time.Time
	Tickers []string
}

// WritePredictions writes Quarter,TopN_Tickers rows, where N is topN.
func WritePredictions(w io.Writer, preds []Prediction, topN int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Quarter", "Top" + strconv.Itoa(topN) + "_Tickers"}); err != nil {
		return err
	}
	for _, p := range preds {
		if err := cw.Write([]string{p.Quarter.Format(data.DateLayout), data.FormatList(p.Tickers)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPredictions reads a predictions CSV. The second column may be named
// Top<N>_Tickers for any N. Rows are returned in quarter order.
func ReadPredictions(r io.Reader) ([]Prediction, error) {
	cr := csv.NewReader(r)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("backtest: read predictions header: %w", err)
	}
	if len(head) < 2 || head[0] != "Quarter" {
		return nil, fmt.Errorf("backtest: unexpected predictions header %v", head)
	}
	var out []Prediction
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("backtest: %w", err)
		}
		q, err := time.Parse(data.DateLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("backtest: bad quarter %q: %w", rec[0], err)
		}
		tickers, err := data.ParseList(rec[1])
		if err != nil {
			return nil, err
		}
		out = append(out, Prediction{Quarter: q, Tickers: tickers})
	}
	return sorted(out), nil
}

// Row is one line of the comparison: NaN marks a curve without a point on Date.
type Row struct {
	Date      time.Time
	Equity    float64
	Benchmark float64
}

// Summary describes one equity curve.
type Summary struct {
	TotalReturn float64
	CAGR        float64
	MaxDrawdown float64
}

// Summarize computes the return and drawdown of a curve.
func Summarize(curve []Point) Summary {
	if len(curve) < 2 || curve[0].Equity == 0 {
		return Summary{}
	}
	first, last := curve[0], curve[len(curve)-1]
	s := Summary{TotalReturn: last.Equity/first.Equity - 1, CAGR: math.NaN()}
	if years := last.Date.Sub(first.Date).Hours() / 24 / 365.25; years > 0 {
		s.CAGR = math.Pow(last.Equity/first.Equity, 1/years) - 1
	}
	peak := first.Equity
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := p.Equity/peak - 1; dd < s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}
	return s
}

// Report holds both curves and their outer join by date.
type Report struct {
	Strategy  []Point
	Benchmark []Point
	Rows      []Row
}

// Run computes both curves for preds over [start, end].
func (b *Backtester) Run(ctx context.Context, preds []Prediction, start, end time.Time) (*Report, error) {
	if len(preds) == 0 {
		return nil, errors.New("backtest: no predictions")
	}
	strategy, err := b.StrategyCurve(ctx, preds, start, end)
	if err != nil {
		return nil, fmt.Errorf("backtest: strategy curve: %w", err)
	}
	bench, err := b.BenchmarkCurve(ctx, preds, start, end)
	if err != nil {
		return nil, fmt.Errorf("backtest: benchmark curve: %w", err)
	}
	return &Report{Strategy: strategy, Benchmark: bench, Rows: join(strategy, bench)}, nil
}

func join(strategy, bench []Point) []Row {
	byDate := map[time.Time]*Row{}
	var dates []time.Time
	row := func(d time.Time) *Row {
		if r, ok := byDate[d]; ok {
			return r
		}
		r := &Row{Date: d, Equity: math.NaN(), Benchmark: math.NaN()}
		byDate[d] = r
		dates = append(dates, d)
		return r
	}
	for _, p := range strategy {
		row(p.Date).Equity = p.Equity
	}
	for _, p := range bench {
		row(p.Date).Benchmark = p.Equity
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := make([]Row, len(dates))
	for i, d := range dates {
		out[i] = *byDate[d]
	}
	return out
}

// WriteCSV writes QuarterEnd,Equity,Benchmark_Equity. Missing values are empty.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"QuarterEnd", "Equity", "Benchmark_Equity"}); err != nil {
		return err
	}
	for _, row := range r.Rows {
		rec := []string{row.Date.Format(data.DateLayout), data.FormatFloat(row.Equity), data.FormatFloat(row.Benchmark)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
