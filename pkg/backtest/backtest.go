// Package backtest replays quarterly top-N picks as an equal-weight portfolio
// and compares its equity with a benchmark index.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockml/pkg/fmp"
)

// ErrNoBenchmarkPrice is returned when the benchmark has no price at the start date.
var ErrNoBenchmarkPrice = errors.New("backtest: no benchmark price at start")

// PriceSource returns daily bars. *fmp.Client satisfies it.
type PriceSource interface {
	HistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]fmp.PriceBar, error)
}

// Point is the equity on a date.
type Point struct {
	Date   time.Time
	Equity float64
}

// Backtester prices picks through a PriceSource. Lookups are memoized per
// symbol and date.
type Backtester struct {
	src       PriceSource
	initial   float64
	benchmark string
	buffer    time.Duration
	workers   int
	logger    *zap.Logger

	mu     sync.Mutex
	prices map[priceKey]priceResult
}

type priceKey struct {
	symbol string
	date   time.Time
}

type priceResult struct {
	price float64
	ok    bool
}

type Option func(*Backtester)

func WithInitialEquity(v float64) Option { return func(b *Backtester) { b.initial = v } }
func WithBenchmark(symbol string) Option { return func(b *Backtester) { b.benchmark = symbol } }
func WithWorkers(n int) Option           { return func(b *Backtester) { b.workers = n } }
func WithLogger(l *zap.Logger) Option    { return func(b *Backtester) { b.logger = l } }

// WithBuffer sets how far before a date a price may come from.
func WithBuffer(d time.Duration) Option { return func(b *Backtester) { b.buffer = d } }

func New(src PriceSource, opts ...Option) *Backtester {
	b := &Backtester{
		src:       src,
		initial:   100,
		benchmark: "^GSPC",
		buffer:    10 * 24 * time.Hour,
		workers:   4,
		logger:    zap.NewNop(),
		prices:    map[priceKey]priceResult{},
	}
	for _, o := range opts {
		o(b)
	}
	if b.workers < 1 {
		b.workers = 1
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// PriceOn returns the adjusted close (close when adjClose is absent) of the
// latest bar within [date-buffer, date]. A failed lookup counts as no price
// unless ctx is done.
func (b *Backtester) PriceOn(ctx context.Context, symbol string, date time.Time) (float64, bool, error) {
	key := priceKey{symbol, date}
	b.mu.Lock()
	r, hit := b.prices[key]
	b.mu.Unlock()
	if hit {
		return r.price, r.ok, nil
	}

	bars, err := b.src.HistoricalPrices(ctx, symbol, date.Add(-b.buffer), date)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		b.logger.Warn("price lookup failed",
			zap.String("symbol", symbol),
			zap.Time("date", date),
			zap.Error(err))
		return 0, false, nil
	}
	r = latestPrice(bars, date)
	b.mu.Lock()
	b.prices[key] = r
	b.mu.Unlock()
	return r.price, r.ok, nil
}

func latestPrice(bars []fmp.PriceBar, date time.Time) priceResult {
	var best fmp.PriceBar
	found := false
	for _, bar := range bars {
		if bar.Date.After(date) {
			continue
		}
		if !found || bar.Date.After(best.Date.Time) {
			best, found = bar, true
		}
	}
	if !found {
		return priceResult{}
	}
	p := best.AdjClose
	if p == 0 {
		p = best.Close
	}
	return priceResult{price: p, ok: true}
}

// quarterReturn is the mean return of tickers priced at both ends. Tickers
// missing a price, or with a zero start price, are left out; no usable
// ticker means a return of 0.
func (b *Backtester) quarterReturn(ctx context.Context, tickers []string, from, to time.Time) (float64, int, error) {
	rets := make([]float64, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, t := range tickers {
		rets[i] = math.NaN()
		g.Go(func() error {
			p0, ok0, err := b.PriceOn(gctx, t, from)
			if err != nil {
				return err
			}
			p1, ok1, err := b.PriceOn(gctx, t, to)
			if err != nil {
				return err
			}
			if ok0 && ok1 && p0 != 0 {
				rets[i] = p1/p0 - 1
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	sum, n := 0.0, 0
	for _, r := range rets {
		if !math.IsNaN(r) {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return sum / float64(n), n, nil
}

// StrategyCurve compounds the equal-weight return of each prediction from its
// quarter to the next one (the last runs to end). It starts at (start,
// initial equity); predictions before start are ignored.
func (b *Backtester) StrategyCurve(ctx context.Context, preds []Prediction, start, end time.Time) ([]Point, error) {
	preds = sorted(preds)
	equity := b.initial
	curve := []Point{{Date: start, Equity: equity}}
	for i, p := range preds {
		if p.Quarter.Before(start) {
			continue
		}
		to := end
		if i < len(preds)-1 {
			to = preds[i+1].Quarter
		}
		ret, n, err := b.quarterReturn(ctx, p.Tickers, p.Quarter, to)
		if err != nil {
			return nil, err
		}
		equity *= 1 + ret
		b.logger.Debug("holding period",
			zap.Time("from", p.Quarter),
			zap.Time("to", to),
			zap.Int("priced", n),
			zap.Int("picked", len(p.Tickers)),
			zap.Float64("return", ret))
		curve = append(curve, Point{Date: to, Equity: equity})
	}
	sort.SliceStable(curve, func(i, j int) bool { return curve[i].Date.Before(curve[j].Date) })
	return curve, nil
}

// BenchmarkCurve scales the benchmark price to the initial equity at start
// and samples it at start (when before the first quarter), every prediction
// quarter and end. Dates without a price are skipped.
func (b *Backtester) BenchmarkCurve(ctx context.Context, preds []Prediction, start, end time.Time) ([]Point, error) {
	preds = sorted(preds)
	var timeline []time.Time
	if len(preds) == 0 || start.Before(preds[0].Quarter) {
		timeline = append(timeline, start)
	}
	for _, p := range preds {
		timeline = append(timeline, p.Quarter)
	}
	if !timeline[len(timeline)-1].Equal(end) {
		timeline = append(timeline, end)
	}

	base, ok, err := b.PriceOn(ctx, b.benchmark, start)
	if err != nil {
		return nil, err
	}
	if !ok || base == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoBenchmarkPrice, b.benchmark, start.Format("2006-01-02"))
	}

	var curve []Point
	for _, d := range timeline {
		p, ok, err := b.PriceOn(ctx, b.benchmark, d)
		if err != nil {
			return nil, err
		}
		if !ok {
			b.logger.Info("no benchmark price, skipping date",
				zap.String("symbol", b.benchmark), zap.Time("date", d))
			continue
		}
		curve = append(curve, Point{Date: d, Equity: p / base * b.initial})
	}
	sort.SliceStable(curve, func(i, j int) bool { return curve[i].Date.Before(curve[j].Date) })
	return curve, nil
}

func sorted(preds []Prediction) []Prediction {
	out := make([]Prediction, len(preds))
	copy(out, preds)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quarter.Before(out[j].Quarter) })
	return out
}
