// Package factors computes fundamental and market factors for a single ticker.
//
// Fundamental categories (quality, value, stock, growth) produce one row per
// income statement date. Market categories (momentum, risk, technical,
// emotional, style) produce one row per trading day. A formula whose inputs
// are missing or whose denominator is zero yields NaN.
package factors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockml/pkg/dataprep"
	"stockml/pkg/fmp"
)

// Category names, in the order Calculate reports them.
const (
	Quality   = "quality"
	Value     = "value"
	Stock     = "stock"
	Growth    = "growth"
	Emotional = "emotional"
	Style     = "style"
	Risk      = "risk"
	Momentum  = "momentum"
	Technical = "technical"
)

// ErrMissingColumns matches every *MissingColumnsError.
var ErrMissingColumns = errors.New("factors: missing required columns")

// MissingColumnsError lists the statement columns a category needs but the
// source did not provide, as "kind: column".
type MissingColumnsError struct {
	Category string
	Missing  []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("factors: %s: missing required columns: %s", e.Category, strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Is(target error) bool { return target == ErrMissingColumns }

// Series is one category of factors: Values[i][j] is factor Names[j] on Dates[i].
// Dates are ascending.
type Series struct {
	Category string
	Names    []string
	Dates    []time.Time
	Values   [][]float64
}

func newSeries(category string, names ...string) *Series {
	return &Series{Category: category, Names: names}
}

func (s *Series) add(date time.Time, values ...float64) {
	s.Dates = append(s.Dates, date)
	s.Values = append(s.Values, values)
}

// Len returns the number of dates.
func (s *Series) Len() int { return len(s.Dates) }

// Index returns the position of factor name, or -1.
func (s *Series) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Get returns factor name on date.
func (s *Series) Get(date time.Time, name string) (float64, bool) {
	j := s.Index(name)
	if j < 0 {
		return math.NaN(), false
	}
	for i, d := range s.Dates {
		if d.Equal(date) {
			return s.Values[i][j], true
		}
	}
	return math.NaN(), false
}

// Sort orders rows by date.
func (s *Series) Sort() {
	idx := make([]int, len(s.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Dates[idx[a]].Before(s.Dates[idx[b]]) })
	dates := make([]time.Time, len(idx))
	vals := make([][]float64, len(idx))
	for k, i := range idx {
		dates[k] = s.Dates[i]
		vals[k] = s.Values[i]
	}
	s.Dates, s.Values = dates, vals
}

// FillForward replaces NaN cells with the last non-NaN value of the same factor.
func (s *Series) FillForward() { dataprep.ForwardFill(s.Values) }

// AsOf returns the row of the latest date on or before date.
func (s *Series) AsOf(date time.Time) ([]float64, bool) {
	i := sort.Search(len(s.Dates), func(i int) bool { return s.Dates[i].After(date) })
	if i == 0 {
		return nil, false
	}
	return s.Values[i-1], true
}

// Result holds every category computed for a ticker.
type Result struct {
	Ticker     string
	Categories []*Series
}

// Get returns the named category or nil.
func (r Result) Get(category string) *Series {
	for _, s := range r.Categories {
		if s.Category == category {
			return s
		}
	}
	return nil
}

// Source supplies the raw data factors are computed from. *fmp.Client
// satisfies it.
type Source interface {
	IncomeStatements(ctx context.Context, symbol, period string) ([]fmp.Statement, error)
	BalanceSheets(ctx context.Context, symbol, period string) ([]fmp.Statement, error)
	CashFlowStatements(ctx context.Context, symbol, period string) ([]fmp.Statement, error)
	EnterpriseValues(ctx context.Context, symbol, period string) ([]fmp.Statement, error)
	HistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]fmp.PriceBar, error)
}

// Calculator fetches a ticker's data and computes every category.
type Calculator struct {
	src       Source
	period    string
	from, to  time.Time
	lookback  time.Duration
	riskFree  float64
	benchmark []fmp.PriceBar
	logger    *zap.Logger
}

type Option func(*Calculator)

// WithPeriod sets the statement period ("quarterly" or "annual").
func WithPeriod(p string) Option { return func(c *Calculator) { c.period = p } }

// WithRange limits market data to [from, to]. Prices are fetched from
// from-lookback so rolling windows are populated at from.
func WithRange(from, to time.Time) Option {
	return func(c *Calculator) { c.from, c.to = from, to }
}

func WithLookback(d time.Duration) Option { return func(c *Calculator) { c.lookback = d } }

// WithRiskFree sets the annual risk-free rate used by the Sharpe ratios.
func WithRiskFree(rate float64) Option { return func(c *Calculator) { c.riskFree = rate } }

// WithBenchmark enables style factors against the given index bars.
func WithBenchmark(bars []fmp.PriceBar) Option {
	return func(c *Calculator) { c.benchmark = bars }
}

func WithLogger(l *zap.Logger) Option { return func(c *Calculator) { c.logger = l } }

func NewCalculator(src Source, opts ...Option) *Calculator {
	c := &Calculator{
		src:      src,
		period:   "quarterly",
		lookback: 200 * 24 * time.Hour,
		riskFree: 0.02,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Statements groups the four statement kinds of one ticker.
type Statements struct {
	Income     []fmp.Statement
	Balance    []fmp.Statement
	CashFlow   []fmp.Statement
	Enterprise []fmp.Statement
}

// Calculate fetches statements and prices for ticker and computes every
// category it can. Categories whose inputs are incomplete are logged and
// left out; fetch failures are returned.
func (c *Calculator) Calculate(ctx context.Context, ticker string) (Result, error) {
	var st Statements
	var bars []fmp.PriceBar

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Income, err = c.src.IncomeStatements(gctx, ticker, c.period)
		return err
	})
	g.Go(func() (err error) {
		st.Balance, err = c.src.BalanceSheets(gctx, ticker, c.period)
		return err
	})
	g.Go(func() (err error) {
		st.CashFlow, err = c.src.CashFlowStatements(gctx, ticker, c.period)
		return err
	})
	g.Go(func() (err error) {
		st.Enterprise, err = c.src.EnterpriseValues(gctx, ticker, c.period)
		return err
	})
	g.Go(func() (err error) {
		from := c.from
		if !from.IsZero() {
			from = from.Add(-c.lookback)
		}
		bars, err = c.src.HistoricalPrices(gctx, ticker, from, c.to)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("factors: fetch %s: %w", ticker, err)
	}
	for _, s := range [][]fmp.Statement{st.Income, st.Balance, st.CashFlow, st.Enterprise} {
		fmp.SortStatements(s)
	}

	log := c.logger.With(zap.String("ticker", ticker))
	res := Result{Ticker: ticker}
	keep := func(s *Series, err error) {
		if err != nil {
			log.Warn("skipping factor category", zap.Error(err))
			return
		}
		if s == nil || s.Len() == 0 {
			return
		}
		res.Categories = append(res.Categories, s)
	}

	keep(QualityFactors(st))
	keep(ValueFactors(st))
	keep(StockFactors(st))
	keep(GrowthFactors(st))

	if len(bars) == 0 {
		log.Debug("no price history, market factors skipped")
		return res, nil
	}
	m := newMarket(bars)
	keep(m.emotional(), nil)
	if len(c.benchmark) > 0 {
		keep(m.style(newMarket(c.benchmark), st.Enterprise), nil)
	}
	keep(m.risk(c.riskFree), nil)
	keep(m.momentum(), nil)
	keep(m.technical(), nil)
	return res, nil
}
