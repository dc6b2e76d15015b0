// Package pipeline turns per-ticker factor results into one dataset and
// chains the fit/transform steps applied before training.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockml/internal/metrics"
	"stockml/pkg/data"
	"stockml/pkg/factors"
)

// ErrNoQuality is returned for a ticker without quality factors, whose dates
// form the row spine.
var ErrNoQuality = errors.New("pipeline: no quality factors")

// Calculator computes the factor categories of one ticker.
type Calculator interface {
	Calculate(ctx context.Context, ticker string) (factors.Result, error)
}

// Processor merges factor categories per ticker and fans out over many tickers.
type Processor struct {
	calc       Calculator
	start, end time.Time
	workers    int
	logger     *zap.Logger
	metrics    *metrics.Registry
}

type Option func(*Processor)

// WithRange keeps rows dated within [start, end]. A zero bound is open.
func WithRange(start, end time.Time) Option {
	return func(p *Processor) { p.start, p.end = start, end }
}

func WithWorkers(n int) Option               { return func(p *Processor) { p.workers = n } }
func WithLogger(l *zap.Logger) Option        { return func(p *Processor) { p.logger = l } }
func WithMetrics(m *metrics.Registry) Option { return func(p *Processor) { p.metrics = m } }

func NewProcessor(calc Calculator, opts ...Option) *Processor {
	p := &Processor{calc: calc, workers: runtime.GOMAXPROCS(0), logger: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// ProcessTicker computes the factors of ticker and merges them on the
// quality dates. Every category is sorted and forward-filled, then each
// quality date takes the category's latest row on or before it.
func (p *Processor) ProcessTicker(ctx context.Context, ticker string) (*data.Frame, error) {
	res, err := p.calc.Calculate(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return Merge(res, p.start, p.end)
}

// Merge builds the frame of one factor result. It is ProcessTicker without
// the fetch.
func Merge(res factors.Result, start, end time.Time) (*data.Frame, error) {
	quality := res.Get(factors.Quality)
	if quality == nil || quality.Len() == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoQuality, res.Ticker)
	}
	for _, c := range res.Categories {
		c.Sort()
		c.FillForward()
	}

	schema := SchemaOf(res)
	out := data.NewFrame(schema.FeatureNames...)
	for _, date := range quality.Dates {
		if (!start.IsZero() && date.Before(start)) || (!end.IsZero() && date.After(end)) {
			continue
		}
		vals := make(map[string]float64, len(schema.FeatureNames))
		for _, c := range res.Categories {
			row, ok := c.AsOf(date)
			for j, name := range c.Names {
				if _, taken := vals[name]; taken {
					continue
				}
				if ok {
					vals[name] = row[j]
				} else {
					vals[name] = math.NaN()
				}
			}
		}
		out.AppendMap(res.Ticker, date, vals)
	}
	return out, nil
}

// ProcessTickers runs ProcessTicker over tickers with at most Workers in
// flight. A ticker that fails is logged and left out. The result is sorted
// by ticker, then date.
func (p *Processor) ProcessTickers(ctx context.Context, tickers []string) (*data.Frame, error) {
	frames := make([]*data.Frame, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, ticker := range tickers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := p.ProcessTicker(gctx, ticker)
			switch {
			case err == nil:
				p.metrics.Ticker("ok")
				p.logger.Debug("processed ticker", zap.String("ticker", ticker), zap.Int("rows", len(f.Rows)))
				frames[i] = f
			case errors.Is(err, ErrNoQuality):
				p.metrics.Ticker("skipped")
				p.logger.Info("skipping ticker", zap.String("ticker", ticker), zap.Error(err))
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				p.metrics.Ticker("failed")
				p.logger.Warn("ticker failed", zap.String("ticker", ticker), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var done []*data.Frame
	for _, f := range frames {
		if f != nil {
			done = append(done, f)
		}
	}
	out := data.Concat(done...)
	out.Sort()
	p.logger.Info("processed tickers",
		zap.Int("requested", len(tickers)),
		zap.Int("succeeded", len(done)),
		zap.Int("rows", len(out.Rows)))
	return out, nil
}
