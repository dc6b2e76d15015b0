package train

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockml/pkg/data"
	"stockml/pkg/fmp"
)

// CloseColumn is the price column the target is computed from.
const CloseColumn = "close"

// PriceSource returns daily bars. *fmp.Client satisfies it.
type PriceSource interface {
	HistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]fmp.PriceBar, error)
}

// AttachClose adds CloseColumn to f: for every row, the close of the latest
// bar on or before its date, NaN when the ticker has no such bar. A ticker
// whose prices cannot be fetched gets NaN and a warning.
func AttachClose(ctx context.Context, f *data.Frame, src PriceSource, workers int, logger *zap.Logger) error {
	if f.Index(CloseColumn) >= 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	groups, order := f.Groups()
	closes := make([]float64, len(f.Rows))
	for i := range closes {
		closes[i] = math.NaN()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, ticker := range order {
		idx := groups[ticker]
		g.Go(func() error {
			from, to := f.Rows[idx[0]].Date, f.Rows[idx[0]].Date
			for _, i := range idx {
				if d := f.Rows[i].Date; d.Before(from) {
					from = d
				} else if d.After(to) {
					to = d
				}
			}
			bars, err := src.HistoricalPrices(gctx, ticker, from.AddDate(0, 0, -10), to)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("no prices for ticker", zap.String("ticker", ticker), zap.Error(err))
				return nil
			}
			sort.SliceStable(bars, func(a, b int) bool { return bars[a].Date.Before(bars[b].Date.Time) })
			for _, i := range idx {
				closes[i] = closeOn(bars, f.Rows[i].Date)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("train: attach close: %w", err)
	}
	return f.AddColumn(CloseColumn, closes)
}

func closeOn(bars []fmp.PriceBar, date time.Time) float64 {
	i := sort.Search(len(bars), func(i int) bool { return bars[i].Date.After(date) })
	if i == 0 {
		return math.NaN()
	}
	return bars[i-1].Close
}
