package factors

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"stockml/pkg/dataprep"
	"stockml/pkg/fmp"
	"stockml/pkg/stats"
)

const tradingDays = 252

// market is a daily price history, oldest first.
type market struct {
	dates   []time.Time
	prices  []float64
	volumes []float64
	// returns[i] is prices[i]/prices[i-1]-1; returns[0] is NaN.
	returns []float64
}

func newMarket(bars []fmp.PriceBar) *market {
	m := &market{
		dates:   make([]time.Time, len(bars)),
		prices:  make([]float64, len(bars)),
		volumes: make([]float64, len(bars)),
	}
	for i, b := range bars {
		m.dates[i] = b.Date.Time
		m.prices[i] = b.AdjClose
		if m.prices[i] == 0 {
			m.prices[i] = b.Close
		}
		m.volumes[i] = b.Volume
	}
	m.returns = dataprep.PctChange(m.prices)
	return m
}

// window returns x[i-n+1 : i+1], or nil when fewer than n values precede i.
func window(x []float64, i, n int) []float64 {
	if i+1 < n {
		return nil
	}
	return x[i-n+1 : i+1]
}

// returnWindow is the last n daily returns ending at i.
func (m *market) returnWindow(i, n int) []float64 {
	if i < n {
		return nil
	}
	return m.returns[i-n+1 : i+1]
}

func (m *market) change(i, n int) float64 {
	if i < n {
		return math.NaN()
	}
	return stats.Ratio(m.prices[i], m.prices[i-n]) - 1
}

func (m *market) series(category string, names []string, row func(i int) []float64) *Series {
	out := newSeries(category, names...)
	for i, d := range m.dates {
		out.add(d, row(i)...)
	}
	return out
}

var MomentumFactorNames = []string{"momentum_20", "momentum_60", "momentum_120", "ROC_10"}

func (m *market) momentum() *Series {
	return m.series(Momentum, MomentumFactorNames, func(i int) []float64 {
		return []float64{m.change(i, 20), m.change(i, 60), m.change(i, 120), m.change(i, 10) * 100}
	})
}

var RiskFactorNames = []string{"volatility_20", "volatility_60", "sharpe_20", "sharpe_60", "max_drawdown_60"}

func (m *market) risk(riskFree float64) *Series {
	vol := func(i, n int) float64 {
		w := m.returnWindow(i, n)
		if w == nil {
			return math.NaN()
		}
		return stats.SampleStd(w) * math.Sqrt(tradingDays)
	}
	sharpe := func(i, n int) float64 {
		w := m.returnWindow(i, n)
		if w == nil {
			return math.NaN()
		}
		return stats.Ratio(stats.Mean(w)*tradingDays-riskFree, vol(i, n))
	}
	return m.series(Risk, RiskFactorNames, func(i int) []float64 {
		return []float64{vol(i, 20), vol(i, 60), sharpe(i, 20), sharpe(i, 60), maxDrawdown(window(m.prices, i, 60))}
	})
}

// maxDrawdown is the deepest fall from a running peak, as a non-positive fraction.
func maxDrawdown(prices []float64) float64 {
	if len(prices) == 0 {
		return math.NaN()
	}
	peak, worst := prices[0], 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if dd := stats.Ratio(p, peak) - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

var TechnicalFactorNames = []string{"SMA_20", "SMA_50", "RSI_14", "MACD", "MACD_signal", "%B_20"}

func (m *market) technical() *Series {
	fast := ema(m.prices, 12)
	slow := ema(m.prices, 26)
	macd := make([]float64, len(m.prices))
	for i := range macd {
		macd[i] = fast[i] - slow[i]
	}
	signal := ema(macd, 9)

	sma := func(i, n int) float64 {
		w := window(m.prices, i, n)
		if w == nil {
			return math.NaN()
		}
		return stats.Ratio(m.prices[i], stats.Mean(w))
	}
	return m.series(Technical, TechnicalFactorNames, func(i int) []float64 {
		return []float64{sma(i, 20), sma(i, 50), rsi(m.priceDiffs(i, 14)), macd[i], signal[i], percentB(window(m.prices, i, 20))}
	})
}

// priceDiffs is the last n price differences ending at i.
func (m *market) priceDiffs(i, n int) []float64 {
	if i < n {
		return nil
	}
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		j := i - n + 1 + k
		out[k] = m.prices[j] - m.prices[j-1]
	}
	return out
}

// rsi is the relative strength index over the given price differences.
func rsi(diffs []float64) float64 {
	if diffs == nil {
		return math.NaN()
	}
	var gain, loss float64
	for _, d := range diffs {
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// ema is an exponential moving average seeded with the first value.
func ema(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2 / float64(span+1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// percentB places the last price within Bollinger bands of two standard deviations.
func percentB(w []float64) float64 {
	if w == nil {
		return math.NaN()
	}
	mean, sd := stats.Mean(w), stats.SampleStd(w)
	lower, upper := mean-2*sd, mean+2*sd
	return stats.Ratio(w[len(w)-1]-lower, upper-lower)
}

var EmotionalFactorNames = []string{"volume_ratio_20", "turnover_volatility_20", "PSY_12"}

func (m *market) emotional() *Series {
	return m.series(Emotional, EmotionalFactorNames, func(i int) []float64 {
		ratio, turnover := math.NaN(), math.NaN()
		if w := window(m.volumes, i, 20); w != nil {
			mean := stats.Mean(w)
			ratio = stats.Ratio(m.volumes[i], mean)
			turnover = stats.Ratio(stats.SampleStd(w), mean)
		}
		psy := math.NaN()
		if w := m.returnWindow(i, 12); w != nil {
			up := 0
			for _, r := range w {
				if r > 0 {
					up++
				}
			}
			psy = float64(up) / 12 * 100
		}
		return []float64{ratio, turnover, psy}
	})
}

var StyleFactorNames = []string{"beta_60", "residual_volatility_60", "size"}

// style regresses daily returns on the benchmark's over 60 common days.
// size is the log market cap from the latest enterprise value row.
func (m *market) style(bench *market, enterprise []fmp.Statement) *Series {
	benchRet := make(map[time.Time]float64, len(bench.dates))
	for i, d := range bench.dates {
		benchRet[d] = bench.returns[i]
	}
	return m.series(Style, StyleFactorNames, func(i int) []float64 {
		beta, resid := math.NaN(), math.NaN()
		if w := m.returnWindow(i, 60); w != nil {
			var rs, bs []float64
			for k, r := range w {
				b, ok := benchRet[m.dates[i-59+k]]
				if !ok || math.IsNaN(b) || math.IsNaN(r) {
					continue
				}
				rs = append(rs, r)
				bs = append(bs, b)
			}
			if len(rs) >= 20 && stat.Variance(bs, nil) > 0 {
				var alpha float64
				alpha, beta = stat.LinearRegression(bs, rs, nil, false)
				res := make([]float64, len(rs))
				for k := range rs {
					res[k] = rs[k] - alpha - beta*bs[k]
				}
				resid = stat.StdDev(res, nil) * math.Sqrt(tradingDays)
			}
		}
		size := math.NaN()
		if ev, ok := asOf(enterprise, m.dates[i]); ok {
			if mc := field(ev, true, "numberOfShares") * m.prices[i]; mc > 0 {
				size = math.Log(mc)
			}
		}
		return []float64{beta, resid, size}
	})
}
