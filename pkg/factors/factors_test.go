package factors

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockml/pkg/fmp"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func stmt(date string, fields map[string]float64) fmp.Statement {
	return fmp.Statement{Date: day(date), Fields: fields}
}

func sampleStatements() Statements {
	return Statements{
		Income: []fmp.Statement{
			stmt("2023-03-31", map[string]float64{"netIncome": 10, "revenue": 100, "grossProfit": 40, "eps": 1, "operatingIncome": 15}),
			stmt("2023-06-30", map[string]float64{"netIncome": 12, "revenue": 120, "grossProfit": 60, "eps": 1.5, "operatingIncome": 18}),
		},
		Balance: []fmp.Statement{
			stmt("2023-03-31", map[string]float64{"totalStockholdersEquity": 50, "totalAssets": 200, "totalLiabilities": 150, "netReceivables": 10, "inventory": 10, "retainedEarnings": 30}),
			stmt("2023-06-30", map[string]float64{"totalStockholdersEquity": 60, "totalAssets": 240, "totalLiabilities": 180, "netReceivables": 12, "inventory": 12, "retainedEarnings": 36}),
		},
		CashFlow: []fmp.Statement{
			stmt("2023-03-31", map[string]float64{"operatingCashFlow": 8, "freeCashFlow": 5}),
			stmt("2023-06-30", map[string]float64{"operatingCashFlow": 10, "freeCashFlow": 6}),
		},
		Enterprise: []fmp.Statement{
			stmt("2023-03-31", map[string]float64{"numberOfShares": 10, "stockPrice": 20}),
		},
	}
}

func TestQualityFactors(t *testing.T) {
	s, err := QualityFactors(sampleStatements())
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	first := s.Values[0]
	assert.InDelta(t, 0.1, first[s.Index("net_profit_to_total_revenue")], 1e-12)
	assert.InDelta(t, 0.75, first[s.Index("DECM")], 1e-12)
	assert.InDelta(t, 0.2, first[s.Index("ROE")], 1e-12)
	assert.InDelta(t, 0.05, first[s.Index("ROA")], 1e-12)
	assert.InDelta(t, 0.01, first[s.Index("ACCA")], 1e-12)
	assert.InDelta(t, 0.4, first[s.Index("GMI")], 1e-12, "no previous statement means a previous margin of 0")

	gmi, ok := s.Get(day("2023-06-30"), "GMI")
	require.True(t, ok)
	assert.InDelta(t, 0.1, gmi, 1e-12)
}

func TestValueUsesLatestEnterpriseRow(t *testing.T) {
	s, err := ValueFactors(sampleStatements())
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	pe, _ := s.Get(day("2023-06-30"), "P/E")
	assert.InDelta(t, 20/1.5, pe, 1e-12)
	ps, _ := s.Get(day("2023-06-30"), "P/S")
	assert.InDelta(t, 20/(120.0/10), ps, 1e-12)
	ebit, _ := s.Get(day("2023-03-31"), "EBIT")
	assert.Equal(t, 15.0, ebit)
	qr, _ := s.Get(day("2023-03-31"), "QR")
	assert.InDelta(t, 0.2, qr, 1e-12)
}

func TestStockFactors(t *testing.T) {
	s, err := StockFactors(sampleStatements())
	require.NoError(t, err)
	mcap, _ := s.Get(day("2023-03-31"), "market_cap")
	assert.Equal(t, 200.0, mcap)
	nav, _ := s.Get(day("2023-06-30"), "net_asset_per_share")
	assert.Equal(t, 6.0, nav)
}

func TestGrowthFactors(t *testing.T) {
	s, err := GrowthFactors(sampleStatements())
	require.NoError(t, err)

	peg, _ := s.Get(day("2023-03-31"), "PEG")
	assert.True(t, math.IsNaN(peg), "first period has no predecessor")

	peg, _ = s.Get(day("2023-06-30"), "PEG")
	assert.InDelta(t, 1.5, peg, 1e-12)
	ocf, _ := s.Get(day("2023-06-30"), "net_operate_cashflow_growth_rate")
	assert.InDelta(t, 0.25, ocf, 1e-12)
}

func TestZeroDenominatorIsNaN(t *testing.T) {
	st := sampleStatements()
	st.Income[0].Fields["revenue"] = 0
	s, err := QualityFactors(st)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.Values[0][s.Index("net_profit_to_total_revenue")]))
}

func TestMissingColumns(t *testing.T) {
	st := sampleStatements()
	st.Enterprise = nil
	_, err := StockFactors(st)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumns))

	var mc *MissingColumnsError
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, Stock, mc.Category)
	assert.ElementsMatch(t, []string{"enterprise: numberOfShares", "enterprise: stockPrice"}, mc.Missing)
}

func TestSeriesAsOfAndFill(t *testing.T) {
	s := newSeries("x", "a")
	s.add(day("2023-06-30"), math.NaN())
	s.add(day("2023-03-31"), 1)
	s.Sort()
	s.FillForward()

	_, ok := s.AsOf(day("2023-01-01"))
	assert.False(t, ok)
	row, ok := s.AsOf(day("2023-05-01"))
	require.True(t, ok)
	assert.Equal(t, 1.0, row[0])
	row, _ = s.AsOf(day("2024-01-01"))
	assert.Equal(t, 1.0, row[0], "NaN filled from the earlier date")
}

func bars(start time.Time, prices ...float64) []fmp.PriceBar {
	out := make([]fmp.PriceBar, len(prices))
	for i, p := range prices {
		out[i] = fmp.PriceBar{Date: fmp.Date{Time: start.AddDate(0, 0, i)}, AdjClose: p, Close: p, Volume: 1000 + float64(i)}
	}
	return out
}

func TestMarketFactors(t *testing.T) {
	prices := make([]float64, 130)
	for i := range prices {
		prices[i] = 100 * math.Pow(1.01, float64(i))
	}
	m := newMarket(bars(day("2023-01-01"), prices...))

	mom := m.momentum()
	last := mom.Values[len(prices)-1]
	assert.InDelta(t, math.Pow(1.01, 20)-1, last[mom.Index("momentum_20")], 1e-9)
	assert.True(t, math.IsNaN(mom.Values[10][mom.Index("momentum_20")]))

	risk := m.risk(0)
	assert.InDelta(t, 0, risk.Values[len(prices)-1][risk.Index("volatility_20")], 1e-9)
	assert.Equal(t, 0.0, risk.Values[len(prices)-1][risk.Index("max_drawdown_60")])

	tech := m.technical()
	assert.Equal(t, 100.0, tech.Values[len(prices)-1][tech.Index("RSI_14")])
	assert.Greater(t, tech.Values[len(prices)-1][tech.Index("MACD")], 0.0)

	emo := m.emotional()
	assert.Equal(t, 100.0, emo.Values[len(prices)-1][emo.Index("PSY_12")])
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.5, maxDrawdown([]float64{10, 20, 10, 15}), 1e-12)
	assert.True(t, math.IsNaN(maxDrawdown(nil)))
}

func TestStyleBetaAgainstItself(t *testing.T) {
	prices := make([]float64, 80)
	for i := range prices {
		prices[i] = 100 + 5*math.Sin(float64(i)/3)
	}
	b := bars(day("2023-01-01"), prices...)
	m := newMarket(b)
	enterprise := []fmp.Statement{stmt("2022-12-31", map[string]float64{"numberOfShares": 1e6})}
	s := m.style(newMarket(b), enterprise)

	lastRow := s.Values[len(prices)-1]
	assert.InDelta(t, 1, lastRow[s.Index("beta_60")], 1e-9)
	assert.InDelta(t, 0, lastRow[s.Index("residual_volatility_60")], 1e-9)
	assert.InDelta(t, math.Log(1e6*prices[len(prices)-1]), lastRow[s.Index("size")], 1e-9)
}

type fakeSource struct {
	st     Statements
	prices []fmp.PriceBar
	err    error
}

func (f *fakeSource) IncomeStatements(context.Context, string, string) ([]fmp.Statement, error) {
	return f.st.Income, f.err
}

func (f *fakeSource) BalanceSheets(context.Context, string, string) ([]fmp.Statement, error) {
	return f.st.Balance, nil
}

func (f *fakeSource) CashFlowStatements(context.Context, string, string) ([]fmp.Statement, error) {
	return f.st.CashFlow, nil
}

func (f *fakeSource) EnterpriseValues(context.Context, string, string) ([]fmp.Statement, error) {
	return f.st.Enterprise, nil
}

func (f *fakeSource) HistoricalPrices(context.Context, string, time.Time, time.Time) ([]fmp.PriceBar, error) {
	return f.prices, nil
}

func TestCalculate(t *testing.T) {
	st := sampleStatements()
	delete(st.Balance[0].Fields, "retainedEarnings")
	delete(st.Balance[1].Fields, "retainedEarnings")
	src := &fakeSource{st: st, prices: bars(day("2023-01-01"), 10, 11, 12)}

	res, err := NewCalculator(src).Calculate(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.NotNil(t, res.Get(Quality))
	assert.Nil(t, res.Get(Stock), "stock needs retainedEarnings")
	assert.Nil(t, res.Get(Style), "no benchmark")
	assert.NotNil(t, res.Get(Momentum))
	assert.Equal(t, 3, res.Get(Technical).Len())
}

func TestCalculateFetchError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	_, err := NewCalculator(src).Calculate(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "boom")
}
