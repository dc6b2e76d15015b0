package factors

import (
	"math"
	"sort"
	"time"

	"stockml/pkg/fmp"
	"stockml/pkg/stats"
)

// requirement lists the columns one statement kind must carry.
type requirement struct {
	kind    string
	stmts   []fmp.Statement
	columns []string
}

// validate reports every required column that no statement of its kind has.
func validate(category string, reqs ...requirement) error {
	var missing []string
	for _, r := range reqs {
		for _, col := range r.columns {
			if !hasColumn(r.stmts, col) {
				missing = append(missing, r.kind+": "+col)
			}
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Category: category, Missing: missing}
	}
	return nil
}

func hasColumn(stmts []fmp.Statement, col string) bool {
	for _, s := range stmts {
		if s.Has(col) {
			return true
		}
	}
	return false
}

// on returns the statement dated exactly date.
func on(stmts []fmp.Statement, date time.Time) (fmp.Statement, bool) {
	for _, s := range stmts {
		if s.Date.Equal(date) {
			return s, true
		}
	}
	return fmp.Statement{}, false
}

// before returns the latest statement dated strictly before date. stmts must
// be sorted oldest first.
func before(stmts []fmp.Statement, date time.Time) (fmp.Statement, bool) {
	i := sort.Search(len(stmts), func(i int) bool { return !stmts[i].Date.Before(date) })
	if i == 0 {
		return fmp.Statement{}, false
	}
	return stmts[i-1], true
}

// asOf returns the latest statement dated on or before date.
func asOf(stmts []fmp.Statement, date time.Time) (fmp.Statement, bool) {
	i := sort.Search(len(stmts), func(i int) bool { return stmts[i].Date.After(date) })
	if i == 0 {
		return fmp.Statement{}, false
	}
	return stmts[i-1], true
}

// field reads name from s, NaN when s was not found or lacks it.
func field(s fmp.Statement, found bool, name string) float64 {
	if !found {
		return math.NaN()
	}
	v, ok := s.Value(name)
	if !ok {
		return math.NaN()
	}
	return v
}

// QualityFactorNames are the columns of the quality category.
var QualityFactorNames = []string{"net_profit_to_total_revenue", "DECM", "ROE", "ROA", "ACCA", "GMI"}

// QualityFactors computes profitability and accrual ratios per income date.
// GMI compares against the previous income statement, or a margin of 0 when
// there is none.
func QualityFactors(st Statements) (*Series, error) {
	if err := validate(Quality,
		requirement{"income", st.Income, []string{"netIncome", "revenue", "grossProfit"}},
		requirement{"balance", st.Balance, []string{"totalStockholdersEquity", "totalAssets", "totalLiabilities"}},
		requirement{"cash_flow", st.CashFlow, []string{"operatingCashFlow"}},
	); err != nil {
		return nil, err
	}
	out := newSeries(Quality, QualityFactorNames...)
	for _, inc := range st.Income {
		bal, okB := on(st.Balance, inc.Date)
		cf, okC := on(st.CashFlow, inc.Date)

		ni := field(inc, true, "netIncome")
		rev := field(inc, true, "revenue")
		ta := field(bal, okB, "totalAssets")

		prevMargin := 0.0
		if prev, ok := before(st.Income, inc.Date); ok {
			prevMargin = stats.Ratio(field(prev, true, "grossProfit"), field(prev, true, "revenue"))
		}
		margin := stats.Ratio(field(inc, true, "grossProfit"), rev)

		out.add(inc.Date,
			stats.Ratio(ni, rev),
			stats.Ratio(field(bal, okB, "totalLiabilities"), ta),
			stats.Ratio(ni, field(bal, okB, "totalStockholdersEquity")),
			stats.Ratio(ni, ta),
			stats.Ratio(ni-field(cf, okC, "operatingCashFlow"), ta),
			margin-prevMargin,
		)
	}
	return out, nil
}

// ValueFactorNames are the columns of the value category.
var ValueFactorNames = []string{
	"financial_liability", "cash_flow_to_price_ratio", "net_profit", "EBIT",
	"P/S", "P/E", "LTD/TA", "WCR", "QR", "EV/OCL", "D/E",
}

// ValueFactors computes valuation ratios per income date. Share count and
// price come from the enterprise value row on that date or the latest
// earlier one.
func ValueFactors(st Statements) (*Series, error) {
	if err := validate(Value,
		requirement{"income", st.Income, []string{"netIncome", "revenue", "eps", "operatingIncome"}},
		requirement{"balance", st.Balance, []string{"totalLiabilities", "totalAssets", "netReceivables", "inventory", "totalStockholdersEquity"}},
		requirement{"cash_flow", st.CashFlow, []string{"operatingCashFlow"}},
		requirement{"enterprise", st.Enterprise, []string{"numberOfShares", "stockPrice"}},
	); err != nil {
		return nil, err
	}
	out := newSeries(Value, ValueFactorNames...)
	for _, inc := range st.Income {
		bal, okB := on(st.Balance, inc.Date)
		cf, okC := on(st.CashFlow, inc.Date)
		ev, okE := asOf(st.Enterprise, inc.Date)

		rev := field(inc, true, "revenue")
		tl := field(bal, okB, "totalLiabilities")
		ta := field(bal, okB, "totalAssets")
		ocf := field(cf, okC, "operatingCashFlow")
		shares := field(ev, okE, "numberOfShares")
		price := field(ev, okE, "stockPrice")

		out.add(inc.Date,
			tl,
			stats.Ratio(stats.Ratio(ocf, shares), price),
			field(inc, true, "netIncome"),
			field(inc, true, "operatingIncome"),
			stats.Ratio(price, stats.Ratio(rev, shares)),
			stats.Ratio(price, field(inc, true, "eps")),
			stats.Ratio(tl, ta),
			stats.Ratio(ocf, ta),
			stats.Ratio(field(bal, okB, "netReceivables")+field(bal, okB, "inventory"), rev),
			stats.Ratio(ocf, tl),
			stats.Ratio(tl, field(bal, okB, "totalStockholdersEquity")),
		)
	}
	return out, nil
}

// StockFactorNames are the columns of the stock category.
var StockFactorNames = []string{
	"net_asset_per_share", "net_operate_cash_flow_per_share", "eps",
	"retained_earnings_per_share", "cashflow_per_share", "market_cap",
}

// StockFactors computes per-share figures per income date.
func StockFactors(st Statements) (*Series, error) {
	if err := validate(Stock,
		requirement{"income", st.Income, []string{"eps"}},
		requirement{"balance", st.Balance, []string{"totalStockholdersEquity", "retainedEarnings"}},
		requirement{"cash_flow", st.CashFlow, []string{"operatingCashFlow", "freeCashFlow"}},
		requirement{"enterprise", st.Enterprise, []string{"numberOfShares", "stockPrice"}},
	); err != nil {
		return nil, err
	}
	out := newSeries(Stock, StockFactorNames...)
	for _, inc := range st.Income {
		bal, okB := on(st.Balance, inc.Date)
		cf, okC := on(st.CashFlow, inc.Date)
		ev, okE := asOf(st.Enterprise, inc.Date)
		shares := field(ev, okE, "numberOfShares")

		out.add(inc.Date,
			stats.Ratio(field(bal, okB, "totalStockholdersEquity"), shares),
			stats.Ratio(field(cf, okC, "operatingCashFlow"), shares),
			field(inc, true, "eps"),
			stats.Ratio(field(bal, okB, "retainedEarnings"), shares),
			stats.Ratio(field(cf, okC, "freeCashFlow"), shares),
			shares*field(ev, okE, "stockPrice"),
		)
	}
	return out, nil
}

// GrowthFactorNames are the columns of the growth category.
var GrowthFactorNames = []string{
	"PEG", "net_profit_growth_rate", "total_revenue_growth_rate",
	"net_asset_growth_rate", "net_operate_cashflow_growth_rate",
}

// GrowthFactors compares each income date with the latest earlier statement
// of the same kind. Without an earlier statement the factor is NaN.
func GrowthFactors(st Statements) (*Series, error) {
	if err := validate(Growth,
		requirement{"income", st.Income, []string{"eps", "netIncome", "revenue"}},
		requirement{"balance", st.Balance, []string{"totalStockholdersEquity"}},
		requirement{"cash_flow", st.CashFlow, []string{"operatingCashFlow"}},
	); err != nil {
		return nil, err
	}
	out := newSeries(Growth, GrowthFactorNames...)
	for _, inc := range st.Income {
		prevInc, okPI := before(st.Income, inc.Date)
		bal, okB := on(st.Balance, inc.Date)
		prevBal, okPB := before(st.Balance, inc.Date)
		cf, okC := on(st.CashFlow, inc.Date)
		prevCF, okPC := before(st.CashFlow, inc.Date)

		grow := func(cur, prev fmp.Statement, okCur, okPrev bool, name string) float64 {
			return stats.Ratio(field(cur, okCur, name), field(prev, okPrev, name))
		}
		out.add(inc.Date,
			grow(inc, prevInc, true, okPI, "eps"),
			grow(inc, prevInc, true, okPI, "netIncome"),
			grow(inc, prevInc, true, okPI, "revenue"),
			grow(bal, prevBal, okB, okPB, "totalStockholdersEquity"),
			grow(cf, prevCF, okC, okPC, "operatingCashFlow")-1,
		)
	}
	return out, nil
}
