// Package fmp is a client for the Financial Modeling Prep v3 REST API.
package fmp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stockml/internal/metrics"
)

const DefaultBaseURL = "https://financialmodelingprep.com/api/v3"

var (
	// ErrStatus matches every *StatusError.
	ErrStatus = errors.New("fmp: unexpected status")
	// ErrAPI is returned when FMP answers 200 with an error document.
	ErrAPI = errors.New("fmp: api error")
)

// StatusError reports a non-200 response.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fmp: %s returned status %d", e.Endpoint, e.Code)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Cache stores raw response bodies by request key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
}

// Client issues rate-limited, cached and retried GET requests.
type Client struct {
	apiKey      string
	baseURL     string
	http        *http.Client
	limiter     *rate.Limiter
	cache       Cache
	logger      *zap.Logger
	metrics     *metrics.Registry
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option            { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(h *http.Client) Option   { return func(c *Client) { c.http = h } }
func WithLimiter(l *rate.Limiter) Option     { return func(c *Client) { c.limiter = l } }
func WithCache(cache Cache) Option           { return func(c *Client) { c.cache = cache } }
func WithLogger(l *zap.Logger) Option        { return func(c *Client) { c.logger = l } }
func WithMetrics(m *metrics.Registry) Option { return func(c *Client) { c.metrics = m } }
func WithBackoff(d time.Duration) Option     { return func(c *Client) { c.backoff = d } }
func WithMaxAttempts(n int) Option           { return func(c *Client) { c.maxAttempts = n } }

// New returns a client. Without options it is unlimited, uncached and silent.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		http:        &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Inf, 1),
		logger:      zap.NewNop(),
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Period maps the configured statement period to FMP's query value.
func Period(p string) string {
	switch p {
	case "quarterly", "quarter", "q":
		return "quarter"
	default:
		return "annual"
	}
}

// get fetches baseURL/path?params into out. name labels metrics and logs.
func (c *Client) get(ctx context.Context, name, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	key := path + "?" + params.Encode()

	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			err := decode(body, out)
			if err == nil {
				c.metrics.CacheHit()
				return nil
			}
			c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
			if err := c.cache.Delete(ctx, key); err != nil {
				c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
			}
		}
		c.metrics.CacheMiss()
	}

	body, err := c.fetch(ctx, name, path, params)
	if err != nil {
		return err
	}
	if err := decode(body, out); err != nil {
		return fmt.Errorf("fmp: decode %s: %w", name, err)
	}
	if c.cache != nil {
		if err := c.cache.Put(ctx, key, body); err != nil {
			c.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, name, path string, params url.Values) ([]byte, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("apikey", c.apiKey)
	u := c.baseURL + "/" + path + "?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			c.logger.Debug("retrying request",
				zap.String("endpoint", name),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fmp: rate limiter: %w", err)
		}

		start := time.Now()
		body, status, err := c.do(ctx, u)
		c.metrics.ObserveRequest(name, status, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if status == http.StatusOK {
			return body, nil
		}
		lastErr = &StatusError{Endpoint: name, Code: status}
		if !retryable(status) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// do performs one GET. The status is 0 when no response arrived.
func (c *Client) do(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// decode unmarshals body into out, reporting FMP error documents as ErrAPI.
func decode(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var apiErr struct {
			Message string `json:"Error Message"`
		}
		if json.Unmarshal(trimmed, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%w: %s", ErrAPI, apiErr.Message)
		}
	}
	return json.Unmarshal(trimmed, out)
}

// HistoricalPrices returns daily bars between from and to (inclusive), oldest first.
func (c *Client) HistoricalPrices(ctx context.Context, symbol string, from, to time.Time) ([]PriceBar, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("from", from.Format(dateLayout))
	}
	if !to.IsZero() {
		params.Set("to", to.Format(dateLayout))
	}
	var resp historicalResponse
	if err := c.get(ctx, "historical-price-full", "historical-price-full/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}
	bars := resp.Historical
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date.Time) })
	return bars, nil
}

func (c *Client) statements(ctx context.Context, name, symbol, period string) ([]Statement, error) {
	params := url.Values{}
	if period != "" {
		params.Set("period", Period(period))
	}
	var out []Statement
	if err := c.get(ctx, name, name+"/"+url.PathEscape(symbol), params, &out); err != nil {
		return nil, err
	}
	SortStatements(out)
	return out, nil
}

// IncomeStatements returns income statements oldest first.
func (c *Client) IncomeStatements(ctx context.Context, symbol, period string) ([]Statement, error) {
	return c.statements(ctx, "income-statement", symbol, period)
}

// BalanceSheets returns balance sheet statements oldest first.
func (c *Client) BalanceSheets(ctx context.Context, symbol, period string) ([]Statement, error) {
	return c.statements(ctx, "balance-sheet-statement", symbol, period)
}

// CashFlowStatements returns cash flow statements oldest first.
func (c *Client) CashFlowStatements(ctx context.Context, symbol, period string) ([]Statement, error) {
	return c.statements(ctx, "cash-flow-statement", symbol, period)
}

// EnterpriseValues returns share counts, prices and enterprise values oldest first.
func (c *Client) EnterpriseValues(ctx context.Context, symbol, period string) ([]Statement, error) {
	return c.statements(ctx, "enterprise-values", symbol, period)
}

// FinancialRatios returns the annual ratio history oldest first.
func (c *Client) FinancialRatios(ctx context.Context, symbol string) ([]Statement, error) {
	return c.statements(ctx, "ratios", symbol, "")
}

// StockNews returns up to limit recent articles for symbol.
func (c *Client) StockNews(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	params := url.Values{"tickers": {symbol}, "limit": {strconv.Itoa(limit)}}
	var out []NewsItem
	if err := c.get(ctx, "stock_news", "stock_news", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompanyPeers returns the peer symbols FMP lists for symbol.
func (c *Client) CompanyPeers(ctx context.Context, symbol string) ([]string, error) {
	var out []peersResponse
	if err := c.get(ctx, "peers", "peers/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	var peers []string
	for _, p := range out {
		peers = append(peers, p.PeersList...)
	}
	return peers, nil
}

// EarningsCalendar returns historical and upcoming earnings dates for symbol.
func (c *Client) EarningsCalendar(ctx context.Context, symbol string) ([]EarningsEvent, error) {
	var out []EarningsEvent
	if err := c.get(ctx, "earning_calendar", "historical/earning_calendar/"+url.PathEscape(symbol), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SP500Constituents returns the current index members.
func (c *Client) SP500Constituents(ctx context.Context) ([]Constituent, error) {
	var out []Constituent
	if err := c.get(ctx, "sp500_constituent", "sp500_constituent", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
