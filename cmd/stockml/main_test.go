package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestConfigCommandRedactsKey(t *testing.T) {
	t.Setenv("STOCKML_FMP_API_KEY", "secret-key")
	t.Setenv("STOCKML_BACKTEST_TOP_N", "7")

	out := execute(t, "config")
	assert.Contains(t, out, "top_n: 7")
	assert.NotContains(t, out, "secret-key")
}

func TestCacheCommands(t *testing.T) {
	t.Setenv("STOCKML_CACHE_PATH", filepath.Join(t.TempDir(), "cache.db"))

	assert.Contains(t, execute(t, "cache", "stats"), ": 0 responses")
	assert.Equal(t, "purged 0 responses\n", execute(t, "cache", "purge"))
}

func TestMissingConfigFileFails(t *testing.T) {
	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "config"})
	defer func() { cfgFile = "" }()
	assert.Error(t, rootCmd.Execute())
}

func TestFetchEarnings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/historical/earning_calendar/MSFT", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("apikey"))
		w.Write([]byte(`[{"date":"2024-01-30","symbol":"MSFT","eps":2.93,"epsEstimated":2.78}]`))
	}))
	defer srv.Close()
	t.Setenv("STOCKML_FMP_API_KEY", "k")
	t.Setenv("STOCKML_FMP_BASE_URL", srv.URL)
	t.Setenv("STOCKML_CACHE_ENABLED", "false")

	out := execute(t, "fetch", "earnings", "msft")
	assert.Contains(t, out, `"Symbol": "MSFT"`)
	assert.Contains(t, out, `"EPS": 2.93`)
	assert.Contains(t, out, `"2024-01-30"`)
}

func TestBacktestWritesChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		price := "100"
		if r.URL.Query().Get("to") >= "2024-01-01" {
			price = "110"
		}
		w.Write([]byte(`{"historical":[{"date":"2022-12-01","close":` + price + `}]}`))
	}))
	defer srv.Close()
	dir := t.TempDir()
	preds := filepath.Join(dir, "preds.csv")
	require.NoError(t, os.WriteFile(preds, []byte("Quarter,Top2_Tickers\n"+
		`2023-01-01,"[""AAPL"",""MSFT""]"`+"\n"+
		`2024-01-01,"[""AAPL""]"`+"\n"), 0o644))
	t.Setenv("STOCKML_FMP_API_KEY", "k")
	t.Setenv("STOCKML_FMP_BASE_URL", srv.URL)
	t.Setenv("STOCKML_CACHE_ENABLED", "false")
	defer func() { backtestPredictions, backtestOut, backtestPlot = "", "", "" }()

	chart := filepath.Join(dir, "equity.svg")
	out := execute(t, "backtest", "--predictions", preds, "-o", filepath.Join(dir, "equity.csv"), "--plot", chart)
	assert.Contains(t, out, "strategy")

	b, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<svg")
	_, err = os.Stat(filepath.Join(dir, "equity.csv"))
	assert.NoError(t, err)
}
