package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounts(t *testing.T) {
	r := New()
	r.ObserveRequest("ratios", 200, 10*time.Millisecond)
	r.ObserveRequest("ratios", 200, 10*time.Millisecond)
	r.ObserveRequest("ratios", 0, time.Millisecond)
	r.CacheHit()
	r.CacheMiss()
	r.CacheMiss()
	r.Ticker("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("ratios", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("ratios", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tickers.WithLabelValues("ok")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveRequest("x", 500, 0)
		r.CacheHit()
		r.CacheMiss()
		r.Ticker("failed")
	})
}

func TestHandlerServesText(t *testing.T) {
	r := New()
	r.Ticker("skipped")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `stockml_pipeline_tickers_total{outcome="skipped"} 1`)
}
