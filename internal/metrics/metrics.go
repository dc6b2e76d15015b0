// Package metrics exposes pipeline counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockml"

// Registry holds every collector the pipeline updates. A nil *Registry is
// valid and records nothing.
type Registry struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cache           *prometheus.CounterVec
	tickers         *prometheus.CounterVec
}

// New builds a registry with the Go and process collectors attached.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fmp",
				Name:      "requests_total",
				Help:      "FMP API requests by endpoint and HTTP status.",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fmp",
				Name:      "request_duration_seconds",
				Help:      "FMP API request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		cache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Response cache lookups by result.",
			},
			[]string{"result"},
		),
		tickers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "tickers_total",
				Help:      "Tickers processed by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveRequest records one HTTP round trip. status 0 means transport error.
func (r *Registry) ObserveRequest(endpoint string, status int, d time.Duration) {
	if r == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.requests.WithLabelValues(endpoint, label).Inc()
	r.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (r *Registry) CacheHit() {
	if r != nil {
		r.cache.WithLabelValues("hit").Inc()
	}
}

func (r *Registry) CacheMiss() {
	if r != nil {
		r.cache.WithLabelValues("miss").Inc()
	}
}

// Ticker counts a processed ticker; outcome is ok, skipped or failed.
func (r *Registry) Ticker(outcome string) {
	if r != nil {
		r.tickers.WithLabelValues(outcome).Inc()
	}
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
