package main

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stockml/pkg/fmp"
	"stockml/pkg/store"
)

// newClient builds the FMP client from cfg. The returned func closes the cache.
func newClient() (*fmp.Client, func(), error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, nil, err
	}
	opts := []fmp.Option{
		fmp.WithBaseURL(cfg.FMP.BaseURL),
		fmp.WithHTTPClient(&http.Client{Timeout: cfg.FMP.Timeout}),
		fmp.WithLimiter(rate.NewLimiter(rate.Limit(cfg.FMP.RateLimit), cfg.FMP.Burst)),
		fmp.WithMaxAttempts(cfg.FMP.MaxAttempts),
		fmp.WithLogger(logger.Named("fmp")),
		fmp.WithMetrics(registry),
	}
	closeFn := func() {}
	if cfg.Cache.Enabled {
		cache, err := store.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("open cache: %w", err)
		}
		opts = append(opts, fmp.WithCache(cache))
		closeFn = func() {
			if err := cache.Close(); err != nil {
				logger.Warn("closing cache", zap.Error(err))
			}
		}
	}
	return fmp.New(cfg.FMP.APIKey, opts...), closeFn, nil
}
