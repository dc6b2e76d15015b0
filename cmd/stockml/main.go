// Command stockml builds a factor dataset from Financial Modeling Prep,
// trains a return-category classifier on it and backtests the picks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stockml/internal/config"
	"stockml/internal/metrics"
)

const defaultConfigPath = "stockml.yaml"

var (
	cfgFile     string
	verbose     bool
	metricsAddr string

	cfg           config.Config
	logger        *zap.Logger
	registry      *metrics.Registry
	metricsServer *http.Server
)

var rootCmd = &cobra.Command{
	Use:   "stockml",
	Short: "Factor-based stock selection with machine learning",
	Long: `stockml computes fundamental and market factors for a list of tickers,
labels each period with its next return category, trains a classifier and
replays its quarterly top-N picks against the S&P 500.

Settings come from stockml.yaml (or --config) and STOCKML_* environment
variables. The FMP API key is read from STOCKML_FMP_API_KEY or API_KEY.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		if logger, err = zc.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		path, explicit := cfgFile, cfgFile != ""
		if !explicit {
			path = defaultConfigPath
		}
		if cfg, err = config.Load(path, explicit); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		registry = metrics.New()
		if metricsAddr != "" {
			startMetricsServer(metricsAddr)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(ctx)
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+defaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(factorsCmd)
	rootCmd.AddCommand(constituentsCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(backtestCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
