package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockml/pkg/data"
	"stockml/pkg/factors"
	"stockml/pkg/pipeline"
)

var (
	factorsTickers string
	factorsOut     string
	factorsLimit   int
)

var factorsCmd = &cobra.Command{
	Use:   "factors",
	Short: "Compute and merge factors for every ticker",
	Long: `Fetches statements and prices for each ticker in the tickers file,
computes quality, value, stock, growth and market factors, merges them on
the quality dates and writes Ticker,date,<factors...> rows.`,
	Example: `  stockml factors --tickers Tickers.csv --out final_merged_factors.csv`,
	Args:    cobra.NoArgs,
	RunE:    runFactors,
}

func init() {
	factorsCmd.Flags().StringVar(&factorsTickers, "tickers", "", "CSV with a ticker column (default pipeline.tickers_file)")
	factorsCmd.Flags().StringVarP(&factorsOut, "out", "o", "", "output CSV (default pipeline.factors_file)")
	factorsCmd.Flags().IntVar(&factorsLimit, "limit", 0, "process only the first N tickers")
}

func runFactors(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	tickersPath := orDefault(factorsTickers, cfg.Pipeline.TickersFile)
	out := orDefault(factorsOut, cfg.Pipeline.FactorsFile)

	tickers, err := data.ReadTickersFile(tickersPath, cfg.Pipeline.TickerColumn)
	if err != nil {
		return fmt.Errorf("read tickers: %w", err)
	}
	if factorsLimit > 0 && factorsLimit < len(tickers) {
		tickers = tickers[:factorsLimit]
	}
	w, err := cfg.Dates.Window()
	if err != nil {
		return err
	}

	client, closeFn, err := newClient()
	if err != nil {
		return err
	}
	defer closeFn()

	opts := []factors.Option{
		factors.WithPeriod(cfg.FMP.Period),
		factors.WithRange(w.Start, w.End),
		factors.WithRiskFree(cfg.Pipeline.RiskFree),
		factors.WithLogger(logger.Named("factors")),
	}
	if bench, err := client.HistoricalPrices(ctx, cfg.Backtest.Benchmark, w.Start.AddDate(0, -7, 0), w.End); err != nil {
		logger.Warn("benchmark prices unavailable, style factors disabled",
			zap.String("benchmark", cfg.Backtest.Benchmark), zap.Error(err))
	} else {
		opts = append(opts, factors.WithBenchmark(bench))
	}

	proc := pipeline.NewProcessor(factors.NewCalculator(client, opts...),
		pipeline.WithRange(w.Start, w.End),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithMetrics(registry))

	start := time.Now()
	frame, err := proc.ProcessTickers(ctx, tickers)
	if err != nil {
		return err
	}
	if len(frame.Rows) == 0 {
		return fmt.Errorf("no factors were calculated for %d tickers", len(tickers))
	}
	if err := data.WriteCSVFile(out, frame); err != nil {
		return fmt.Errorf("write factors: %w", err)
	}
	logger.Info("factors written",
		zap.String("path", out),
		zap.Int("rows", len(frame.Rows)),
		zap.Int("columns", len(frame.Columns)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
