package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockml/pkg/backtest"
	"stockml/pkg/data"
	"stockml/pkg/train"
)

var (
	backtestPredictions string
	backtestOut         string
	backtestModel       string
	backtestFactors     string
	backtestPlot        string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay quarterly picks against the benchmark",
	Long: `Buys the predicted tickers in equal weight at each quarter start, sells
at the next, and compounds the average return from backtest.initial_equity.
The benchmark is compounded over the same quarters.

Picks come from the predictions CSV, or, with --model, from a model saved by
train --save-model applied to the factor file.`,
	Example: `  stockml backtest --plot equity.png
  stockml backtest --model forest.gob --factors final_merged_factors.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w, err := cfg.Dates.Window()
		if err != nil {
			return err
		}
		preds, err := backtestPicks(cmd)
		if err != nil {
			return err
		}

		client, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		bt := backtest.New(client,
			backtest.WithInitialEquity(cfg.Backtest.InitialEquity),
			backtest.WithBenchmark(cfg.Backtest.Benchmark),
			backtest.WithWorkers(cfg.Pipeline.Workers),
			backtest.WithLogger(logger.Named("backtest")))
		report, err := bt.Run(cmd.Context(), preds, w.TrainEnd, w.End)
		if err != nil {
			return err
		}

		out := orDefault(backtestOut, cfg.Backtest.EquityFile)
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := report.WriteCSV(f); err != nil {
			f.Close()
			return fmt.Errorf("write equity curve: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		if backtestPlot != "" {
			if err := report.Plot(backtestPlot, cfg.Backtest.Benchmark); err != nil {
				return err
			}
			logger.Info("equity chart written", zap.String("path", backtestPlot))
		}

		strat, bench := backtest.Summarize(report.Strategy), backtest.Summarize(report.Benchmark)
		logger.Info("backtest finished",
			zap.String("equity", out),
			zap.Int("quarters", len(report.Rows)),
			zap.Float64("total_return", strat.TotalReturn),
			zap.Float64("benchmark_total_return", bench.TotalReturn))
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s total %7.2f%%  cagr %6.2f%%  max drawdown %6.2f%%\n",
			"strategy", 100*strat.TotalReturn, 100*strat.CAGR, 100*strat.MaxDrawdown)
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s total %7.2f%%  cagr %6.2f%%  max drawdown %6.2f%%\n",
			cfg.Backtest.Benchmark, 100*bench.TotalReturn, 100*bench.CAGR, 100*bench.MaxDrawdown)
		return nil
	},
}

// backtestPicks reads the predictions CSV or, with --model, predicts them.
func backtestPicks(cmd *cobra.Command) ([]backtest.Prediction, error) {
	if backtestModel == "" {
		r, err := os.Open(orDefault(backtestPredictions, cfg.Backtest.PredictionsFile))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		preds, err := backtest.ReadPredictions(r)
		if err != nil {
			return nil, fmt.Errorf("read predictions: %w", err)
		}
		return preds, nil
	}

	m, err := loadModel(backtestModel)
	if err != nil {
		return nil, err
	}
	opts, err := trainOptions()
	if err != nil {
		return nil, err
	}
	f, err := data.ReadCSVFile(cmd.Context(), orDefault(backtestFactors, cfg.Pipeline.FactorsFile))
	if err != nil {
		return nil, fmt.Errorf("read factors: %w", err)
	}
	preds, err := train.Restore(m, opts, logger.Named("train")).Forecast(f)
	if err != nil {
		return nil, err
	}
	logger.Info("picks from saved model",
		zap.String("model", m.Name),
		zap.Time("trained_at", m.TrainedAt),
		zap.Int("quarters", len(preds)))
	return preds, nil
}

func init() {
	backtestCmd.Flags().StringVar(&backtestPredictions, "predictions", "", "predictions CSV (default backtest.predictions_file)")
	backtestCmd.Flags().StringVarP(&backtestOut, "out", "o", "", "equity curve CSV (default backtest.equity_file)")
	backtestCmd.Flags().StringVar(&backtestModel, "model", "", "saved model to predict picks with instead of reading --predictions")
	backtestCmd.Flags().StringVar(&backtestFactors, "factors", "", "factor CSV for --model (default pipeline.factors_file)")
	backtestCmd.Flags().StringVar(&backtestPlot, "plot", "", "also draw the equity curves to this image (.png, .svg, .pdf)")
	backtestCmd.MarkFlagsMutuallyExclusive("model", "predictions")
}
