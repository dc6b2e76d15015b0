package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockml/pkg/universe"
)

var (
	constituentsOut       string
	constituentsStartYear int
	constituentsEndYear   int
)

var constituentsCmd = &cobra.Command{
	Use:   "constituents",
	Short: "Write the quarterly S&P 500 constituent timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w, err := cfg.Dates.Window()
		if err != nil {
			return err
		}
		start, end := constituentsStartYear, constituentsEndYear
		if start == 0 {
			start = w.Start.Year()
		}
		if end == 0 {
			end = w.End.Year()
		}
		if start > end {
			return fmt.Errorf("start year %d is after end year %d", start, end)
		}

		client, closeFn, err := newClient()
		if err != nil {
			return err
		}
		defer closeFn()

		tl, err := universe.Fetch(cmd.Context(), client, start, end, logger.Named("universe"))
		if err != nil {
			return err
		}
		out := orDefault(constituentsOut, cfg.Pipeline.Constituents)
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := tl.WriteCSV(f); err != nil {
			f.Close()
			return fmt.Errorf("write timeline: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info("constituent timeline written",
			zap.String("path", out),
			zap.Int("quarters", len(tl)),
			zap.Int("symbols", len(tl.Symbols())))
		return nil
	},
}

func init() {
	constituentsCmd.Flags().StringVarP(&constituentsOut, "out", "o", "", "output CSV (default pipeline.constituents_file)")
	constituentsCmd.Flags().IntVar(&constituentsStartYear, "start-year", 0, "first year of snapshots (default year of dates.start)")
	constituentsCmd.Flags().IntVar(&constituentsEndYear, "end-year", 0, "last year of snapshots (default year of dates.end)")
}
