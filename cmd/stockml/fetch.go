package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stockml/pkg/fmp"
)

var fetchNewsLimit int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Print raw FMP company data as JSON",
	Long: `Queries one FMP endpoint for a symbol and prints the decoded response as
indented JSON. Responses go through the same rate limiter, retry policy and
cache as the factor pipeline.`,
}

// fetchSubcommand builds "fetch <use> SYMBOL" around one client call.
func fetchSubcommand(use, short string, call func(cmd *cobra.Command, c *fmp.Client, symbol string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SYMBOL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeFn, err := newClient()
			if err != nil {
				return err
			}
			defer closeFn()
			symbol := strings.ToUpper(args[0])
			v, err := call(cmd, client, symbol)
			if err != nil {
				return fmt.Errorf("fetch %s %s: %w", use, symbol, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
}

func init() {
	fetchCmd.AddCommand(fetchSubcommand("ratios", "Financial ratios per period",
		func(cmd *cobra.Command, c *fmp.Client, symbol string) (any, error) {
			return c.FinancialRatios(cmd.Context(), symbol)
		}))
	news := fetchSubcommand("news", "Latest news items",
		func(cmd *cobra.Command, c *fmp.Client, symbol string) (any, error) {
			return c.StockNews(cmd.Context(), symbol, fetchNewsLimit)
		})
	news.Flags().IntVar(&fetchNewsLimit, "limit", 20, "maximum number of items")
	fetchCmd.AddCommand(news)
	fetchCmd.AddCommand(fetchSubcommand("peers", "Peer companies",
		func(cmd *cobra.Command, c *fmp.Client, symbol string) (any, error) {
			return c.CompanyPeers(cmd.Context(), symbol)
		}))
	fetchCmd.AddCommand(fetchSubcommand("earnings", "Historical and upcoming earnings dates",
		func(cmd *cobra.Command, c *fmp.Client, symbol string) (any, error) {
			return c.EarningsCalendar(cmd.Context(), symbol)
		}))
}
