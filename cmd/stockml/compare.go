package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stockml/pkg/model"
	"stockml/pkg/train"
)

var (
	compareFactors string
	compareModels  []string
	compareFolds   int
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Cross-validate classifiers on the training window",
	Example: `  stockml compare --models random_forest,decision_tree --folds 5
  stockml compare --folds 0   # single 80/20 holdout`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := trainOptions()
		if err != nil {
			return err
		}
		names := compareModels
		if len(names) == 0 {
			names = model.Names()
		}
		f, err := loadLabelledFactors(cmd, orDefault(compareFactors, cfg.Pipeline.FactorsFile))
		if err != nil {
			return err
		}
		scores, err := train.Compare(cmd.Context(), f, names, compareFolds, opts, logger.Named("compare"))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-20s %5s %9s %7s %7s\n", "MODEL", "FOLDS", "ACCURACY", "STD", "F1")
		fmt.Fprintln(out, strings.Repeat("-", 52))
		for _, s := range scores {
			fmt.Fprintf(out, "%-20s %5d %9.4f %7.4f %7.4f\n", s.Model, s.Folds, s.Accuracy, s.AccuracyStd, s.F1)
		}
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareFactors, "factors", "", "merged factor CSV (default pipeline.factors_file)")
	compareCmd.Flags().StringSliceVar(&compareModels, "models", nil, "classifiers to compare (default all)")
	compareCmd.Flags().IntVar(&compareFolds, "folds", 5, "cross-validation folds; below 2 uses one holdout split")
}
