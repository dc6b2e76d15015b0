package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockml/pkg/backtest"
	"stockml/pkg/data"
	"stockml/pkg/dataprep"
	"stockml/pkg/train"
	"stockml/pkg/universe"
)

var (
	trainFactors  string
	trainOut      string
	trainUniverse string
	trainModel    string
	trainSelector string
	trainSave     string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the return-category classifier and write quarterly picks",
	Long: `Reads the merged factor file, attaches each row's close price, labels
rows by next-period return, fits on dates before dates.train_end and
evaluates on the validation and test windows. The top backtest.top_n tickers
per quarter from dates.train_end to dates.end are written as predictions.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainFactors, "factors", "", "merged factor CSV (default pipeline.factors_file)")
	trainCmd.Flags().StringVarP(&trainOut, "out", "o", "", "predictions CSV (default backtest.predictions_file)")
	trainCmd.Flags().StringVar(&trainUniverse, "universe", "", "constituent timeline CSV restricting picks to index members")
	trainCmd.Flags().StringVar(&trainModel, "model", "", "classifier name (default model.name)")
	trainCmd.Flags().StringVar(&trainSelector, "selector", "", "feature selector name (default model.selector)")
	trainCmd.Flags().StringVar(&trainSave, "save-model", "", "write the fitted model to this file for backtest --model")
}

// trainOptions maps the model and date settings onto train.Options.
func trainOptions() (train.Options, error) {
	w, err := cfg.Dates.Window()
	if err != nil {
		return train.Options{}, err
	}
	opts := train.DefaultOptions()
	opts.TrainEnd, opts.ValEnd, opts.End = w.TrainEnd, w.ValEnd, w.End
	opts.Model = orDefault(trainModel, cfg.Model.Name)
	opts.Params = cfg.Model.Params
	opts.Prune = cfg.Model.Prune
	opts.Scaler = cfg.Model.Scaler
	opts.Imputer = dataprep.Strategy(cfg.Model.Imputer)
	opts.Selector = orDefault(trainSelector, cfg.Model.Selector)
	opts.Threshold = cfg.Model.ImportanceThreshold
	opts.Components = cfg.Model.Components
	opts.Linkage = cfg.Model.Linkage
	opts.ClusterThreshold = cfg.Model.ClusterThreshold
	opts.DropSparse = cfg.Model.DropSparse
	opts.Winsorize = cfg.Model.Winsorize
	opts.Seed = cfg.Model.Seed
	opts.DateFeatures = cfg.Model.DateFeatures
	opts.TopN = cfg.Backtest.TopN
	return opts, nil
}

// loadLabelledFactors reads the factor file and attaches close prices when
// the file does not carry them yet.
func loadLabelledFactors(cmd *cobra.Command, path string) (*data.Frame, error) {
	f, err := data.ReadCSVFile(cmd.Context(), path)
	if err != nil {
		return nil, fmt.Errorf("read factors: %w", err)
	}
	if f.Index(train.CloseColumn) >= 0 {
		return f, nil
	}
	client, closeFn, err := newClient()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	if err := train.AttachClose(cmd.Context(), f, client, cfg.Pipeline.Workers, logger.Named("prices")); err != nil {
		return nil, err
	}
	return f, nil
}

func runTrain(cmd *cobra.Command, _ []string) error {
	opts, err := trainOptions()
	if err != nil {
		return err
	}
	if trainUniverse != "" {
		r, err := os.Open(trainUniverse)
		if err != nil {
			return err
		}
		opts.Universe, err = universe.ReadCSV(r)
		r.Close()
		if err != nil {
			return fmt.Errorf("read universe: %w", err)
		}
	}

	f, err := loadLabelledFactors(cmd, orDefault(trainFactors, cfg.Pipeline.FactorsFile))
	if err != nil {
		return err
	}
	tr := train.New(opts, logger.Named("train"))
	res, err := tr.Run(f)
	if err != nil {
		return err
	}
	if trainSave != "" {
		if err := saveModel(tr, trainSave); err != nil {
			return err
		}
		logger.Info("model saved", zap.String("path", trainSave))
	}

	out := orDefault(trainOut, cfg.Backtest.PredictionsFile)
	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := backtest.WritePredictions(w, res.Predictions, opts.TopN); err != nil {
		w.Close()
		return fmt.Errorf("write predictions: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	logger.Info("training finished",
		zap.String("model", opts.Model),
		zap.Int("train_rows", res.TrainRows),
		zap.Int("features", len(res.Features)),
		zap.Int("selected", len(res.Selected)),
		zap.Int("pruned_nodes", res.Pruned),
		zap.Float64("val_accuracy", res.Validation.Accuracy),
		zap.Float64("test_accuracy", res.Test.Accuracy),
		zap.Int("quarters", len(res.Predictions)),
		zap.String("predictions", out))
	fmt.Fprintf(cmd.OutOrStdout(), "validation: accuracy %.3f  precision %.3f  recall %.3f  f1 %.3f  (n=%d)\n",
		res.Validation.Accuracy, res.Validation.Precision, res.Validation.Recall, res.Validation.F1, res.Validation.Support)
	fmt.Fprintf(cmd.OutOrStdout(), "test:       accuracy %.3f  precision %.3f  recall %.3f  f1 %.3f  (n=%d)\n",
		res.Test.Accuracy, res.Test.Precision, res.Test.Recall, res.Test.F1, res.Test.Support)
	return nil
}

func saveModel(tr *train.Trainer, path string) error {
	m, err := tr.Model()
	if err != nil {
		return err
	}
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Save(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func loadModel(path string) (*train.Model, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return train.LoadModel(r)
}
