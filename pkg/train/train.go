// Package train fits a return-category classifier on the factor dataset and
// turns its scores into quarterly top-N picks.
package train

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"stockml/pkg/backtest"
	"stockml/pkg/data"
	"stockml/pkg/dataprep"
	"stockml/pkg/loader"
	"stockml/pkg/model"
	"stockml/pkg/pipeline"
	"stockml/pkg/scale"
	"stockml/pkg/selection"
	"stockml/pkg/target"
	"stockml/pkg/universe"
)

var ErrNoTrainingRows = errors.New("train: no labelled rows before the training cutoff")

// Options configures a training run. Dates split rows into train (before
// TrainEnd), validation [TrainEnd, ValEnd) and test (from ValEnd).
type Options struct {
	TrainEnd time.Time
	ValEnd   time.Time
	// End bounds the prediction quarters, which start at TrainEnd.
	End time.Time

	Model string
	// Params holds the hyperparameters of every registered classifier.
	Params           model.Params
	Scaler           string
	Imputer          dataprep.Strategy
	Selector         string
	Threshold        float64
	Components       int
	Linkage          string
	ClusterThreshold float64
	// DropSparse removes feature columns whose training share of NaN is above it.
	DropSparse float64
	// Winsorize, when positive, clips each feature to its [p, 100-p] training
	// percentiles after imputation.
	Winsorize float64
	TopN      int
	// MaxAge excludes a ticker from a quarter when its latest row is older.
	MaxAge time.Duration
	Seed   int64
	// DateFeatures appends cyclical month, quarter and day encodings of each
	// row's date as features.
	DateFeatures bool
	// Prune applies reduced-error pruning to a decision_tree using the
	// validation window, which then no longer scores unseen data.
	Prune bool
	// Universe, when set, restricts each quarter's picks to its members.
	Universe universe.Timeline
}

func DefaultOptions() Options {
	return Options{
		Model:            "random_forest",
		Params:           model.DefaultParams(),
		Scaler:           "zscore",
		Imputer:          dataprep.StrategyMedian,
		Selector:         "importance",
		Threshold:        0.8,
		Components:       10,
		Linkage:          "average",
		ClusterThreshold: 0.3,
		DropSparse:       0.9,
		TopN:             20,
		MaxAge:           190 * 24 * time.Hour,
		Seed:             42,
		Prune:            true,
	}
}

// Result summarizes a run.
type Result struct {
	Features  []string
	Dropped   []string
	Selected  []string
	TrainRows int
	// Pruned counts decision tree nodes collapsed on the validation window.
	Pruned      int
	Validation  model.Report
	Test        model.Report
	Predictions []backtest.Prediction
}

// Trainer runs the fit and prediction steps.
type Trainer struct {
	opts   Options
	logger *zap.Logger

	prep     *pipeline.Pipeline
	selector selection.Selector
	clf      model.Classifier
	features []string
}

func New(opts Options, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{opts: opts, logger: logger}
}

// Run labels f (which must carry CloseColumn), fits on the training split,
// evaluates on validation and test, and predicts every quarter from TrainEnd
// to End.
func (t *Trainer) Run(f *data.Frame) (*Result, error) {
	if f.Index(CloseColumn) < 0 {
		return nil, fmt.Errorf("train: frame has no %q column", CloseColumn)
	}
	f = dataprep.DropDuplicates(f)
	if t.opts.DateFeatures {
		if err := dataprep.EncodeDates(f); err != nil {
			return nil, fmt.Errorf("train: encode dates: %w", err)
		}
	}
	labelled, y := target.NewFiveCategory().Labels(f)

	res := &Result{}
	trainFrame, valFrame, testFrame := loader.SplitByDate(labelled, t.opts.TrainEnd, t.opts.ValEnd)
	if len(trainFrame.Rows) == 0 {
		return nil, ErrNoTrainingRows
	}
	yTrain, yVal, yTest := splitLabels(labelled, y, t.opts.TrainEnd, t.opts.ValEnd)

	features := trainFrame.Drop(CloseColumn)
	kept, dropped := dataprep.DropSparseColumns(features, t.opts.DropSparse)
	res.Dropped = dropped
	t.features = kept.Columns
	res.Features = t.features
	res.TrainRows = len(trainFrame.Rows)
	if len(t.features) == 0 {
		return nil, errors.New("train: every feature column is too sparse")
	}
	t.logger.Info("training split",
		zap.Int("train", len(trainFrame.Rows)),
		zap.Int("validation", len(valFrame.Rows)),
		zap.Int("test", len(testFrame.Rows)),
		zap.Int("features", len(t.features)),
		zap.Strings("dropped", dropped))

	if err := t.fit(kept.Matrix(), yTrain); err != nil {
		return nil, err
	}
	res.Selected = t.selector.Columns()

	var err error
	if res.Pruned, err = t.prune(valFrame, yVal); err != nil {
		return nil, err
	}
	if res.Validation, err = t.evaluate(valFrame, yVal); err != nil {
		return nil, err
	}
	if res.Test, err = t.evaluate(testFrame, yTest); err != nil {
		return nil, err
	}
	t.logger.Info("evaluation",
		zap.Float64("val_accuracy", res.Validation.Accuracy),
		zap.Float64("val_f1", res.Validation.F1),
		zap.Float64("test_accuracy", res.Test.Accuracy),
		zap.Float64("test_f1", res.Test.F1))

	if res.Predictions, err = t.Predict(f, data.QuarterStarts(t.opts.TrainEnd, t.opts.End)); err != nil {
		return nil, err
	}
	return res, nil
}

func splitLabels(f *data.Frame, y []int, trainEnd, valEnd time.Time) (train, val, test []int) {
	for i, r := range f.Rows {
		switch {
		case r.Date.Before(trainEnd):
			train = append(train, y[i])
		case r.Date.Before(valEnd):
			val = append(val, y[i])
		default:
			test = append(test, y[i])
		}
	}
	return train, val, test
}

func (t *Trainer) fit(X [][]float64, y []int) error {
	scaler, err := scale.New(t.opts.Scaler)
	if err != nil {
		return err
	}
	steps := []pipeline.Transformer{dataprep.NewImputer(t.opts.Imputer)}
	if t.opts.Winsorize > 0 {
		steps = append(steps, dataprep.NewWinsorizer(t.opts.Winsorize))
	}
	t.prep = pipeline.NewPipeline(append(steps, scaler)...)
	Xt, err := t.prep.FitTransform(X)
	if err != nil {
		return fmt.Errorf("train: preprocess: %w", err)
	}

	threshold := t.opts.Threshold
	if t.opts.Selector == "cluster" {
		threshold = t.opts.ClusterThreshold
	}
	if t.selector, err = selection.New(t.opts.Selector, threshold, t.opts.Components, t.opts.Linkage, t.opts.Seed); err != nil {
		return err
	}
	if err := t.selector.Fit(t.features, Xt, y); err != nil {
		return fmt.Errorf("train: select features: %w", err)
	}
	if Xt, err = t.selector.Transform(Xt); err != nil {
		return fmt.Errorf("train: select features: %w", err)
	}
	t.logger.Debug("selected features", zap.Strings("columns", t.selector.Columns()))
	if p, ok := t.selector.(*selection.PCA); ok {
		t.logger.Debug("principal components", zap.Float64s("explained", p.Explained()))
	}

	if t.clf, err = model.NewWithParams(t.opts.Model, t.opts.Params, t.opts.Seed); err != nil {
		return err
	}
	if err := t.clf.Fit(Xt, y); err != nil {
		return fmt.Errorf("train: fit %s: %w", t.opts.Model, err)
	}
	return nil
}

// prune collapses tree nodes that do not improve accuracy on the validation
// rows. Only a decision tree with Prune set and a non-empty window is pruned.
func (t *Trainer) prune(f *data.Frame, y []int) (int, error) {
	tree, ok := t.clf.(*model.DecisionTreeClassifier)
	if !ok || !t.opts.Prune || len(f.Rows) == 0 {
		return 0, nil
	}
	X, err := t.transform(f)
	if err != nil {
		return 0, fmt.Errorf("train: prune: %w", err)
	}
	n, err := tree.PruneReducedError(X, y)
	if err != nil {
		return 0, fmt.Errorf("train: prune: %w", err)
	}
	t.logger.Info("pruned decision tree", zap.Int("nodes", n), zap.Int("validation_rows", len(y)))
	return n, nil
}

// transform maps rows of a frame with the training columns to model input.
func (t *Trainer) transform(f *data.Frame) ([][]float64, error) {
	sel, err := f.Select(t.features)
	if err != nil {
		return nil, err
	}
	X, err := t.prep.Transform(sel.Matrix())
	if err != nil {
		return nil, err
	}
	return t.selector.Transform(X)
}

func (t *Trainer) evaluate(f *data.Frame, y []int) (model.Report, error) {
	if len(f.Rows) == 0 {
		return model.Report{}, nil
	}
	X, err := t.transform(f)
	if err != nil {
		return model.Report{}, fmt.Errorf("train: evaluate: %w", err)
	}
	return model.Evaluate(y, t.clf.Predict(X)), nil
}

// Predict ranks, for each quarter, every ticker's latest row on or before it
// by expected return category and keeps the TopN. Ties go to the
// alphabetically first ticker.
func (t *Trainer) Predict(f *data.Frame, quarters []time.Time) ([]backtest.Prediction, error) {
	if t.clf == nil {
		return nil, model.ErrNotFitted
	}
	groups, order := f.Groups()
	out := make([]backtest.Prediction, 0, len(quarters))
	for _, q := range quarters {
		var members map[string]bool
		if len(t.opts.Universe) > 0 {
			if snap, ok := t.opts.Universe.At(q); ok {
				members = make(map[string]bool, len(snap.Symbols))
				for _, s := range snap.Symbols {
					members[s] = true
				}
			}
		}

		latest := data.NewFrame(f.Columns...)
		for _, ticker := range order {
			if members != nil && !members[ticker] {
				continue
			}
			best := -1
			for _, i := range groups[ticker] {
				d := f.Rows[i].Date
				if d.After(q) || (t.opts.MaxAge > 0 && q.Sub(d) > t.opts.MaxAge) {
					continue
				}
				if best < 0 || d.After(f.Rows[best].Date) {
					best = i
				}
			}
			if best >= 0 {
				latest.Rows = append(latest.Rows, f.Rows[best])
			}
		}

		pred := backtest.Prediction{Quarter: q}
		if len(latest.Rows) > 0 {
			X, err := t.transform(latest)
			if err != nil {
				return nil, fmt.Errorf("train: predict %s: %w", q.Format(data.DateLayout), err)
			}
			pred.Tickers = topN(latest, model.ExpectedClass(t.clf, X), t.opts.TopN)
		}
		t.logger.Debug("quarter picks",
			zap.Time("quarter", q),
			zap.Int("candidates", len(latest.Rows)),
			zap.Strings("tickers", pred.Tickers))
		out = append(out, pred)
	}
	return out, nil
}

func topN(f *data.Frame, scores []float64, n int) []string {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := scores[idx[a]], scores[idx[b]]
		if sa != sb {
			return sa > sb
		}
		return f.Rows[idx[a]].Ticker < f.Rows[idx[b]].Ticker
	})
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, n)
	for k := 0; k < n; k++ {
		out[k] = f.Rows[idx[k]].Ticker
	}
	return out
}
