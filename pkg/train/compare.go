package train

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockml/pkg/data"
	"stockml/pkg/dataprep"
	"stockml/pkg/loader"
	"stockml/pkg/model"
	"stockml/pkg/stats"
	"stockml/pkg/target"
)

// Score is one classifier's cross-validated result on the training rows.
type Score struct {
	Model       string
	Folds       int
	Accuracy    float64
	AccuracyStd float64
	F1          float64
}

// Compare cross-validates each named classifier on the labelled rows before
// TrainEnd with the configured preprocessing and selector. folds below 2
// falls back to a single shuffled 80/20 holdout. Scores are sorted by
// accuracy, best first.
func Compare(ctx context.Context, f *data.Frame, names []string, folds int, opts Options, logger *zap.Logger) ([]Score, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if f.Index(CloseColumn) < 0 {
		return nil, fmt.Errorf("train: frame has no %q column", CloseColumn)
	}
	f = dataprep.DropDuplicates(f)
	if opts.DateFeatures {
		if err := dataprep.EncodeDates(f); err != nil {
			return nil, fmt.Errorf("train: encode dates: %w", err)
		}
	}
	labelled, y := target.NewFiveCategory().Labels(f)
	trainFrame, _, _ := loader.SplitByDate(labelled, opts.TrainEnd, opts.ValEnd)
	if len(trainFrame.Rows) == 0 {
		return nil, ErrNoTrainingRows
	}
	yTrain, _, _ := splitLabels(labelled, y, opts.TrainEnd, opts.ValEnd)
	kept, _ := dataprep.DropSparseColumns(trainFrame.Drop(CloseColumn), opts.DropSparse)
	if len(kept.Columns) == 0 {
		return nil, errors.New("train: every feature column is too sparse")
	}
	X := kept.Matrix()

	var splits [][2][]int
	if folds < 2 {
		tr, te := loader.TrainTestSplit(len(X), 0.2, opts.Seed)
		splits = append(splits, [2][]int{tr, te})
	} else {
		parts := loader.KFoldSplit(len(X), folds, opts.Seed)
		for k := range parts {
			var tr []int
			for j, p := range parts {
				if j != k {
					tr = append(tr, p...)
				}
			}
			splits = append(splits, [2][]int{tr, parts[k]})
		}
	}

	scores := make([]Score, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			var acc, f1 []float64
			for _, s := range splits {
				if err := ctx.Err(); err != nil {
					return err
				}
				if len(s[0]) == 0 || len(s[1]) == 0 {
					continue
				}
				o := opts
				o.Model = name
				t := New(o, logger)
				t.features = kept.Columns
				if err := t.fit(loader.Take(X, s[0]), loader.Take(yTrain, s[0])); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				Xt, err := t.prep.Transform(loader.Take(X, s[1]))
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				if Xt, err = t.selector.Transform(Xt); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				r := model.Evaluate(loader.Take(yTrain, s[1]), t.clf.Predict(Xt))
				acc = append(acc, r.Accuracy)
				f1 = append(f1, r.F1)
			}
			scores[i] = Score{
				Model:       name,
				Folds:       len(acc),
				Accuracy:    stats.Mean(acc),
				AccuracyStd: stats.Std(acc),
				F1:          stats.Mean(f1),
			}
			logger.Info("cross-validated",
				zap.String("model", name),
				zap.Int("folds", len(acc)),
				zap.Float64("accuracy", scores[i].Accuracy),
				zap.Float64("f1", scores[i].F1))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].Accuracy > scores[b].Accuracy })
	return scores, nil
}
