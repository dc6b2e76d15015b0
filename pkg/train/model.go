package train

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"stockml/pkg/backtest"
	"stockml/pkg/data"
	"stockml/pkg/dataprep"
	"stockml/pkg/model"
	"stockml/pkg/pipeline"
	"stockml/pkg/selection"
)

const modelVersion = 1

var ErrModelVersion = errors.New("train: unsupported model file version")

// Model is everything a fitted Trainer needs to predict: the feature columns
// it was trained on, the preprocessing steps, the selector and the
// classifier. It is stored with encoding/gob.
type Model struct {
	Version      int
	Name         string
	TrainedAt    time.Time
	TrainEnd     time.Time
	DateFeatures bool
	Features     []string
	Steps        []pipeline.Transformer
	Selector     selection.Selector
	Classifier   model.Classifier
}

// Model snapshots the fitted state.
func (t *Trainer) Model() (*Model, error) {
	if t.clf == nil {
		return nil, model.ErrNotFitted
	}
	return &Model{
		Version:      modelVersion,
		Name:         t.opts.Model,
		TrainedAt:    time.Now().UTC(),
		TrainEnd:     t.opts.TrainEnd,
		DateFeatures: t.opts.DateFeatures,
		Features:     t.features,
		Steps:        t.prep.Steps(),
		Selector:     t.selector,
		Classifier:   t.clf,
	}, nil
}

func (m *Model) Save(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("train: encode model: %w", err)
	}
	return nil
}

func LoadModel(r io.Reader) (*Model, error) {
	var m Model
	if err := gob.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("train: decode model: %w", err)
	}
	if m.Version != modelVersion {
		return nil, fmt.Errorf("%w: %d", ErrModelVersion, m.Version)
	}
	if m.Classifier == nil || m.Selector == nil || len(m.Features) == 0 {
		return nil, errors.New("train: model file is incomplete")
	}
	return &m, nil
}

// Restore returns a Trainer that predicts with m. The classifier name and
// date encoding come from m; opts supplies the prediction window, TopN,
// MaxAge and Universe.
func Restore(m *Model, opts Options, logger *zap.Logger) *Trainer {
	opts.Model = m.Name
	opts.DateFeatures = m.DateFeatures
	t := New(opts, logger)
	t.features = m.Features
	t.prep = pipeline.NewPipeline(m.Steps...)
	t.selector = m.Selector
	t.clf = m.Classifier
	return t
}

// Forecast prepares a raw factor frame the way Run does and predicts every
// quarter from TrainEnd to End.
func (t *Trainer) Forecast(f *data.Frame) ([]backtest.Prediction, error) {
	f = dataprep.DropDuplicates(f)
	if t.opts.DateFeatures {
		if err := dataprep.EncodeDates(f); err != nil {
			return nil, fmt.Errorf("train: encode dates: %w", err)
		}
	}
	return t.Predict(f, data.QuarterStarts(t.opts.TrainEnd, t.opts.End))
}
