package dataprep

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"

	"stockml/pkg/stats"
)

// Strategy picks the fill value for a column.
type Strategy string

const (
	StrategyMean     Strategy = "mean"
	StrategyMedian   Strategy = "median"
	StrategyConstant Strategy = "constant"
)

var ErrNotFitted = errors.New("dataprep: imputer not fitted")

// Both steps are saved inside fitted pipelines.
func init() {
	gob.Register(&Imputer{})
	gob.Register(&Winsorizer{})
}

// Imputer replaces NaN cells with a per-column statistic learned on training rows.
type Imputer struct {
	Strategy Strategy
	Constant float64
	Fill     []float64
}

func NewImputer(s Strategy) *Imputer { return &Imputer{Strategy: s} }

// Fit learns the fill value per column. Columns with no finite values fall
// back to Constant.
func (m *Imputer) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("dataprep: empty input")
	}
	cols := len(X[0])
	m.Fill = make([]float64, cols)
	for j := 0; j < cols; j++ {
		vals := stats.Finite(stats.Column(X, j))
		if len(vals) == 0 {
			m.Fill[j] = m.Constant
			continue
		}
		switch m.Strategy {
		case StrategyMean:
			m.Fill[j] = stats.Mean(vals)
		case StrategyMedian:
			m.Fill[j] = stats.Median(vals)
		case StrategyConstant:
			m.Fill[j] = m.Constant
		default:
			return fmt.Errorf("dataprep: unknown strategy %q", m.Strategy)
		}
	}
	return nil
}

// Transform returns a copy of X with NaN and infinite cells filled.
func (m *Imputer) Transform(X [][]float64) ([][]float64, error) {
	if m.Fill == nil {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(m.Fill) {
			return nil, fmt.Errorf("dataprep: row %d has %d columns, want %d", i, len(row), len(m.Fill))
		}
		o := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = m.Fill[j]
			}
			o[j] = v
		}
		out[i] = o
	}
	return out, nil
}

// ForwardFill replaces NaN cells with the last finite value above them in the
// same column. Leading NaNs are kept.
func ForwardFill(X [][]float64) {
	if len(X) == 0 {
		return
	}
	last := make([]float64, len(X[0]))
	for j := range last {
		last[j] = math.NaN()
	}
	for _, row := range X {
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = last[j]
			} else {
				last[j] = v
			}
		}
	}
}
