package scale

import "stockml/pkg/stats"

// MinMax scales each column to [0, 1]. Constant columns map to 0.
type MinMax struct {
	Min []float64
	Max []float64
}

func NewMinMax() *MinMax { return &MinMax{} }

func (s *MinMax) Fit(X [][]float64) error {
	cols, err := finiteColumns(X)
	if err != nil {
		return err
	}
	s.Min = make([]float64, len(cols))
	s.Max = make([]float64, len(cols))
	for j, col := range cols {
		s.Min[j], s.Max[j] = stats.MinMax(col)
	}
	return nil
}

func (s *MinMax) Transform(X [][]float64) ([][]float64, error) {
	if s.Min == nil {
		return nil, ErrNotFitted
	}
	return apply(X, len(s.Min), func(j int, v float64) float64 {
		if s.Max[j] == s.Min[j] {
			return 0
		}
		return (v - s.Min[j]) / (s.Max[j] - s.Min[j])
	})
}

// MeanNormalization maps x to (x - mean) / (max - min). Columns with zero
// range are left as they are.
type MeanNormalization struct {
	Mean  []float64
	Range []float64
}

func NewMeanNormalization() *MeanNormalization { return &MeanNormalization{} }

func (s *MeanNormalization) Fit(X [][]float64) error {
	cols, err := finiteColumns(X)
	if err != nil {
		return err
	}
	s.Mean = make([]float64, len(cols))
	s.Range = make([]float64, len(cols))
	for j, col := range cols {
		lo, hi := stats.MinMax(col)
		s.Mean[j] = stats.Mean(col)
		s.Range[j] = hi - lo
	}
	return nil
}

func (s *MeanNormalization) Transform(X [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	return apply(X, len(s.Mean), func(j int, v float64) float64 {
		if s.Range[j] == 0 {
			return v
		}
		return (v - s.Mean[j]) / s.Range[j]
	})
}

const logEpsilon = 1e-6

// NewLog returns a scaler computing ln(x + 1e-6). Non-positive inputs below
// -1e-6 become NaN.
func NewLog() Scaler { return &elementwise{Func: "log"} }

// NewSigmoid squashes each value with the logistic function.
func NewSigmoid() Scaler { return &elementwise{Func: "sigmoid"} }

// NewTanh squashes each value with tanh.
func NewTanh() Scaler { return &elementwise{Func: "tanh"} }
