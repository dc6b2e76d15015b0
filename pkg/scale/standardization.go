package scale

import "stockml/pkg/stats"

// ZScore standardizes each column to zero mean and unit variance.
type ZScore struct {
	Mean []float64
	Std  []float64
}

func NewZScore() *ZScore { return &ZScore{} }

func (s *ZScore) Fit(X [][]float64) error {
	cols, err := finiteColumns(X)
	if err != nil {
		return err
	}
	s.Mean = make([]float64, len(cols))
	s.Std = make([]float64, len(cols))
	for j, col := range cols {
		s.Mean[j] = stats.Mean(col)
		s.Std[j] = stats.Std(col)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return nil
}

func (s *ZScore) Transform(X [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	return apply(X, len(s.Mean), func(j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Std[j]
	})
}

// Robust centers on the median and scales by the interquartile range.
type Robust struct {
	Median []float64
	IQR    []float64
}

func NewRobust() *Robust { return &Robust{} }

func (s *Robust) Fit(X [][]float64) error {
	cols, err := finiteColumns(X)
	if err != nil {
		return err
	}
	s.Median = make([]float64, len(cols))
	s.IQR = make([]float64, len(cols))
	for j, col := range cols {
		s.Median[j] = stats.Median(col)
		s.IQR[j] = stats.Percentile(col, 75) - stats.Percentile(col, 25)
		if s.IQR[j] == 0 {
			s.IQR[j] = 1
		}
	}
	return nil
}

func (s *Robust) Transform(X [][]float64) ([][]float64, error) {
	if s.Median == nil {
		return nil, ErrNotFitted
	}
	return apply(X, len(s.Median), func(j int, v float64) float64 {
		return (v - s.Median[j]) / s.IQR[j]
	})
}
