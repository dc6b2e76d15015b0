package dataprep

import (
	"errors"
	"fmt"

	"stockml/pkg/stats"
)

// Winsorizer clips each column to percentiles learned on the training rows.
type Winsorizer struct {
	Lower, Upper float64 // percentiles in [0, 100]
	Lows, Highs  []float64
}

// NewWinsorizer clips the tails below p and above 100-p percent.
func NewWinsorizer(p float64) *Winsorizer { return &Winsorizer{Lower: p, Upper: 100 - p} }

func (w *Winsorizer) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("dataprep: empty input")
	}
	w.Lows, w.Highs = stats.Bounds(X, w.Lower, w.Upper)
	return nil
}

func (w *Winsorizer) Transform(X [][]float64) ([][]float64, error) {
	if w.Lows == nil {
		return nil, ErrNotFitted
	}
	for i, row := range X {
		if len(row) != len(w.Lows) {
			return nil, fmt.Errorf("dataprep: row %d has %d columns, want %d", i, len(row), len(w.Lows))
		}
	}
	return stats.Clip(X, w.Lows, w.Highs), nil
}
