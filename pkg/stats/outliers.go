package stats

import "math"

// ClipOutliers winsorizes each column to its [lower, upper] percentiles.
// Percentiles are computed over the finite values of the column; NaN cells are kept.
func ClipOutliers(X [][]float64, lower, upper float64) [][]float64 {
	if len(X) == 0 {
		return X
	}
	lows, highs := Bounds(X, lower, upper)
	return Clip(X, lows, highs)
}

// Bounds returns the lower and upper percentile of each column's finite values.
func Bounds(X [][]float64, lower, upper float64) (lows, highs []float64) {
	if len(X) == 0 {
		return nil, nil
	}
	cols := len(X[0])
	lows = make([]float64, cols)
	highs = make([]float64, cols)
	for j := range cols {
		col := Finite(Column(X, j))
		if len(col) == 0 {
			lows[j], highs[j] = math.Inf(-1), math.Inf(1)
			continue
		}
		lows[j] = Percentile(col, lower)
		highs[j] = Percentile(col, upper)
	}
	return lows, highs
}

// Clip returns a copy of X with column j limited to [lows[j], highs[j]].
func Clip(X [][]float64, lows, highs []float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			switch {
			case math.IsNaN(v):
				out[i][j] = v
			case v < lows[j]:
				out[i][j] = lows[j]
			case v > highs[j]:
				out[i][j] = highs[j]
			default:
				out[i][j] = v
			}
		}
	}
	return out
}
