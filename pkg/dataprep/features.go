package dataprep

import "math"

// LogReturns returns ln(p_t / p_{t-1}); the first element is NaN.
func LogReturns(prices []float64) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		if i == 0 || prices[i-1] <= 0 || prices[i] <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(prices[i] / prices[i-1])
	}
	return out
}

// PctChange returns p_t / p_{t-1} - 1; the first element is NaN.
func PctChange(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 || x[i-1] == 0 || math.IsNaN(x[i-1]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i]/x[i-1] - 1
	}
	return out
}

// FeatureSelect selects columns by indices.
func FeatureSelect(X [][]float64, indices []int) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		selected := make([]float64, len(indices))
		for j, idx := range indices {
			selected[j] = row[idx]
		}
		out[i] = selected
	}
	return out
}
