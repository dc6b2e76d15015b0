package dataprep

import (
	"math"

	"stockml/pkg/data"
)

// MissingRatio returns the share of NaN cells per column.
func MissingRatio(f *data.Frame) []float64 {
	out := make([]float64, len(f.Columns))
	if len(f.Rows) == 0 {
		return out
	}
	for _, r := range f.Rows {
		for j, v := range r.Values {
			if math.IsNaN(v) {
				out[j]++
			}
		}
	}
	for j := range out {
		out[j] /= float64(len(f.Rows))
	}
	return out
}

// DropSparseColumns removes columns whose missing ratio exceeds threshold and
// returns the names of the dropped columns.
func DropSparseColumns(f *data.Frame, threshold float64) (*data.Frame, []string) {
	var dropped []string
	for j, r := range MissingRatio(f) {
		if r > threshold {
			dropped = append(dropped, f.Columns[j])
		}
	}
	if len(dropped) == 0 {
		return f, nil
	}
	return f.Drop(dropped...), dropped
}

// DropDuplicates removes repeated (ticker, date) rows, keeping the first.
func DropDuplicates(f *data.Frame) *data.Frame {
	type key struct {
		ticker string
		date   int64
	}
	seen := make(map[key]struct{}, len(f.Rows))
	return f.Filter(func(r data.Row) bool {
		k := key{r.Ticker, r.Date.Unix()}
		if _, ok := seen[k]; ok {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
}
