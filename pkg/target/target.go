// Package target turns per-ticker price histories into next-period return
// categories.
package target

import (
	"math"
	"sort"

	"stockml/pkg/data"
)

// DefaultEdges are the percentage-change bin edges of the five categories:
// (-inf,-10], (-10,0], (0,5], (5,10], (10,+inf).
var DefaultEdges = []float64{math.Inf(-1), -10, 0, 5, 10, math.Inf(1)}

// FiveCategory bins the next period's percentage change of Column.
type FiveCategory struct {
	Column string
	Edges  []float64
}

func NewFiveCategory() *FiveCategory {
	return &FiveCategory{Column: "close", Edges: DefaultEdges}
}

// Bin returns the label of pct for right-inclusive edges, or -1 when pct is
// NaN or outside the edges.
func (c *FiveCategory) Bin(pct float64) int {
	if math.IsNaN(pct) {
		return -1
	}
	for k := 1; k < len(c.Edges); k++ {
		if pct > c.Edges[k-1] && pct <= c.Edges[k] {
			return k - 1
		}
	}
	return -1
}

// Labels returns the rows of f that have a target and the target of each.
// Within each ticker, rows are taken in date order; row t is labelled with
// the bin of the change from t to t+1. Without Column every label is 0 and
// only the last row of each ticker is dropped.
func (c *FiveCategory) Labels(f *data.Frame) (*data.Frame, []int) {
	col := f.Index(c.Column)
	groups, order := f.Groups()
	out := data.NewFrame(f.Columns...)
	var y []int
	for _, ticker := range order {
		idx := groups[ticker]
		sort.SliceStable(idx, func(a, b int) bool { return f.Rows[idx[a]].Date.Before(f.Rows[idx[b]].Date) })
		for k := 0; k+1 < len(idx); k++ {
			label := 0
			if col >= 0 {
				cur := f.Rows[idx[k]].Values[col]
				next := f.Rows[idx[k+1]].Values[col]
				label = c.Bin(pctChange(cur, next))
			}
			if label < 0 {
				continue
			}
			out.Rows = append(out.Rows, f.Rows[idx[k]])
			y = append(y, label)
		}
	}
	return out, y
}

// pctChange follows float division: a move away from a zero close is
// infinite, 0 to 0 is undefined.
func pctChange(prev, cur float64) float64 {
	if math.IsNaN(prev) || math.IsNaN(cur) {
		return math.NaN()
	}
	if prev == 0 {
		switch {
		case cur > 0:
			return math.Inf(1)
		case cur < 0:
			return math.Inf(-1)
		}
		return math.NaN()
	}
	return (cur/prev - 1) * 100
}
