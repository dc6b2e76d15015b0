// Package data holds the tabular factor dataset: one row per (ticker, date)
// with a float column per factor. Missing values are NaN.
package data

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the date format used in every CSV this module reads or writes.
const DateLayout = "2006-01-02"

// Row is one observation of a ticker on a date.
type Row struct {
	Ticker string
	Date   time.Time
	Values []float64
}

// Frame is a named-column table of rows.
type Frame struct {
	Columns []string
	Rows    []Row
}

// NewFrame returns an empty frame with the given columns.
func NewFrame(columns ...string) *Frame {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Frame{Columns: cols}
}

// Index returns the position of column name, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. Values must match the column count.
func (f *Frame) Append(ticker string, date time.Time, values []float64) error {
	if len(values) != len(f.Columns) {
		return fmt.Errorf("data: row for %s has %d values, frame has %d columns", ticker, len(values), len(f.Columns))
	}
	f.Rows = append(f.Rows, Row{Ticker: ticker, Date: date, Values: values})
	return nil
}

// AppendMap adds a row from a name -> value map; absent columns are NaN.
func (f *Frame) AppendMap(ticker string, date time.Time, values map[string]float64) {
	row := make([]float64, len(f.Columns))
	for i, c := range f.Columns {
		v, ok := values[c]
		if !ok {
			v = math.NaN()
		}
		row[i] = v
	}
	f.Rows = append(f.Rows, Row{Ticker: ticker, Date: date, Values: row})
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	j := f.Index(name)
	if j < 0 {
		return nil, fmt.Errorf("data: no column %q", name)
	}
	out := make([]float64, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Values[j]
	}
	return out, nil
}

// AddColumn appends a column; vals must have one entry per row.
func (f *Frame) AddColumn(name string, vals []float64) error {
	if len(vals) != len(f.Rows) {
		return fmt.Errorf("data: column %q has %d values, frame has %d rows", name, len(vals), len(f.Rows))
	}
	if f.Index(name) >= 0 {
		return fmt.Errorf("data: column %q already exists", name)
	}
	f.Columns = append(f.Columns, name)
	for i := range f.Rows {
		f.Rows[i].Values = append(f.Rows[i].Values, vals[i])
	}
	return nil
}

// Drop returns a frame without the named columns.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	keep := make([]string, 0, len(f.Columns))
	for _, c := range f.Columns {
		if !skip[c] {
			keep = append(keep, c)
		}
	}
	out, _ := f.Select(keep)
	return out
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names []string) (*Frame, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = f.Index(n)
		if idx[i] < 0 {
			return nil, fmt.Errorf("data: no column %q", n)
		}
	}
	out := NewFrame(names...)
	out.Rows = make([]Row, len(f.Rows))
	for i, r := range f.Rows {
		vals := make([]float64, len(idx))
		for k, j := range idx {
			vals[k] = r.Values[j]
		}
		out.Rows[i] = Row{Ticker: r.Ticker, Date: r.Date, Values: vals}
	}
	return out, nil
}

// Matrix returns a copy of the values as rows x columns.
func (f *Frame) Matrix() [][]float64 {
	out := make([][]float64, len(f.Rows))
	for i, r := range f.Rows {
		row := make([]float64, len(r.Values))
		copy(row, r.Values)
		out[i] = row
	}
	return out
}

// WithMatrix returns a frame with the same keys as f and the given values and columns.
func (f *Frame) WithMatrix(columns []string, X [][]float64) (*Frame, error) {
	if len(X) != len(f.Rows) {
		return nil, fmt.Errorf("data: matrix has %d rows, frame has %d", len(X), len(f.Rows))
	}
	out := NewFrame(columns...)
	out.Rows = make([]Row, len(X))
	for i, r := range f.Rows {
		if len(X[i]) != len(columns) {
			return nil, fmt.Errorf("data: matrix row %d has %d values, want %d", i, len(X[i]), len(columns))
		}
		out.Rows[i] = Row{Ticker: r.Ticker, Date: r.Date, Values: X[i]}
	}
	return out, nil
}

// Filter returns the rows for which keep is true. Values are shared.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	out := NewFrame(f.Columns...)
	for _, r := range f.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Between keeps rows with from <= date <= to.
func (f *Frame) Between(from, to time.Time) *Frame {
	return f.Filter(func(r Row) bool { return !r.Date.Before(from) && !r.Date.After(to) })
}

// Sort orders rows by ticker, then date.
func (f *Frame) Sort() {
	sort.SliceStable(f.Rows, func(a, b int) bool {
		ra, rb := f.Rows[a], f.Rows[b]
		if ra.Ticker != rb.Ticker {
			return ra.Ticker < rb.Ticker
		}
		return ra.Date.Before(rb.Date)
	})
}

// Groups returns row indices per ticker in row order, and the tickers in
// first-seen order.
func (f *Frame) Groups() (map[string][]int, []string) {
	groups := make(map[string][]int)
	var order []string
	for i, r := range f.Rows {
		if _, ok := groups[r.Ticker]; !ok {
			order = append(order, r.Ticker)
		}
		groups[r.Ticker] = append(groups[r.Ticker], i)
	}
	return groups, order
}

// Concat appends the rows of other frames to f. Columns are unioned; cells
// for columns a frame lacks are NaN.
func Concat(frames ...*Frame) *Frame {
	var cols []string
	seen := map[string]bool{}
	for _, fr := range frames {
		for _, c := range fr.Columns {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	out := NewFrame(cols...)
	for _, fr := range frames {
		idx := make([]int, len(cols))
		for k, c := range cols {
			idx[k] = fr.Index(c)
		}
		for _, r := range fr.Rows {
			vals := make([]float64, len(cols))
			for k, j := range idx {
				if j < 0 {
					vals[k] = math.NaN()
				} else {
					vals[k] = r.Values[j]
				}
			}
			out.Rows = append(out.Rows, Row{Ticker: r.Ticker, Date: r.Date, Values: vals})
		}
	}
	return out
}
