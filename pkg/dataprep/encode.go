package dataprep

import (
	"math"
	"time"

	"stockml/pkg/data"
)

// DateFeatureNames lists the columns produced by EncodeDates, in order.
var DateFeatureNames = []string{
	"month_sin", "month_cos",
	"quarter_sin", "quarter_cos",
	"dayofweek_sin", "dayofweek_cos",
	"dayofyear_sin", "dayofyear_cos",
}

// Cyclical maps a value with the given period onto the unit circle.
func Cyclical(v, period float64) (sin, cos float64) {
	a := 2 * math.Pi * v / period
	return math.Sin(a), math.Cos(a)
}

// DateFeatures returns the cyclical encodings of t in DateFeatureNames order.
func DateFeatures(t time.Time) []float64 {
	out := make([]float64, 0, len(DateFeatureNames))
	month := float64(t.Month() - 1)
	quarter := float64((int(t.Month()) - 1) / 3)
	for _, p := range [][2]float64{
		{month, 12},
		{quarter, 4},
		{float64(t.Weekday()), 7},
		{float64(t.YearDay() - 1), daysInYear(t.Year())},
	} {
		s, c := Cyclical(p[0], p[1])
		out = append(out, s, c)
	}
	return out
}

func daysInYear(y int) float64 {
	return float64(time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC).YearDay())
}

// EncodeDates appends the cyclical date columns to f.
func EncodeDates(f *data.Frame) error {
	cols := make([][]float64, len(DateFeatureNames))
	for k := range cols {
		cols[k] = make([]float64, len(f.Rows))
	}
	for i, r := range f.Rows {
		for k, v := range DateFeatures(r.Date) {
			cols[k][i] = v
		}
	}
	for k, name := range DateFeatureNames {
		if err := f.AddColumn(name, cols[k]); err != nil {
			return err
		}
	}
	return nil
}
