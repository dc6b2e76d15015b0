package scale

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"stockml/pkg/stats"
)

// Distribution is the output distribution of a Quantile scaler.
type Distribution int

const (
	Uniform Distribution = iota
	Normal
)

const (
	maxQuantiles   = 1000
	boundThreshold = 1e-7
)

// Quantile maps each value through the empirical CDF of its column, then
// optionally through the inverse standard normal CDF.
type Quantile struct {
	Output     Distribution
	References []float64   // CDF levels in [0, 1]
	Quantiles  [][]float64 // per column, the value at each reference
}

func NewQuantile(out Distribution) *Quantile { return &Quantile{Output: out} }

func (s *Quantile) Fit(X [][]float64) error {
	cols, err := finiteColumns(X)
	if err != nil {
		return err
	}
	n := min(maxQuantiles, len(X))
	if n < 2 {
		n = 2
	}
	s.References = make([]float64, n)
	for i := range s.References {
		s.References[i] = float64(i) / float64(n-1)
	}
	s.Quantiles = make([][]float64, len(cols))
	for j, col := range cols {
		q := stats.Quantiles(col, s.References)
		// monotone even under float noise
		for i := 1; i < len(q); i++ {
			if q[i] < q[i-1] {
				q[i] = q[i-1]
			}
		}
		s.Quantiles[j] = q
	}
	return nil
}

func (s *Quantile) Transform(X [][]float64) ([][]float64, error) {
	if s.Quantiles == nil {
		return nil, ErrNotFitted
	}
	return apply(X, len(s.Quantiles), func(j int, v float64) float64 {
		p := s.cdf(s.Quantiles[j], v)
		if s.Output == Normal {
			p = math.Min(math.Max(p, boundThreshold), 1-boundThreshold)
			return distuv.UnitNormal.Quantile(p)
		}
		return p
	})
}

// cdf interpolates v against the quantiles. Repeated quantile values are
// resolved by averaging the lowest and highest matching reference, which keeps
// constant columns at 0.5.
func (s *Quantile) cdf(q []float64, v float64) float64 {
	n := len(q)
	if v <= q[0] && v < q[n-1] {
		return 0
	}
	if v >= q[n-1] && v > q[0] {
		return 1
	}
	lo := sort.SearchFloat64s(q, v)
	hi := sort.Search(n, func(i int) bool { return q[i] > v })
	if lo < hi {
		// v equals q[lo..hi-1]
		return (s.References[lo] + s.References[hi-1]) / 2
	}
	// q[lo-1] < v < q[lo]
	a, b := q[lo-1], q[lo]
	t := (v - a) / (b - a)
	return s.References[lo-1] + t*(s.References[lo]-s.References[lo-1])
}
