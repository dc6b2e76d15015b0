package selection

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Linkage is the rule for the distance between two merged clusters.
type Linkage string

const (
	Single   Linkage = "single"
	Complete Linkage = "complete"
	Average  Linkage = "average"
	Ward     Linkage = "ward"
)

// Cluster groups features by correlation distance 1-|corr| with
// agglomerative clustering, cuts the dendrogram at Threshold and keeps the
// first feature (in column order) of each cluster.
type Cluster struct {
	Linkage   Linkage
	Threshold float64

	Subset
	Assignments []int
}

func (s *Cluster) Fit(columns []string, X [][]float64, _ []int) error {
	if len(columns) == 0 {
		return ErrNotFitted
	}
	labels, err := Agglomerate(correlationDistance(X, len(columns)), s.Linkage, s.Threshold)
	if err != nil {
		return err
	}
	s.Assignments = labels
	seen := map[int]bool{}
	var keep []string
	for j, l := range labels {
		if !seen[l] {
			seen[l] = true
			keep = append(keep, columns[j])
		}
	}
	s.keep(columns, keep)
	return nil
}

// Labels returns the cluster of each input feature after Fit.
func (s *Cluster) Labels() []int { return s.Assignments }

// correlationDistance returns 1-|corr| between the p columns of X over the
// rows without missing cells. A constant column is at distance 1 from every
// other column.
func correlationDistance(X [][]float64, p int) [][]float64 {
	var complete [][]float64
	for _, row := range X {
		ok := true
		for _, v := range row {
			if math.IsNaN(v) {
				ok = false
				break
			}
		}
		if ok {
			complete = append(complete, row)
		}
	}
	d := make([][]float64, p)
	for i := range d {
		d[i] = make([]float64, p)
		for j := range d[i] {
			if i != j {
				d[i][j] = 1
			}
		}
	}
	if len(complete) < 2 {
		return d
	}
	m := mat.NewDense(len(complete), p, nil)
	for i, row := range complete {
		m.SetRow(i, row)
	}
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, m, nil)
	for i := 0; i < p; i++ {
		for j := i + 1; j < p; j++ {
			if r := corr.At(i, j); !math.IsNaN(r) {
				d[i][j] = 1 - math.Abs(r)
				d[j][i] = d[i][j]
			}
		}
	}
	return d
}

// Agglomerate runs agglomerative clustering on a symmetric distance matrix
// and returns flat cluster labels such that every merge at height <= cut is
// applied. Labels are numbered by first appearance.
func Agglomerate(dist [][]float64, linkage Linkage, cut float64) ([]int, error) {
	switch linkage {
	case Single, Complete, Average, Ward:
	case "":
		linkage = Average
	default:
		return nil, fmt.Errorf("selection: unknown linkage %q", linkage)
	}
	n := len(dist)
	d := make([][]float64, n)
	for i := range dist {
		d[i] = append([]float64(nil), dist[i]...)
	}
	size := make([]float64, n)
	members := make([][]int, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		members[i] = []int{i}
		active[i] = true
	}

	for remaining := n; remaining > 1; remaining-- {
		a, b := -1, -1
		best := math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d[i][j] < best {
					best, a, b = d[i][j], i, j
				}
			}
		}
		if a < 0 || best > cut {
			break
		}
		// Lance-Williams update into a.
		for k := 0; k < n; k++ {
			if !active[k] || k == a || k == b {
				continue
			}
			d[a][k] = lanceWilliams(linkage, d[a][k], d[b][k], d[a][b], size[a], size[b], size[k])
			d[k][a] = d[a][k]
		}
		size[a] += size[b]
		members[a] = append(members[a], members[b]...)
		active[b] = false
	}

	owner := make([]int, n)
	for i := range members {
		if !active[i] {
			continue
		}
		for _, m := range members[i] {
			owner[m] = i
		}
	}
	labels := make([]int, n)
	next := map[int]int{}
	for j := 0; j < n; j++ {
		l, ok := next[owner[j]]
		if !ok {
			l = len(next) + 1
			next[owner[j]] = l
		}
		labels[j] = l
	}
	return labels, nil
}

func lanceWilliams(l Linkage, dak, dbk, dab, na, nb, nk float64) float64 {
	switch l {
	case Single:
		return math.Min(dak, dbk)
	case Complete:
		return math.Max(dak, dbk)
	case Ward:
		t := na + nb + nk
		v := ((na+nk)*dak*dak + (nb+nk)*dbk*dbk - nk*dab*dab) / t
		return math.Sqrt(math.Max(v, 0))
	default:
		return (na*dak + nb*dbk) / (na + nb)
	}
}
