// Package selection reduces the factor set before training: by cumulative
// model importance, by principal components, or by clustering correlated
// factors and keeping one per cluster.
package selection

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sort"

	"stockml/pkg/dataprep"
	"stockml/pkg/model"
)

var (
	ErrThreshold = errors.New("selection: threshold must be in (0, 1]")
	ErrMismatch  = errors.New("selection: feature and importance counts differ")
	ErrNotFitted = errors.New("selection: not fitted")
)

func init() {
	gob.Register(&Importance{})
	gob.Register(&PCA{})
	gob.Register(&Cluster{})
	gob.Register(&All{})
}

// Selector learns a column reduction on training data and applies it to any
// matrix with the same input columns.
type Selector interface {
	Fit(columns []string, X [][]float64, y []int) error
	Transform(X [][]float64) ([][]float64, error)
	// Columns names the output columns after Fit.
	Columns() []string
}

// New returns a selector by name: importance, pca, cluster or none.
func New(name string, threshold float64, components int, linkage string, seed int64) (Selector, error) {
	switch name {
	case "importance":
		est, err := model.New("random_forest", seed)
		if err != nil {
			return nil, err
		}
		return &Importance{Threshold: threshold, Estimator: est}, nil
	case "pca":
		return &PCA{Components: components}, nil
	case "cluster":
		return &Cluster{Linkage: Linkage(linkage), Threshold: threshold}, nil
	case "none", "":
		return &All{}, nil
	default:
		return nil, fmt.Errorf("selection: unknown selector %q", name)
	}
}

// ByImportance returns the features whose normalized importance, taken in
// descending order, first reaches threshold. Ties keep column order.
func ByImportance(features []string, importances []float64, threshold float64) ([]string, error) {
	if !(threshold > 0 && threshold <= 1) {
		return nil, ErrThreshold
	}
	if len(features) != len(importances) {
		return nil, fmt.Errorf("%w: %d features, %d scores", ErrMismatch, len(features), len(importances))
	}
	total := 0.0
	for _, v := range importances {
		if !math.IsNaN(v) {
			total += v
		}
	}
	if total == 0 {
		return append([]string(nil), features...), nil
	}
	order := make([]int, len(features))
	for i := range order {
		order[i] = i
	}
	score := func(i int) float64 {
		if math.IsNaN(importances[i]) {
			return 0
		}
		return importances[i] / total
	}
	sort.SliceStable(order, func(a, b int) bool { return score(order[a]) > score(order[b]) })

	var out []string
	cum := 0.0
	for _, i := range order {
		out = append(out, features[i])
		cum += score(i)
		if cum >= threshold-1e-12 {
			break
		}
	}
	return out, nil
}

// Importance fits Estimator on all features and keeps those that make up
// Threshold of the total importance.
type Importance struct {
	Threshold float64
	Estimator model.Classifier

	Subset
}

func (s *Importance) Fit(columns []string, X [][]float64, y []int) error {
	if !(s.Threshold > 0 && s.Threshold <= 1) {
		return ErrThreshold
	}
	if err := s.Estimator.Fit(X, y); err != nil {
		return fmt.Errorf("selection: fit estimator: %w", err)
	}
	imp, ok := s.Estimator.(model.Importancer)
	if !ok {
		return fmt.Errorf("selection: %T exposes no feature importances", s.Estimator)
	}
	keep, err := ByImportance(columns, imp.FeatureImportances(), s.Threshold)
	if err != nil {
		return err
	}
	s.keep(columns, keep)
	return nil
}

// Subset keeps a named subset of the input columns, in input order.
type Subset struct {
	Names []string
	Index []int
}

func (c *Subset) keep(columns []string, keep []string) {
	want := make(map[string]bool, len(keep))
	for _, k := range keep {
		want[k] = true
	}
	if keep == nil {
		for _, k := range columns {
			want[k] = true
		}
	}
	c.Names, c.Index = nil, nil
	for i, col := range columns {
		if want[col] {
			c.Names = append(c.Names, col)
			c.Index = append(c.Index, i)
		}
	}
}

func (c *Subset) Transform(X [][]float64) ([][]float64, error) {
	if c.Index == nil {
		return nil, ErrNotFitted
	}
	return dataprep.FeatureSelect(X, c.Index), nil
}

func (c *Subset) Columns() []string { return c.Names }

// All keeps every column.
type All struct{ Subset }

func (a *All) Fit(columns []string, _ [][]float64, _ []int) error {
	a.keep(columns, nil)
	return nil
}
