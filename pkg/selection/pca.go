package selection

import (
	"fmt"

	"stockml/pkg/model"
)

// PCA replaces the inputs by their first Components principal components,
// named PC1..PCn.
type PCA struct {
	Components int

	Model *model.PCA
	Names []string
}

func (s *PCA) Fit(columns []string, X [][]float64, _ []int) error {
	k := s.Components
	if k <= 0 {
		k = 5
	}
	k = min(k, len(columns))
	s.Model = model.NewPCA(k)
	if err := s.Model.Fit(X); err != nil {
		return fmt.Errorf("selection: %w", err)
	}
	s.Names = make([]string, k)
	for i := range s.Names {
		s.Names[i] = fmt.Sprintf("PC%d", i+1)
	}
	return nil
}

func (s *PCA) Transform(X [][]float64) ([][]float64, error) {
	if s.Model == nil {
		return nil, ErrNotFitted
	}
	return s.Model.Transform(X)
}

func (s *PCA) Columns() []string { return s.Names }

// Explained returns each component's share of the captured variance.
func (s *PCA) Explained() []float64 {
	if s.Model == nil {
		return nil
	}
	return s.Model.ExplainedRatio()
}
