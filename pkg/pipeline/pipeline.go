package pipeline

import "fmt"

// Transformer is a step fit on training rows and applied to any rows of the
// same width. dataprep.Imputer and every scale.Scaler satisfy it.
type Transformer interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) ([][]float64, error)
}

// Pipeline chains multiple transformers.
type Pipeline struct {
	steps []Transformer
}

func NewPipeline(steps ...Transformer) *Pipeline {
	return &Pipeline{steps: steps}
}

// Fit fits each step on the output of the previous one.
func (p *Pipeline) Fit(X [][]float64) error {
	for i, step := range p.steps {
		if err := step.Fit(X); err != nil {
			return fmt.Errorf("pipeline: fit step %d: %w", i, err)
		}
		var err error
		if X, err = step.Transform(X); err != nil {
			return fmt.Errorf("pipeline: transform step %d: %w", i, err)
		}
	}
	return nil
}

func (p *Pipeline) Transform(X [][]float64) ([][]float64, error) {
	for i, step := range p.steps {
		var err error
		if X, err = step.Transform(X); err != nil {
			return nil, fmt.Errorf("pipeline: transform step %d: %w", i, err)
		}
	}
	return X, nil
}

// FitTransform fits the pipeline on X and returns the transformed X.
func (p *Pipeline) FitTransform(X [][]float64) ([][]float64, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// Steps returns the transformers in order.
func (p *Pipeline) Steps() []Transformer { return p.steps }

// Len returns the number of steps.
func (p *Pipeline) Len() int { return len(p.steps) }
