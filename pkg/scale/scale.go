// Package scale implements per-column normalization and standardization of
// factor matrices. Every scaler is fit on one matrix and can then transform
// any matrix with the same number of columns. NaN cells are ignored when
// fitting and passed through unchanged when transforming.
package scale

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"sort"

	"stockml/pkg/nn"
	"stockml/pkg/stats"
)

var (
	ErrNotFitted  = errors.New("scale: scaler not fitted")
	ErrEmptyInput = errors.New("scale: empty input")
	ErrColumns    = errors.New("scale: column count mismatch")
)

// Scaler is fit on training rows and applied to any rows with the same width.
type Scaler interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) ([][]float64, error)
}

// Fitted scalers are saved as Scaler interface values.
func init() {
	gob.Register(&MinMax{})
	gob.Register(&MeanNormalization{})
	gob.Register(&ZScore{})
	gob.Register(&Robust{})
	gob.Register(&elementwise{})
	gob.Register(&Quantile{})
	gob.Register(&Power{})
	gob.Register(&BoxCoxYeoJohnson{})
}

// FitTransform fits s on X and returns the transformed X.
func FitTransform(s Scaler, X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

var registry = map[string]func() Scaler{
	"minmax":          func() Scaler { return NewMinMax() },
	"zscore":          func() Scaler { return NewZScore() },
	"robust":          func() Scaler { return NewRobust() },
	"mean":            func() Scaler { return NewMeanNormalization() },
	"log":             func() Scaler { return NewLog() },
	"sigmoid":         func() Scaler { return NewSigmoid() },
	"tanh":            func() Scaler { return NewTanh() },
	"quantile":        func() Scaler { return NewQuantile(Uniform) },
	"quantile-normal": func() Scaler { return NewQuantile(Normal) },
	"power":           func() Scaler { return NewPower() },
	"boxcox":          func() Scaler { return NewBoxCoxYeoJohnson() },
}

// New returns the scaler registered under name.
func New(name string) (Scaler, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("scale: unknown scaler %q (known: %v)", name, Names())
	}
	return f(), nil
}

// Names lists registered scaler names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// finiteColumns returns, per column, the finite values of X.
func finiteColumns(X [][]float64) ([][]float64, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, ErrEmptyInput
	}
	cols := make([][]float64, len(X[0]))
	for j := range cols {
		cols[j] = stats.Finite(stats.Column(X, j))
	}
	return cols, nil
}

// apply maps f over every non-NaN cell of X into a new matrix.
func apply(X [][]float64, width int, f func(j int, v float64) float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrColumns, i, len(row), width)
		}
		o := make([]float64, width)
		for j, v := range row {
			if math.IsNaN(v) {
				o[j] = v
				continue
			}
			o[j] = f(j, v)
		}
		out[i] = o
	}
	return out, nil
}

// elementwise is a stateless scaler applying the named function from
// elementFuncs to every cell. Only the name is stored so a fitted scaler
// survives gob encoding.
type elementwise struct {
	Func  string
	Width int
}

var elementFuncs = map[string]func(float64) float64{
	"log":     func(v float64) float64 { return math.Log(v + logEpsilon) },
	"sigmoid": nn.Sigmoid,
	"tanh":    math.Tanh,
}

func (e *elementwise) Fit(X [][]float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return ErrEmptyInput
	}
	if _, ok := elementFuncs[e.Func]; !ok {
		return fmt.Errorf("scale: unknown function %q", e.Func)
	}
	e.Width = len(X[0])
	return nil
}

func (e *elementwise) Transform(X [][]float64) ([][]float64, error) {
	f, ok := elementFuncs[e.Func]
	if e.Width == 0 || !ok {
		return nil, ErrNotFitted
	}
	return apply(X, e.Width, func(_ int, v float64) float64 { return f(v) })
}
