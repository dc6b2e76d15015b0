package model

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA projects onto the top-K eigenvectors of the sample covariance matrix.
// Missing cells are treated as the column mean.
type PCA struct {
	K          int
	Means      []float64
	Components [][]float64 // K x p, each a unit vector
	Explained  []float64   // eigenvalues, largest first
}

// NewPCA creates and returns a new PCA model.
func NewPCA(k int) *PCA {
	return &PCA{K: k}
}

// Fit computes the top K principal components.
func (pca *PCA) Fit(X [][]float64) error {
	if len(X) < 2 {
		return errors.New("pca: need at least two rows")
	}
	d := len(X[0])
	if pca.K <= 0 || pca.K > d {
		return errors.New("pca: K must be in [1, features]")
	}

	pca.Means = make([]float64, d)
	counts := make([]float64, d)
	for _, row := range X {
		for j, v := range row {
			if !math.IsNaN(v) {
				pca.Means[j] += v
				counts[j]++
			}
		}
	}
	for j := range pca.Means {
		if counts[j] > 0 {
			pca.Means[j] /= counts[j]
		}
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, pca.center(X), nil)
	var eig mat.EigenSym
	if !eig.Factorize(&cov, true) {
		return errors.New("pca: eigendecomposition did not converge")
	}
	values := eig.Values(nil) // ascending
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	pca.Components = make([][]float64, pca.K)
	pca.Explained = make([]float64, pca.K)
	for k := 0; k < pca.K; k++ {
		col := d - 1 - k
		v := mat.Col(nil, col, &vectors)
		// the eigenvector sign is arbitrary; make the largest loading positive
		big := 0
		for j := range v {
			if math.Abs(v[j]) > math.Abs(v[big]) {
				big = j
			}
		}
		if v[big] < 0 {
			for j := range v {
				v[j] = -v[j]
			}
		}
		pca.Components[k] = v
		pca.Explained[k] = math.Max(values[col], 0)
	}
	return nil
}

// Transform projects X onto the principal components.
func (pca *PCA) Transform(X [][]float64) ([][]float64, error) {
	if len(pca.Components) == 0 {
		return nil, ErrNotFitted
	}
	if len(X) == 0 {
		return [][]float64{}, nil
	}
	if len(X[0]) != len(pca.Means) {
		return nil, errors.New("pca: feature count mismatch between input and training data")
	}
	comps := mat.NewDense(len(pca.Components), len(pca.Means), nil)
	for k, c := range pca.Components {
		comps.SetRow(k, c)
	}
	var proj mat.Dense
	proj.Mul(pca.center(X), comps.T())
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = mat.Row(nil, i, &proj)
	}
	return out, nil
}

// ExplainedRatio returns each component's share of the captured variance.
func (pca *PCA) ExplainedRatio() []float64 { return normalizeSum(pca.Explained) }

// center returns X minus the training means with missing cells at zero.
func (pca *PCA) center(X [][]float64) *mat.Dense {
	Z := mat.NewDense(len(X), len(pca.Means), nil)
	for i, row := range X {
		for j, v := range row {
			if !math.IsNaN(v) {
				Z.Set(i, j, v-pca.Means[j])
			}
		}
	}
	return Z
}
