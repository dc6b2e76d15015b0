package scale

import (
	"math"

	"stockml/pkg/stats"
)

const (
	lambdaLow  = -2.0
	lambdaHigh = 2.0
	lambdaTol  = 1e-6
)

// Power applies a Yeo-Johnson transform with a per-column lambda chosen by
// maximum likelihood, then standardizes the result.
type Power struct {
	Lambda []float64
	Z      *ZScore
}

func NewPower() *Power { return &Power{} }

func (s *Power) Fit(X [][]float64) error {
	cols, err := finiteColumns(X)
	if err != nil {
		return err
	}
	s.Lambda = make([]float64, len(cols))
	for j, col := range cols {
		s.Lambda[j] = fitYeoJohnson(col)
	}
	s.Z = NewZScore()
	raw, err := apply(X, len(cols), func(j int, v float64) float64 { return yeoJohnson(v, s.Lambda[j]) })
	if err != nil {
		return err
	}
	return s.Z.Fit(raw)
}

func (s *Power) Transform(X [][]float64) ([][]float64, error) {
	if s.Lambda == nil {
		return nil, ErrNotFitted
	}
	raw, err := apply(X, len(s.Lambda), func(j int, v float64) float64 { return yeoJohnson(v, s.Lambda[j]) })
	if err != nil {
		return nil, err
	}
	return s.Z.Transform(raw)
}

// BoxCoxYeoJohnson uses Box-Cox on strictly positive columns (shifted by
// 1e-6, not standardized) and a standardized Yeo-Johnson elsewhere.
type BoxCoxYeoJohnson struct {
	BoxCox []bool
	Lambda []float64
	Mean   []float64
	Std    []float64
}

func NewBoxCoxYeoJohnson() *BoxCoxYeoJohnson { return &BoxCoxYeoJohnson{} }

func (s *BoxCoxYeoJohnson) Fit(X [][]float64) error {
	cols, err := finiteColumns(X)
	if err != nil {
		return err
	}
	k := len(cols)
	s.BoxCox = make([]bool, k)
	s.Lambda = make([]float64, k)
	s.Mean = make([]float64, k)
	s.Std = make([]float64, k)
	for j, col := range cols {
		s.BoxCox[j] = allPositive(col)
		if s.BoxCox[j] {
			shifted := make([]float64, len(col))
			for i, v := range col {
				shifted[i] = v + logEpsilon
			}
			s.Lambda[j] = fitBoxCox(shifted)
			s.Mean[j], s.Std[j] = 0, 1
			continue
		}
		s.Lambda[j] = fitYeoJohnson(col)
		t := make([]float64, len(col))
		for i, v := range col {
			t[i] = yeoJohnson(v, s.Lambda[j])
		}
		s.Mean[j] = stats.Mean(t)
		s.Std[j] = stats.Std(t)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return nil
}

func (s *BoxCoxYeoJohnson) Transform(X [][]float64) ([][]float64, error) {
	if s.Lambda == nil {
		return nil, ErrNotFitted
	}
	return apply(X, len(s.Lambda), func(j int, v float64) float64 {
		if s.BoxCox[j] {
			return boxCox(v+logEpsilon, s.Lambda[j])
		}
		return (yeoJohnson(v, s.Lambda[j]) - s.Mean[j]) / s.Std[j]
	})
}

func allPositive(col []float64) bool {
	if len(col) == 0 {
		return false
	}
	for _, v := range col {
		if v <= 0 {
			return false
		}
	}
	return true
}

func yeoJohnson(y, lambda float64) float64 {
	if y >= 0 {
		if math.Abs(lambda) < lambdaTol {
			return math.Log1p(y)
		}
		return (math.Pow(y+1, lambda) - 1) / lambda
	}
	if math.Abs(lambda-2) < lambdaTol {
		return -math.Log1p(-y)
	}
	return -(math.Pow(-y+1, 2-lambda) - 1) / (2 - lambda)
}

func boxCox(x, lambda float64) float64 {
	if x <= 0 {
		return math.NaN()
	}
	if math.Abs(lambda) < lambdaTol {
		return math.Log(x)
	}
	return (math.Pow(x, lambda) - 1) / lambda
}

// fitYeoJohnson maximizes the Yeo-Johnson profile log-likelihood.
func fitYeoJohnson(col []float64) float64 {
	if len(col) < 2 {
		return 1
	}
	var logTerm float64
	for _, v := range col {
		logTerm += math.Copysign(1, v) * math.Log1p(math.Abs(v))
	}
	n := float64(len(col))
	t := make([]float64, len(col))
	return goldenMax(func(lambda float64) float64 {
		for i, v := range col {
			t[i] = yeoJohnson(v, lambda)
		}
		variance := stats.Variance(t)
		if variance <= 0 || math.IsNaN(variance) || math.IsInf(variance, 0) {
			return math.Inf(-1)
		}
		return -n/2*math.Log(variance) + (lambda-1)*logTerm
	})
}

// fitBoxCox maximizes the Box-Cox profile log-likelihood for positive data.
func fitBoxCox(col []float64) float64 {
	if len(col) < 2 {
		return 1
	}
	var logTerm float64
	for _, v := range col {
		logTerm += math.Log(v)
	}
	n := float64(len(col))
	t := make([]float64, len(col))
	return goldenMax(func(lambda float64) float64 {
		for i, v := range col {
			t[i] = boxCox(v, lambda)
		}
		variance := stats.Variance(t)
		if variance <= 0 || math.IsNaN(variance) || math.IsInf(variance, 0) {
			return math.Inf(-1)
		}
		return -n/2*math.Log(variance) + (lambda-1)*logTerm
	})
}

// goldenMax runs a golden-section search for the maximum of f on
// [lambdaLow, lambdaHigh].
func goldenMax(f func(float64) float64) float64 {
	invPhi := (math.Sqrt(5) - 1) / 2
	a, b := lambdaLow, lambdaHigh
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := f(c), f(d)
	for b-a > 1e-5 {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
	}
	return (a + b) / 2
}
