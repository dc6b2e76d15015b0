package model

import (
	"math"
	"math/rand"
	"sort"

	"stockml/pkg/nn"
)

// GradientBoosting fits one regression tree per class per round on the
// softmax residuals (multinomial deviance).
type GradientBoosting struct {
	NEstimators    int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	Subsample      float64 // share of rows per round; 1 disables sampling
	RandomState    int64

	classes     []int
	init        []float64
	trees       [][]*regTree // rounds x classes
	importances []float64
}

func NewGradientBoosting(nEstimators int, lr float64, maxDepth int, seed int64) *GradientBoosting {
	return &GradientBoosting{
		NEstimators:    nEstimators,
		LearningRate:   lr,
		MaxDepth:       maxDepth,
		MinSamplesLeaf: 1,
		Subsample:      1,
		RandomState:    seed,
	}
}

func (m *GradientBoosting) Fit(X [][]float64, y []int) error {
	n, p, err := validate(X, y)
	if err != nil {
		return err
	}
	classes, enc := labelIndex(y)
	m.classes = classes
	k := len(classes)
	m.importances = make([]float64, p)
	m.trees = nil

	// log prior per class
	m.init = make([]float64, k)
	for _, c := range enc {
		m.init[c]++
	}
	for c := range m.init {
		m.init[c] = math.Log(m.init[c] / float64(n))
	}
	F := make([][]float64, n)
	for i := range F {
		F[i] = append([]float64(nil), m.init...)
	}
	if k == 1 {
		return nil
	}

	rnd := rand.New(rand.NewSource(m.RandomState))
	residual := make([]float64, n)
	for round := 0; round < m.NEstimators; round++ {
		idx := m.sample(n, rnd)
		proba := make([][]float64, n)
		for i := range F {
			proba[i] = nn.Softmax(F[i])
		}
		trees := make([]*regTree, k)
		for c := 0; c < k; c++ {
			for i := range residual {
				t := 0.0
				if enc[i] == c {
					t = 1
				}
				residual[i] = t - proba[i][c]
			}
			tree := &regTree{maxDepth: m.MaxDepth, minLeaf: m.MinSamplesLeaf, importances: m.importances}
			tree.root = tree.build(X, residual, idx, 0, func(ids []int) float64 {
				num, den := 0.0, 0.0
				for _, i := range ids {
					r := residual[i]
					num += r
					den += math.Abs(r) * (1 - math.Abs(r))
				}
				if den < 1e-12 {
					return 0
				}
				return float64(k-1) / float64(k) * num / den
			})
			trees[c] = tree
			for i := range F {
				F[i][c] += m.LearningRate * tree.predict(X[i])
			}
		}
		m.trees = append(m.trees, trees)
	}
	m.importances = normalizeSum(m.importances)
	return nil
}

func (m *GradientBoosting) sample(n int, rnd *rand.Rand) []int {
	if m.Subsample <= 0 || m.Subsample >= 1 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := rnd.Perm(n)[:max(1, int(m.Subsample*float64(n)))]
	sort.Ints(idx)
	return idx
}

func (m *GradientBoosting) Classes() []int { return m.classes }

func (m *GradientBoosting) FeatureImportances() []float64 { return m.importances }

func (m *GradientBoosting) raw(x []float64) []float64 {
	f := append([]float64(nil), m.init...)
	for _, round := range m.trees {
		for c, t := range round {
			f[c] += m.LearningRate * t.predict(x)
		}
	}
	return f
}

func (m *GradientBoosting) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	parallelRows(len(X), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = nn.Softmax(m.raw(X[i]))
		}
	})
	return out
}

func (m *GradientBoosting) Predict(X [][]float64) []int {
	return predictFromProba(m.classes, m.PredictProba(X))
}

// regTree is a least-squares regression tree whose leaf values come from a
// caller-supplied function of the rows reaching the leaf.
type regTree struct {
	maxDepth    int
	minLeaf     int
	root        *regNode
	importances []float64
}

type regNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	nanLeft   bool
	left      *regNode
	right     *regNode
}

func (t *regTree) predict(x []float64) float64 {
	node := t.root
	for !node.leaf {
		v := x[node.feature]
		switch {
		case math.IsNaN(v):
			if node.nanLeft {
				node = node.left
			} else {
				node = node.right
			}
		case v <= node.threshold:
			node = node.left
		default:
			node = node.right
		}
	}
	return node.value
}

func (t *regTree) build(X [][]float64, r []float64, idx []int, depth int, leafValue func([]int) float64) *regNode {
	if depth >= t.maxDepth || len(idx) < 2*t.minLeaf {
		return &regNode{leaf: true, value: leafValue(idx)}
	}
	bestGain, bestF, bestThr := 0.0, -1, 0.0
	bestNaNLeft := false
	total, n := 0.0, float64(len(idx))
	for _, i := range idx {
		total += r[i]
	}
	for f := range X[idx[0]] {
		valid := make([]pair, 0, len(idx))
		nanSum, nanN := 0.0, 0
		for _, i := range idx {
			if v := X[i][f]; math.IsNaN(v) {
				nanSum += r[i]
				nanN++
			} else {
				valid = append(valid, pair{v, i})
			}
		}
		sort.Slice(valid, func(a, b int) bool { return valid[a].v < valid[b].v })
		left := 0.0
		for s := 1; s < len(valid); s++ {
			left += r[valid[s-1].i]
			if valid[s].v == valid[s-1].v {
				continue
			}
			nl, nr := float64(s), float64(len(valid)-s)
			right := total - nanSum - left
			// missing values follow the larger side
			nanLeft := nl >= nr
			sl, sr := left, right
			if nanLeft {
				sl, nl = sl+nanSum, nl+float64(nanN)
			} else {
				sr, nr = sr+nanSum, nr+float64(nanN)
			}
			if int(nl) < t.minLeaf || int(nr) < t.minLeaf {
				continue
			}
			// reduction in squared error up to a constant
			gain := sl*sl/nl + sr*sr/nr - total*total/n
			if gain > bestGain {
				bestGain, bestF, bestThr, bestNaNLeft = gain, f, (valid[s-1].v+valid[s].v)/2, nanLeft
			}
		}
	}
	if bestF < 0 {
		return &regNode{leaf: true, value: leafValue(idx)}
	}
	t.importances[bestF] += bestGain
	var li, ri []int
	for _, i := range idx {
		v := X[i][bestF]
		if (math.IsNaN(v) && bestNaNLeft) || (!math.IsNaN(v) && v <= bestThr) {
			li = append(li, i)
		} else {
			ri = append(ri, i)
		}
	}
	return &regNode{
		feature:   bestF,
		threshold: bestThr,
		nanLeft:   bestNaNLeft,
		left:      t.build(X, r, li, depth+1, leafValue),
		right:     t.build(X, r, ri, depth+1, leafValue),
	}
}
