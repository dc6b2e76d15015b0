package model

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// DecisionTreeClassifier is a CART-style classifier with weighted samples,
// NaN-aware splits and impurity-based feature importances.
type DecisionTreeClassifier struct {
	MaxDepth            int     // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	Criterion           string  // "gini" (default) or "entropy"
	MaxFeatures         int     // 0 => all features, >0 => features sampled per split
	MinImpurityDecrease float64 // minimal weighted impurity decrease to accept a split
	RandomState         int64   // seed for feature subsampling

	root        *dtNode
	classes     []int
	nFeatures   int
	importances []float64
}

type dtNode struct {
	isLeaf    bool
	feature   int
	threshold float64 // x <= threshold => left
	nanLeft   bool    // where missing values go
	left      *dtNode
	right     *dtNode

	n      int
	probas []float64 // aligned with tree.classes
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) Option  { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with sensible defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Criterion:       "gini",
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Fit trains the tree on X (n x p) and labels y. Missing values must be NaN.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	n, _, err := validate(X, y)
	if err != nil {
		return err
	}
	classes, enc := labelIndex(y)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	t.fit(X, enc, classes, idx, nil)
	return nil
}

// fit grows the tree over the rows in idx (duplicates allowed) with optional
// per-row weights. y holds class positions into classes.
func (t *DecisionTreeClassifier) fit(X [][]float64, y []int, classes []int, idx []int, w []float64) {
	t.classes = classes
	t.nFeatures = len(X[0])
	t.importances = make([]float64, t.nFeatures)
	b := &treeBuilder{
		t:   t,
		X:   X,
		y:   y,
		w:   w,
		k:   len(classes),
		rnd: rand.New(rand.NewSource(t.RandomState)),
	}
	if t.Criterion == "entropy" {
		b.impurity = entropy
	} else {
		b.impurity = gini
	}
	counts := b.counts(idx)
	b.total = sum(counts)
	t.root = b.build(idx, counts, 0)
	t.importances = normalizeSum(t.importances)
}

// Classes returns the labels seen during Fit.
func (t *DecisionTreeClassifier) Classes() []int { return t.classes }

// FeatureImportances returns the normalized total impurity decrease per feature.
func (t *DecisionTreeClassifier) FeatureImportances() []float64 { return t.importances }

// Predict returns predicted class labels.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	return predictFromProba(t.classes, t.PredictProba(X))
}

// PredictProba returns the per-class probability vectors for rows in X.
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = t.predictProbaSingle(X[i])
	}
	return out
}

// PruneReducedError performs reduced-error post-pruning using validation data.
// A node is collapsed when doing so does not lower validation accuracy.
// Returns number of pruned nodes.
func (t *DecisionTreeClassifier) PruneReducedError(Xval [][]float64, yval []int) (int, error) {
	if t.root == nil {
		return 0, ErrNotFitted
	}
	if len(Xval) == 0 || len(yval) != len(Xval) {
		return 0, errors.New("dtree: invalid validation set")
	}
	return t.prune(t.root, Xval, yval), nil
}

func (t *DecisionTreeClassifier) prune(node *dtNode, Xval [][]float64, yval []int) int {
	if node == nil || node.isLeaf {
		return 0
	}
	pruned := t.prune(node.left, Xval, yval) + t.prune(node.right, Xval, yval)
	if !node.left.isLeaf || !node.right.isLeaf {
		return pruned
	}
	before := Accuracy(yval, t.Predict(Xval))
	node.isLeaf = true
	if Accuracy(yval, t.Predict(Xval)) >= before {
		node.left, node.right = nil, nil
		return pruned + 1
	}
	node.isLeaf = false
	return pruned
}

func (t *DecisionTreeClassifier) predictProbaSingle(x []float64) []float64 {
	if t.root == nil {
		p := make([]float64, len(t.classes))
		for i := range p {
			p[i] = 1.0 / float64(len(p))
		}
		return p
	}
	node := t.root
	for !node.isLeaf {
		node = node.next(x[node.feature])
	}
	return node.probas
}

func (n *dtNode) next(v float64) *dtNode {
	if math.IsNaN(v) {
		if n.nanLeft {
			return n.left
		}
		return n.right
	}
	if v <= n.threshold {
		return n.left
	}
	return n.right
}

// ---------------------------
// Builder
// ---------------------------

type treeBuilder struct {
	t        *DecisionTreeClassifier
	X        [][]float64
	y        []int
	w        []float64
	k        int
	total    float64
	impurity func([]float64) float64
	rnd      *rand.Rand
}

type splitResult struct {
	gain      float64
	feature   int
	threshold float64
	nanLeft   bool
}

type pair struct {
	v float64
	i int
}

func (b *treeBuilder) weight(i int) float64 {
	if b.w == nil {
		return 1
	}
	return b.w[i]
}

func (b *treeBuilder) counts(idx []int) []float64 {
	c := make([]float64, b.k)
	for _, i := range idx {
		c[b.y[i]] += b.weight(i)
	}
	return c
}

func (b *treeBuilder) build(idx []int, counts []float64, depth int) *dtNode {
	t := b.t
	node := &dtNode{n: len(idx), probas: normalizeSum(counts), feature: -1}
	node.isLeaf = true
	if isPure(counts) || len(idx) < t.MinSamplesSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return node
	}

	features := b.featureSubset()
	parent := b.impurity(counts)
	results := make([]splitResult, len(features))
	var wg sync.WaitGroup
	for k, f := range features {
		wg.Add(1)
		go func(k, f int) {
			defer wg.Done()
			results[k] = b.bestSplit(idx, f, counts, parent)
		}(k, f)
	}
	wg.Wait()

	best := splitResult{feature: -1}
	for _, r := range results {
		if r.feature >= 0 && r.gain > best.gain {
			best = r
		}
	}
	nodeWeight := sum(counts)
	if best.feature == -1 || best.gain*nodeWeight/b.total <= t.MinImpurityDecrease {
		return node
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		v := b.X[i][best.feature]
		if (math.IsNaN(v) && best.nanLeft) || (!math.IsNaN(v) && v <= best.threshold) {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	t.importances[best.feature] += best.gain * nodeWeight / b.total

	node.isLeaf = false
	node.feature = best.feature
	node.threshold = best.threshold
	node.nanLeft = best.nanLeft
	node.left = b.build(leftIdx, b.counts(leftIdx), depth+1)
	node.right = b.build(rightIdx, b.counts(rightIdx), depth+1)
	return node
}

func (b *treeBuilder) featureSubset() []int {
	p := b.t.nFeatures
	feats := make([]int, p)
	for j := range feats {
		feats[j] = j
	}
	if m := b.t.MaxFeatures; m > 0 && m < p {
		b.rnd.Shuffle(p, func(i, j int) { feats[i], feats[j] = feats[j], feats[i] })
		feats = feats[:m]
		sort.Ints(feats)
	}
	return feats
}

// bestSplit scans sorted values of feature f once, keeping running class
// weights on the left. Missing values are tried on both sides.
func (b *treeBuilder) bestSplit(idx []int, f int, counts []float64, parent float64) splitResult {
	res := splitResult{feature: -1}
	valid := make([]pair, 0, len(idx))
	nanCounts := make([]float64, b.k)
	nNaN := 0
	for _, i := range idx {
		v := b.X[i][f]
		if math.IsNaN(v) {
			nanCounts[b.y[i]] += b.weight(i)
			nNaN++
			continue
		}
		valid = append(valid, pair{v, i})
	}
	if len(valid) < 2 {
		return res
	}
	sort.Slice(valid, func(a, c int) bool { return valid[a].v < valid[c].v })

	total := sum(counts)
	left := make([]float64, b.k)
	right := make([]float64, b.k)
	withNaN := make([]float64, b.k)
	minLeaf := b.t.MinSamplesLeaf
	for s := 1; s < len(valid); s++ {
		prev := valid[s-1].i
		left[b.y[prev]] += b.weight(prev)
		if valid[s].v == valid[s-1].v {
			continue
		}
		nl, nr := s, len(valid)-s
		for c := range right {
			right[c] = counts[c] - nanCounts[c] - left[c]
		}
		thr := (valid[s-1].v + valid[s].v) / 2
		for _, nanLeft := range []bool{true, false} {
			if nNaN == 0 && !nanLeft {
				break
			}
			l, r := left, right
			ln, rn := nl, nr
			for c := range withNaN {
				if nanLeft {
					withNaN[c] = left[c] + nanCounts[c]
				} else {
					withNaN[c] = right[c] + nanCounts[c]
				}
			}
			if nanLeft {
				l, ln = withNaN, nl+nNaN
			} else {
				r, rn = withNaN, nr+nNaN
			}
			if ln < minLeaf || rn < minLeaf {
				continue
			}
			wl, wr := sum(l), sum(r)
			gain := parent - (wl/total)*b.impurity(l) - (wr/total)*b.impurity(r)
			if gain > res.gain {
				res = splitResult{gain: gain, feature: f, threshold: thr, nanLeft: nanLeft}
			}
		}
	}
	return res
}

// ---------------------------
// Impurity helpers
// ---------------------------

func gini(counts []float64) float64 {
	n := sum(counts)
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := c / n
		res -= p * p
	}
	return res
}

func entropy(counts []float64) float64 {
	n := sum(counts)
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := c / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
