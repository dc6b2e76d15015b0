package model

import (
	"bytes"
	"encoding/gob"
)

// Fitted classifiers travel as Classifier interface values inside saved
// pipelines, so gob needs their concrete types.
func init() {
	gob.Register(&DecisionTreeClassifier{})
	gob.Register(&RandomForest{})
	gob.Register(&LogisticRegression{})
	gob.Register(&GaussianNB{})
	gob.Register(&AdaBoost{})
	gob.Register(&GradientBoosting{})
	gob.Register(&LinearSVC{})
	gob.Register(&KNN{})
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// flatNode is one tree node in preorder; Left and Right index the slice,
// -1 for none.
type flatNode struct {
	Leaf      bool
	Feature   int
	Threshold float64
	NaNLeft   bool
	Left      int
	Right     int
	N         int
	Probas    []float64
	Value     float64
}

func flattenTree(n *dtNode, out []flatNode) ([]flatNode, int) {
	if n == nil {
		return out, -1
	}
	at := len(out)
	out = append(out, flatNode{
		Leaf:      n.isLeaf,
		Feature:   n.feature,
		Threshold: n.threshold,
		NaNLeft:   n.nanLeft,
		N:         n.n,
		Probas:    n.probas,
	})
	var l, r int
	out, l = flattenTree(n.left, out)
	out, r = flattenTree(n.right, out)
	out[at].Left, out[at].Right = l, r
	return out, at
}

func buildTree(nodes []flatNode, i int) *dtNode {
	if i < 0 || i >= len(nodes) {
		return nil
	}
	f := nodes[i]
	return &dtNode{
		isLeaf:    f.Leaf,
		feature:   f.Feature,
		threshold: f.Threshold,
		nanLeft:   f.NaNLeft,
		n:         f.N,
		probas:    f.Probas,
		left:      buildTree(nodes, f.Left),
		right:     buildTree(nodes, f.Right),
	}
}

type treeState struct {
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	Criterion           string
	MaxFeatures         int
	MinImpurityDecrease float64
	RandomState         int64
	Classes             []int
	NFeatures           int
	Importances         []float64
	Nodes               []flatNode
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (t *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	nodes, _ := flattenTree(t.root, nil)
	return gobEncode(treeState{
		MaxDepth:            t.MaxDepth,
		MinSamplesSplit:     t.MinSamplesSplit,
		MinSamplesLeaf:      t.MinSamplesLeaf,
		Criterion:           t.Criterion,
		MaxFeatures:         t.MaxFeatures,
		MinImpurityDecrease: t.MinImpurityDecrease,
		RandomState:         t.RandomState,
		Classes:             t.classes,
		NFeatures:           t.nFeatures,
		Importances:         t.importances,
		Nodes:               nodes,
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (t *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	var s treeState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	t.MaxDepth = s.MaxDepth
	t.MinSamplesSplit = s.MinSamplesSplit
	t.MinSamplesLeaf = s.MinSamplesLeaf
	t.Criterion = s.Criterion
	t.MaxFeatures = s.MaxFeatures
	t.MinImpurityDecrease = s.MinImpurityDecrease
	t.RandomState = s.RandomState
	t.classes = s.Classes
	t.nFeatures = s.NFeatures
	t.importances = s.Importances
	t.root = buildTree(s.Nodes, 0)
	return nil
}

type forestState struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	RandomState     int64
	Trees           []*DecisionTreeClassifier
	Classes         []int
	Importances     []float64
}

func (rf *RandomForest) MarshalBinary() ([]byte, error) {
	return gobEncode(forestState{
		NEstimators:     rf.NEstimators,
		MaxDepth:        rf.MaxDepth,
		MinSamplesSplit: rf.MinSamplesSplit,
		MinSamplesLeaf:  rf.MinSamplesLeaf,
		MaxFeatures:     rf.MaxFeatures,
		Bootstrap:       rf.Bootstrap,
		RandomState:     rf.RandomState,
		Trees:           rf.Trees,
		Classes:         rf.classes,
		Importances:     rf.importances,
	})
}

func (rf *RandomForest) UnmarshalBinary(data []byte) error {
	var s forestState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	*rf = RandomForest{
		NEstimators:     s.NEstimators,
		MaxDepth:        s.MaxDepth,
		MinSamplesSplit: s.MinSamplesSplit,
		MinSamplesLeaf:  s.MinSamplesLeaf,
		MaxFeatures:     s.MaxFeatures,
		Bootstrap:       s.Bootstrap,
		RandomState:     s.RandomState,
		Trees:           s.Trees,
		classes:         s.Classes,
		importances:     s.Importances,
	}
	return nil
}

type adaBoostState struct {
	NEstimators  int
	LearningRate float64
	RandomState  int64
	Classes      []int
	Stumps       []*DecisionTreeClassifier
	Alphas       []float64
	Importances  []float64
}

func (m *AdaBoost) MarshalBinary() ([]byte, error) {
	return gobEncode(adaBoostState{
		NEstimators:  m.NEstimators,
		LearningRate: m.LearningRate,
		RandomState:  m.RandomState,
		Classes:      m.classes,
		Stumps:       m.stumps,
		Alphas:       m.alphas,
		Importances:  m.importances,
	})
}

func (m *AdaBoost) UnmarshalBinary(data []byte) error {
	var s adaBoostState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	*m = AdaBoost{
		NEstimators:  s.NEstimators,
		LearningRate: s.LearningRate,
		RandomState:  s.RandomState,
		classes:      s.Classes,
		stumps:       s.Stumps,
		alphas:       s.Alphas,
		importances:  s.Importances,
	}
	return nil
}

func flattenReg(n *regNode, out []flatNode) ([]flatNode, int) {
	if n == nil {
		return out, -1
	}
	at := len(out)
	out = append(out, flatNode{
		Leaf:      n.leaf,
		Feature:   n.feature,
		Threshold: n.threshold,
		NaNLeft:   n.nanLeft,
		Value:     n.value,
	})
	var l, r int
	out, l = flattenReg(n.left, out)
	out, r = flattenReg(n.right, out)
	out[at].Left, out[at].Right = l, r
	return out, at
}

func buildReg(nodes []flatNode, i int) *regNode {
	if i < 0 || i >= len(nodes) {
		return nil
	}
	f := nodes[i]
	return &regNode{
		leaf:      f.Leaf,
		value:     f.Value,
		feature:   f.Feature,
		threshold: f.Threshold,
		nanLeft:   f.NaNLeft,
		left:      buildReg(nodes, f.Left),
		right:     buildReg(nodes, f.Right),
	}
}

type regTreeState struct {
	MaxDepth    int
	MinLeaf     int
	Nodes       []flatNode
	Importances []float64
}

func (t *regTree) MarshalBinary() ([]byte, error) {
	nodes, _ := flattenReg(t.root, nil)
	return gobEncode(regTreeState{MaxDepth: t.maxDepth, MinLeaf: t.minLeaf, Nodes: nodes, Importances: t.importances})
}

func (t *regTree) UnmarshalBinary(data []byte) error {
	var s regTreeState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	*t = regTree{maxDepth: s.MaxDepth, minLeaf: s.MinLeaf, root: buildReg(s.Nodes, 0), importances: s.Importances}
	return nil
}

type gradientBoostingState struct {
	NEstimators    int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
	Subsample      float64
	RandomState    int64
	Classes        []int
	Init           []float64
	Trees          [][]*regTree
	Importances    []float64
}

func (m *GradientBoosting) MarshalBinary() ([]byte, error) {
	return gobEncode(gradientBoostingState{
		NEstimators:    m.NEstimators,
		LearningRate:   m.LearningRate,
		MaxDepth:       m.MaxDepth,
		MinSamplesLeaf: m.MinSamplesLeaf,
		Subsample:      m.Subsample,
		RandomState:    m.RandomState,
		Classes:        m.classes,
		Init:           m.init,
		Trees:          m.trees,
		Importances:    m.importances,
	})
}

func (m *GradientBoosting) UnmarshalBinary(data []byte) error {
	var s gradientBoostingState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	*m = GradientBoosting{
		NEstimators:    s.NEstimators,
		LearningRate:   s.LearningRate,
		MaxDepth:       s.MaxDepth,
		MinSamplesLeaf: s.MinSamplesLeaf,
		Subsample:      s.Subsample,
		RandomState:    s.RandomState,
		classes:        s.Classes,
		init:           s.Init,
		trees:          s.Trees,
		importances:    s.Importances,
	}
	return nil
}

type knnState struct {
	K       int
	X       [][]float64
	Y       []int
	Classes []int
}

func (m *KNN) MarshalBinary() ([]byte, error) {
	return gobEncode(knnState{K: m.K, X: m.X, Y: m.y, Classes: m.classes})
}

func (m *KNN) UnmarshalBinary(data []byte) error {
	var s knnState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	*m = KNN{K: s.K, X: s.X, y: s.Y, classes: s.Classes}
	return nil
}

type logisticState struct {
	W         [][]float64
	B         []float64
	Lr        float64
	L2        float64
	Epochs    int
	BatchSize int
	Seed      int64
	Loss      float64
	Classes   []int
}

func (m *LogisticRegression) MarshalBinary() ([]byte, error) {
	return gobEncode(logisticState{
		W: m.W, B: m.B, Lr: m.Lr, L2: m.L2, Epochs: m.Epochs,
		BatchSize: m.BatchSize, Seed: m.Seed, Loss: m.Loss, Classes: m.classes,
	})
}

func (m *LogisticRegression) UnmarshalBinary(data []byte) error {
	var s logisticState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	*m = LogisticRegression{
		W: s.W, B: s.B, Lr: s.Lr, L2: s.L2, Epochs: s.Epochs,
		BatchSize: s.BatchSize, Seed: s.Seed, Loss: s.Loss, classes: s.Classes,
	}
	return nil
}

type svcState struct {
	C         float64
	Lr        float64
	Epochs    int
	BatchSize int
	Seed      int64
	W         [][]float64
	B         []float64
	Classes   []int
}

func (m *LinearSVC) MarshalBinary() ([]byte, error) {
	return gobEncode(svcState{
		C: m.C, Lr: m.Lr, Epochs: m.Epochs, BatchSize: m.BatchSize, Seed: m.Seed,
		W: m.W, B: m.B, Classes: m.classes,
	})
}

func (m *LinearSVC) UnmarshalBinary(data []byte) error {
	var s svcState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	*m = LinearSVC{
		C: s.C, Lr: s.Lr, Epochs: s.Epochs, BatchSize: s.BatchSize, Seed: s.Seed,
		W: s.W, B: s.B, classes: s.Classes,
	}
	return nil
}

type naiveBayesState struct {
	VarSmoothing float64
	Classes      []int
	Priors       []float64
	Means        [][]float64
	Vars         [][]float64
}

func (m *GaussianNB) MarshalBinary() ([]byte, error) {
	return gobEncode(naiveBayesState{
		VarSmoothing: m.VarSmoothing, Classes: m.classes, Priors: m.priors, Means: m.means, Vars: m.vars,
	})
}

func (m *GaussianNB) UnmarshalBinary(data []byte) error {
	var s naiveBayesState
	if err := gobDecode(data, &s); err != nil {
		return err
	}
	*m = GaussianNB{VarSmoothing: s.VarSmoothing, classes: s.Classes, priors: s.Priors, means: s.Means, vars: s.Vars}
	return nil
}
