package model

import (
	"errors"
	"fmt"
)

// Params holds the hyperparameters the registry builds classifiers with.
// The tags let it sit directly under model.params in the config file.
type Params struct {
	DecisionTree       TreeParams     `yaml:"decision_tree" mapstructure:"decision_tree"`
	RandomForest       ForestParams   `yaml:"random_forest" mapstructure:"random_forest"`
	LogisticRegression LogisticParams `yaml:"logistic_regression" mapstructure:"logistic_regression"`
	AdaBoost           BoostParams    `yaml:"adaboost" mapstructure:"adaboost"`
	GradientBoosting   BoostParams    `yaml:"gradient_boosting" mapstructure:"gradient_boosting"`
	LinearSVC          SVCParams      `yaml:"linear_svc" mapstructure:"linear_svc"`
	KNN                KNNParams      `yaml:"knn" mapstructure:"knn"`
}

type TreeParams struct {
	MaxDepth            int     `yaml:"max_depth" mapstructure:"max_depth"`
	MinSamplesSplit     int     `yaml:"min_samples_split" mapstructure:"min_samples_split"`
	MinSamplesLeaf      int     `yaml:"min_samples_leaf" mapstructure:"min_samples_leaf"`
	Criterion           string  `yaml:"criterion" mapstructure:"criterion"`
	MaxFeatures         int     `yaml:"max_features" mapstructure:"max_features"`
	MinImpurityDecrease float64 `yaml:"min_impurity_decrease" mapstructure:"min_impurity_decrease"`
}

type ForestParams struct {
	NEstimators int  `yaml:"n_estimators" mapstructure:"n_estimators"`
	MaxDepth    int  `yaml:"max_depth" mapstructure:"max_depth"`
	MaxFeatures int  `yaml:"max_features" mapstructure:"max_features"` // 0 => sqrt(p)
	Bootstrap   bool `yaml:"bootstrap" mapstructure:"bootstrap"`
}

type LogisticParams struct {
	LearningRate float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
	Epochs       int     `yaml:"epochs" mapstructure:"epochs"`
	BatchSize    int     `yaml:"batch_size" mapstructure:"batch_size"`
	L2           float64 `yaml:"l2" mapstructure:"l2"`
}

// BoostParams is shared by AdaBoost and gradient boosting. AdaBoost ignores
// MaxDepth since it always boosts stumps.
type BoostParams struct {
	NEstimators  int     `yaml:"n_estimators" mapstructure:"n_estimators"`
	LearningRate float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
	MaxDepth     int     `yaml:"max_depth,omitempty" mapstructure:"max_depth"`
}

type SVCParams struct {
	C      float64 `yaml:"c" mapstructure:"c"`
	Epochs int     `yaml:"epochs" mapstructure:"epochs"`
}

type KNNParams struct {
	K int `yaml:"k" mapstructure:"k"`
}

// DefaultParams returns the hyperparameters New uses.
func DefaultParams() Params {
	return Params{
		DecisionTree: TreeParams{
			MaxDepth:        8,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  5,
			Criterion:       "gini",
		},
		RandomForest: ForestParams{
			NEstimators: 100,
			MaxDepth:    10,
			Bootstrap:   true,
		},
		LogisticRegression: LogisticParams{
			LearningRate: 0.1,
			Epochs:       200,
			BatchSize:    64,
			L2:           1e-4,
		},
		AdaBoost:         BoostParams{NEstimators: 50, LearningRate: 1.0},
		GradientBoosting: BoostParams{NEstimators: 100, LearningRate: 0.1, MaxDepth: 3},
		LinearSVC:        SVCParams{C: 1, Epochs: 100},
		KNN:              KNNParams{K: 5},
	}
}

// Validate reports hyperparameters no classifier can train with.
func (p Params) Validate() error {
	var errs []error
	if c := p.DecisionTree.Criterion; c != "gini" && c != "entropy" {
		errs = append(errs, fmt.Errorf("decision_tree.criterion %q is not gini or entropy", c))
	}
	if p.DecisionTree.MinSamplesLeaf < 1 || p.DecisionTree.MinSamplesSplit < 2 {
		errs = append(errs, errors.New("decision_tree needs min_samples_leaf >= 1 and min_samples_split >= 2"))
	}
	for name, n := range map[string]int{
		"random_forest.n_estimators":     p.RandomForest.NEstimators,
		"adaboost.n_estimators":          p.AdaBoost.NEstimators,
		"gradient_boosting.n_estimators": p.GradientBoosting.NEstimators,
		"logistic_regression.epochs":     p.LogisticRegression.Epochs,
		"logistic_regression.batch_size": p.LogisticRegression.BatchSize,
		"linear_svc.epochs":              p.LinearSVC.Epochs,
		"knn.k":                          p.KNN.K,
	} {
		if n < 1 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	for name, v := range map[string]float64{
		"logistic_regression.learning_rate": p.LogisticRegression.LearningRate,
		"adaboost.learning_rate":            p.AdaBoost.LearningRate,
		"gradient_boosting.learning_rate":   p.GradientBoosting.LearningRate,
		"linear_svc.c":                      p.LinearSVC.C,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}
