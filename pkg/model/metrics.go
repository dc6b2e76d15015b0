package model

import "sort"

// Accuracy is the share of matching labels.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// ConfusionMatrix counts (true, predicted) pairs over the sorted union of labels.
// Rows are true labels, columns predictions.
func ConfusionMatrix(yTrue, yPred []int) (labels []int, m [][]int) {
	seen := map[int]struct{}{}
	for _, v := range append(append([]int(nil), yTrue...), yPred...) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			labels = append(labels, v)
		}
	}
	sort.Ints(labels)
	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	m = make([][]int, len(labels))
	for i := range m {
		m[i] = make([]int, len(labels))
	}
	for i := range yTrue {
		m[pos[yTrue[i]]][pos[yPred[i]]]++
	}
	return labels, m
}

// Report is a macro-averaged classification summary.
type Report struct {
	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Evaluate computes accuracy and macro precision, recall and F1. Classes with
// no predictions score zero precision.
func Evaluate(yTrue, yPred []int) Report {
	labels, cm := ConfusionMatrix(yTrue, yPred)
	r := Report{Accuracy: Accuracy(yTrue, yPred), Support: len(yTrue)}
	if len(labels) == 0 {
		return r
	}
	for k := range labels {
		tp := cm[k][k]
		predicted, actual := 0, 0
		for j := range labels {
			predicted += cm[j][k]
			actual += cm[k][j]
		}
		var prec, rec, f1 float64
		if predicted > 0 {
			prec = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			rec = float64(tp) / float64(actual)
		}
		if prec+rec > 0 {
			f1 = 2 * prec * rec / (prec + rec)
		}
		r.Precision += prec
		r.Recall += rec
		r.F1 += f1
	}
	n := float64(len(labels))
	r.Precision /= n
	r.Recall /= n
	r.F1 /= n
	return r
}
