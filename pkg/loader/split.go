package loader

import (
	"math/rand"
	"time"

	"stockml/pkg/data"
)

// SplitByDate partitions f chronologically: train holds dates before trainEnd,
// val dates in [trainEnd, valEnd), test the rest.
func SplitByDate(f *data.Frame, trainEnd, valEnd time.Time) (train, val, test *data.Frame) {
	train = f.Filter(func(r data.Row) bool { return r.Date.Before(trainEnd) })
	val = f.Filter(func(r data.Row) bool { return !r.Date.Before(trainEnd) && r.Date.Before(valEnd) })
	test = f.Filter(func(r data.Row) bool { return !r.Date.Before(valEnd) })
	return train, val, test
}

// TrainTestSplit returns shuffled train and test indices for n samples.
func TrainTestSplit(n int, testRatio float64, seed int64) (trainIdx, testIdx []int) {
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(float64(n) * testRatio)
	return indices[nTest:], indices[:nTest]
}

// KFoldSplit yields k folds of shuffled indices.
func KFoldSplit(n, k int, seed int64) [][]int {
	indices := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	for i := range n {
		folds[i%k] = append(folds[i%k], indices[i])
	}
	return folds
}

// Batches shuffles 0..n-1 with rnd and cuts it into chunks of at most size.
// A nil rnd keeps the natural order.
func Batches(n, size int, rnd *rand.Rand) [][]int {
	var idx []int
	if rnd != nil {
		idx = rnd.Perm(n)
	} else {
		idx = make([]int, n)
		for i := range idx {
			idx[i] = i
		}
	}
	if size <= 0 || size > n {
		size = n
	}
	var out [][]int
	for start := 0; start < n; start += size {
		out = append(out, idx[start:min(start+size, n)])
	}
	return out
}

// Take gathers rows of X by index.
func Take[T any](X []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}
