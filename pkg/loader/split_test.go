package loader

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockml/pkg/data"
)

func day(s string) time.Time {
	t, _ := time.Parse(data.DateLayout, s)
	return t
}

func TestSplitByDate(t *testing.T) {
	f := data.NewFrame("x")
	for i, d := range []string{"2022-12-31", "2023-01-01", "2024-09-30", "2024-10-01", "2024-12-31"} {
		require.NoError(t, f.Append("A", day(d), []float64{float64(i)}))
	}

	train, val, test := SplitByDate(f, day("2023-01-01"), day("2024-10-01"))
	assert.Len(t, train.Rows, 1)
	assert.Len(t, val.Rows, 2)
	assert.Len(t, test.Rows, 2)
	assert.Equal(t, day("2023-01-01"), val.Rows[0].Date)
	assert.Equal(t, day("2024-10-01"), test.Rows[0].Date)
}

func TestTrainTestSplitDeterministic(t *testing.T) {
	tr1, te1 := TrainTestSplit(10, 0.3, 7)
	tr2, te2 := TrainTestSplit(10, 0.3, 7)
	assert.Equal(t, tr1, tr2)
	assert.Equal(t, te1, te2)
	assert.Len(t, te1, 3)

	all := append(append([]int{}, tr1...), te1...)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)
}

func TestKFoldSplit(t *testing.T) {
	folds := KFoldSplit(10, 3, 1)
	require.Len(t, folds, 3)
	total := 0
	for _, f := range folds {
		total += len(f)
	}
	assert.Equal(t, 10, total)
}

func TestBatches(t *testing.T) {
	b := Batches(5, 2, nil)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4}}, b)

	shuffled := Batches(5, 0, rand.New(rand.NewSource(1)))
	require.Len(t, shuffled, 1)
	assert.Len(t, shuffled[0], 5)

	assert.Equal(t, []string{"c", "a"}, Take([]string{"a", "b", "c"}, []int{2, 0}))
}
