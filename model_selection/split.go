// Package model_selection provides train/test partitioning, k-fold
// cross-validation splitters and an exhaustive grid search over
// hyperparameters, following scikit-learn's model_selection module.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// Partition は train/test に分割したデータ
// TrainIdx と TestIdx は元の行番号で、互いに素かつ全行を覆う
type Partition struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense
	TrainIdx      []int
	TestIdx       []int
}

// TrainTestSplit は行をシャッフルして train/test に分割する
//
// n_test = ceil(testSize * n)、残りが train。層化はしない。
// 同じ randomState と同じ入力順なら同じ分割になる
func TrainTestSplit(X, y mat.Matrix, testSize float64, randomState uint64) (*Partition, error) {
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size must be in (0, 1), got %v", testSize))
	}
	n, _ := X.Dims()
	if yRows, _ := y.Dims(); yRows != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, yRows, 0)
	}
	if n < 2 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("need at least 2 samples to split, got %d", n))
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 || nTest <= 0 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%v the resulting train set would be empty", n, testSize))
	}

	perm := Permutation(n, randomState)
	testIdx := perm[:nTest]
	trainIdx := perm[nTest:]

	return &Partition{
		XTrain:   TakeRows(X, trainIdx),
		XTest:    TakeRows(X, testIdx),
		YTrain:   TakeRows(y, trainIdx),
		YTest:    TakeRows(y, testIdx),
		TrainIdx: trainIdx,
		TestIdx:  testIdx,
	}, nil
}

// Permutation returns a seeded random permutation of [0, n).
func Permutation(n int, seed uint64) []int {
	r := rand.New(rand.NewPCG(seed, seed))
	return r.Perm(n)
}

// TakeRows copies the given rows of m, in order, into a new matrix.
func TakeRows(m mat.Matrix, rows []int) *mat.Dense {
	_, c := m.Dims()
	if len(rows) == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(rows), c, nil)
	row := make([]float64, c)
	for i, r := range rows {
		mat.Row(row, r, m)
		out.SetRow(i, row)
	}
	return out
}
