package model_selection

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// Splitter defines interface for cross-validation splitters
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	GetNSplits() int
}

// Fold represents a single fold in cross-validation
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold. Without shuffling the
// test folds are contiguous; the first n % k folds get one extra sample.
func (kf *KFold) Split(X, _ mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("KFold", kf.NSplits, nSamples); err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	testFold := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			testFold[idx] = f
		}
		current += size
	}
	return foldsFromAssignment(testFold, kf.NSplits), nil
}

// StratifiedKFold implements stratified k-fold cross-validation.
//
// Samples are assigned the way scikit-learn does it: the labels are sorted,
// dealt round-robin into the folds to get each fold's per-class quota, and
// the samples of every class fill those quotas in their original order.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed uint64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("StratifiedKFold", skf.NSplits, nSamples); err != nil {
		return nil, err
	}
	if yRows, _ := y.Dims(); yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}

	// クラスを出現順に符号化する
	labels := mat.Col(nil, 0, y)
	code := make(map[float64]int)
	encoded := make([]int, nSamples)
	for i, l := range labels {
		c, ok := code[l]
		if !ok {
			c = len(code)
			code[l] = c
		}
		encoded[i] = c
	}
	nClasses := len(code)

	counts := make([]int, nClasses)
	for _, c := range encoded {
		counts[c]++
	}
	if skf.NSplits > slices.Max(counts) {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			fmt.Sprintf("n_splits=%d cannot be greater than the number of members in each class", skf.NSplits))
	}

	// allocation[f][c]: fold f が受け持つクラス c のサンプル数
	order := slices.Clone(encoded)
	slices.Sort(order)
	allocation := make([][]int, skf.NSplits)
	for f := range allocation {
		allocation[f] = make([]int, nClasses)
		for i := f; i < nSamples; i += skf.NSplits {
			allocation[f][order[i]]++
		}
	}

	var r *rand.Rand
	if skf.Shuffle {
		r = rand.New(rand.NewPCG(skf.RandomSeed, skf.RandomSeed))
	}
	testFold := make([]int, nSamples)
	for c := 0; c < nClasses; c++ {
		foldsForClass := make([]int, 0, counts[c])
		for f := 0; f < skf.NSplits; f++ {
			for k := 0; k < allocation[f][c]; k++ {
				foldsForClass = append(foldsForClass, f)
			}
		}
		if r != nil {
			r.Shuffle(len(foldsForClass), func(i, j int) {
				foldsForClass[i], foldsForClass[j] = foldsForClass[j], foldsForClass[i]
			})
		}
		next := 0
		for i, e := range encoded {
			if e == c {
				testFold[i] = foldsForClass[next]
				next++
			}
		}
	}
	return foldsFromAssignment(testFold, skf.NSplits), nil
}

func checkSplits(op string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewValueError(op, fmt.Sprintf("n_splits must be at least 2, got %d", nSplits))
	}
	if nSplits > nSamples {
		return errors.NewValueError(op,
			fmt.Sprintf("cannot have number of splits n_splits=%d greater than the number of samples: n_samples=%d", nSplits, nSamples))
	}
	return nil
}

// foldsFromAssignment turns a per-sample test fold number into folds with
// ascending train and test indices.
func foldsFromAssignment(testFold []int, nSplits int) []Fold {
	folds := make([]Fold, nSplits)
	for i, f := range testFold {
		folds[f].TestIndices = append(folds[f].TestIndices, i)
		for g := range folds {
			if g != f {
				folds[g].TrainIndices = append(folds[g].TrainIndices, i)
			}
		}
	}
	return folds
}
