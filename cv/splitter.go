package cv

import (
	"fmt"
	"math/rand/v2"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
)

// Fold is one train/held-out split. Train and Test are disjoint and together
// cover every row exactly once.
type Fold struct {
	Index int
	Train []int
	Test  []int
}

// Splitter partitions n observations into folds.
type Splitter interface {
	Split(n int) ([]Fold, error)
}

// LeaveOneOutSplitter holds out a single observation per fold. Fold i holds
// out row i.
type LeaveOneOutSplitter struct{}

// Split returns n folds.
func (LeaveOneOutSplitter) Split(n int) ([]Fold, error) {
	if n < 2 {
		return nil, errors.NewValidationError("n", "leave-one-out needs at least 2 observations", n)
	}
	folds := make([]Fold, n)
	for i := range folds {
		train := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				train = append(train, j)
			}
		}
		folds[i] = Fold{Index: i, Train: train, Test: []int{i}}
	}
	return folds, nil
}

// KFold splits rows into NSplits contiguous blocks. The first n % NSplits
// folds get one extra row. With Shuffle the rows are permuted first using a
// generator seeded from RandomSeed, so the split is reproducible.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a k-fold splitter.
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// Split generates train/test indices for each fold.
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 || kf.NSplits > n {
		return nil, errors.NewValidationError("folds",
			fmt.Sprintf("must be between 2 and the number of observations (%d)", n), kf.NSplits)
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits

	current := 0
	for i := range folds {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		test := make([]int, testSize)
		copy(test, indices[current:current+testSize])

		held := make([]bool, n)
		for _, idx := range test {
			held[idx] = true
		}
		train := make([]int, 0, n-testSize)
		for j := 0; j < n; j++ {
			if !held[j] {
				train = append(train, j)
			}
		}

		folds[i] = Fold{Index: i, Train: train, Test: test}
		current += testSize
	}
	return folds, nil
}
