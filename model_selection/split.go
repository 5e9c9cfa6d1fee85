package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// Split holds one train/test partition of X and y plus the original row
// indices behind each side.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense
	TrainIndex    []int
	TestIndex     []int
}

type splitConfig struct {
	testSize    float64
	randomState uint64
	shuffle     bool
}

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

// WithTestSize sets the test fraction, in (0, 1).
func WithTestSize(f float64) SplitOption {
	return func(c *splitConfig) { c.testSize = f }
}

// WithRandomState seeds the shuffle.
func WithRandomState(seed uint64) SplitOption {
	return func(c *splitConfig) { c.randomState = seed }
}

// WithShuffle toggles shuffling; without it the last rows form the test set.
func WithShuffle(shuffle bool) SplitOption {
	return func(c *splitConfig) { c.shuffle = shuffle }
}

// TrainTestSplit permutes the row indices with a seeded PCG generator and
// takes the first ceil(testSize·n) as the test partition and the rest as
// train. Defaults: testSize 0.25, seed 0, shuffled.
func TrainTestSplit(X, y mat.Matrix, opts ...SplitOption) (*Split, error) {
	cfg := splitConfig{testSize: 0.25, shuffle: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !(cfg.testSize > 0 && cfg.testSize < 1) {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", cfg.testSize)
	}
	n, _ := X.Dims()
	yRows, _ := y.Dims()
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "TrainTestSplit")
	}
	if yRows != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, yRows, 0)
	}

	nTest := int(math.Ceil(cfg.testSize * float64(n)))
	nTrain := n - nTest
	if nTrain == 0 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%v the train set would be empty", n, cfg.testSize))
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	if cfg.shuffle {
		r := rand.New(rand.NewPCG(cfg.randomState, cfg.randomState))
		r.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		return newSplit(X, y, perm[nTest:], perm[:nTest]), nil
	}
	return newSplit(X, y, perm[:nTrain], perm[nTrain:]), nil
}

func newSplit(X, y mat.Matrix, train, test []int) *Split {
	return &Split{
		XTrain:     SelectRows(X, train),
		XTest:      SelectRows(X, test),
		YTrain:     SelectRows(y, train),
		YTest:      SelectRows(y, test),
		TrainIndex: train,
		TestIndex:  test,
	}
}

// SelectRows copies the listed rows of m, in order, into a new matrix.
func SelectRows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		for j := 0; j < c; j++ {
			out.Set(k, j, m.At(i, j))
		}
	}
	return out
}
