// Package model_selection splits samples into train and test partitions and
// scores estimators by cross-validation.
package model_selection

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// Splitter produces cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) ([]CVFold, error)
	GetNSplits() int
}

// CVFold is one train/test partition of the sample indices. Both lists are
// ascending.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold assigns consecutive blocks of samples to the folds; the first
// n % NSplits folds get one extra sample.
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
func (kf *KFold) GetNSplits() int { return kf.NSplits }

// Split generates train/test indices for each fold
func (kf *KFold) Split(X, _ mat.Matrix) ([]CVFold, error) {
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
		r.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	foldOf := make([]int, nSamples)
	foldSize, remainder := nSamples/kf.NSplits, nSamples%kf.NSplits
	current := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			foldOf[idx] = f
		}
		current += size
	}
	return foldsFromAssignment(foldOf, kf.NSplits), nil
}

// StratifiedKFold keeps the class proportions of every fold close to those
// of the whole sample. Per-class fold sizes come from dealing the sorted
// labels round-robin over the folds; within a class, samples fill the folds
// in order.
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
func (skf *StratifiedKFold) GetNSplits() int { return skf.NSplits }

// Split generates stratified train/test indices for each fold
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if err := checkSplits("StratifiedKFold", skf.NSplits, nSamples); err != nil {
		return nil, err
	}
	yRows, _ := y.Dims()
	if yRows != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yRows, 0)
	}

	labels := mat.Col(nil, 0, y)
	levels := slices.Clone(labels)
	slices.Sort(levels)
	levels = slices.Compact(levels)
	encoded := make([]int, nSamples)
	for i, v := range labels {
		encoded[i], _ = slices.BinarySearch(levels, v)
	}

	counts := make([]int, len(levels))
	for _, c := range encoded {
		counts[c]++
	}
	if slices.Max(counts) < skf.NSplits {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			fmt.Sprintf("n_splits=%d cannot be greater than the number of members in each class", skf.NSplits))
	}
	if least := slices.Min(counts); least < skf.NSplits {
		errors.Warn(errors.NewMethodologyWarning("stratified_kfold",
			fmt.Sprintf("the least populated class has only %d members, which is less than n_splits=%d", least, skf.NSplits)))
	}

	// allocation[f][k]: members of class k in fold f
	sorted := slices.Clone(encoded)
	slices.Sort(sorted)
	allocation := make([][]int, skf.NSplits)
	for f := range allocation {
		allocation[f] = make([]int, len(levels))
		for i := f; i < nSamples; i += skf.NSplits {
			allocation[f][sorted[i]]++
		}
	}

	var r *rand.Rand
	if skf.Shuffle {
		r = rand.New(rand.NewPCG(skf.RandomSeed, skf.RandomSeed))
	}
	foldOf := make([]int, nSamples)
	for k := range levels {
		foldsForClass := make([]int, 0, counts[k])
		for f := 0; f < skf.NSplits; f++ {
			for n := 0; n < allocation[f][k]; n++ {
				foldsForClass = append(foldsForClass, f)
			}
		}
		if r != nil {
			r.Shuffle(len(foldsForClass), func(i, j int) {
				foldsForClass[i], foldsForClass[j] = foldsForClass[j], foldsForClass[i]
			})
		}
		next := 0
		for i, c := range encoded {
			if c == k {
				foldOf[i] = foldsForClass[next]
				next++
			}
		}
	}
	return foldsFromAssignment(foldOf, skf.NSplits), nil
}

func checkSplits(op string, nSplits, nSamples int) error {
	if nSplits < 2 {
		return errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	if nSplits > nSamples {
		return errors.NewValueError(op+".Split",
			fmt.Sprintf("cannot have n_splits=%d greater than the number of samples %d", nSplits, nSamples))
	}
	return nil
}

func foldsFromAssignment(foldOf []int, nSplits int) []CVFold {
	folds := make([]CVFold, nSplits)
	for i, f := range foldOf {
		for g := range folds {
			if g == f {
				folds[g].TestIndices = append(folds[g].TestIndices, i)
			} else {
				folds[g].TrainIndices = append(folds[g].TrainIndices, i)
			}
		}
	}
	return folds
}
