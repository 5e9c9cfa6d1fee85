package model

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// CheckXY validates that X and y are non-empty, y is a single column and
// their row counts agree. It returns the sample and feature counts.
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	return nSamples, nFeatures, nil
}

// Classes returns the sorted distinct integer labels in y. Non-integral or
// non-finite labels and fewer than two classes are errors.
func Classes(op string, y mat.Matrix) ([]int, error) {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, errors.NewValueError(op, fmt.Sprintf("label %d is %v, want an integer class", i, v))
		}
		seen[int(v)] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	slices.Sort(classes)
	if len(classes) < 2 {
		return nil, errors.NewValueError(op, fmt.Sprintf("need samples of at least 2 classes, got %d", len(classes)))
	}
	return classes, nil
}

// ClassIndex maps every label of y to its position in classes.
func ClassIndex(y mat.Matrix, classes []int) []int {
	rows, _ := y.Dims()
	idx := make([]int, rows)
	for i := range idx {
		idx[i], _ = slices.BinarySearch(classes, int(y.At(i, 0)))
	}
	return idx
}

// MeanAccuracy predicts X with p and returns the fraction of rows equal to y.
func MeanAccuracy(p Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	yRows, _ := y.Dims()
	if n != yRows {
		return 0, errors.NewDimensionError("Score", n, yRows, 0)
	}
	if n == 0 {
		return 0, errors.NewValueError("Score", "empty data")
	}
	var correct int
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}
