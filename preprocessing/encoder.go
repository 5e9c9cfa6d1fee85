package preprocessing

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// OneHotEncoder expands each integer-coded input column into indicator
// columns, one per observed level in ascending order. With DropFirst the
// lowest level of every column is omitted.
type OneHotEncoder struct {
	state *model.StateManager

	// DropFirst omits the first level of every feature.
	DropFirst bool

	categories [][]float64
}

// NewOneHotEncoder creates an encoder.
func NewOneHotEncoder(dropFirst bool) *OneHotEncoder {
	return &OneHotEncoder{state: model.NewStateManager(), DropFirst: dropFirst}
}

// Fit records the sorted distinct levels of every column.
func (e *OneHotEncoder) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	categories := make([][]float64, c)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, X)
		for i, v := range col {
			if math.IsNaN(v) {
				return errors.NewValueError("OneHotEncoder.Fit", fmt.Sprintf("feature %d row %d is NaN", j, i))
			}
		}
		slices.Sort(col)
		categories[j] = slices.Compact(col)
	}
	e.categories = categories
	e.state.SetDimensions(c, r)
	e.state.SetFitted()
	return nil
}

// Transform returns the indicator matrix. A level unseen during Fit is an error.
func (e *OneHotEncoder) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if err := e.state.CheckFeatures("OneHotEncoder.Transform", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	width := e.outputWidth()
	if width == 0 {
		return nil, errors.NewValueError("OneHotEncoder.Transform", "every feature has a single level; no indicator columns remain")
	}
	out := mat.NewDense(r, width, nil)

	offset := 0
	for j := 0; j < c; j++ {
		levels := e.keptLevels(j)
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			pos, found := slices.BinarySearch(e.categories[j], v)
			if !found {
				return nil, errors.NewValueError("OneHotEncoder.Transform",
					fmt.Sprintf("feature %d has unknown category %v", j, v))
			}
			if e.DropFirst {
				pos--
			}
			if pos >= 0 && pos < len(levels) {
				out.Set(i, offset+pos, 1)
			}
		}
		offset += len(levels)
	}
	return out, nil
}

// FitTransform fits on X and transforms it.
func (e *OneHotEncoder) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := e.Fit(X); err != nil {
		return nil, err
	}
	return e.Transform(X)
}

// Categories returns the fitted levels per input feature.
func (e *OneHotEncoder) Categories() [][]float64 {
	out := make([][]float64, len(e.categories))
	for i, c := range e.categories {
		out[i] = slices.Clone(c)
	}
	return out
}

// FeatureNames returns "<input>_<level>" for every output column.
func (e *OneHotEncoder) FeatureNames(inputNames []string) ([]string, error) {
	if err := e.state.RequireFitted("OneHotEncoder", "FeatureNames"); err != nil {
		return nil, err
	}
	if len(inputNames) != len(e.categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.FeatureNames", len(e.categories), len(inputNames), 1)
	}
	names := make([]string, 0, e.outputWidth())
	for j, in := range inputNames {
		for _, level := range e.keptLevels(j) {
			names = append(names, in+"_"+strconv.FormatFloat(level, 'f', -1, 64))
		}
	}
	return names, nil
}

func (e *OneHotEncoder) keptLevels(j int) []float64 {
	if e.DropFirst && len(e.categories[j]) > 0 {
		return e.categories[j][1:]
	}
	return e.categories[j]
}

func (e *OneHotEncoder) outputWidth() int {
	w := 0
	for j := range e.categories {
		w += len(e.keptLevels(j))
	}
	return w
}

// GetParams returns the encoder parameters.
func (e *OneHotEncoder) GetParams() map[string]interface{} {
	drop := "none"
	if e.DropFirst {
		drop = "first"
	}
	return map[string]interface{}{"drop": drop}
}
