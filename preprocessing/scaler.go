// Package preprocessing provides the scalers, encoders and robust statistics
// used to prepare the patient table for the classifiers.
package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// zeroScaleTolerance is the spread below which a feature is treated as
// constant and its scale set to 1.
const zeroScaleTolerance = 1e-8

// affineScaler holds per-feature center and scale: x' = (x − center) / scale.
type affineScaler struct {
	state  *model.StateManager
	name   string
	center []float64
	scale  []float64
}

func newAffineScaler(name string) affineScaler {
	return affineScaler{state: model.NewStateManager(), name: name}
}

func (a *affineScaler) fit(X mat.Matrix, stats func(col []float64) (center, scale float64, err error)) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError(a.name+".Fit", "empty data", errors.ErrEmptyData)
	}
	center := make([]float64, c)
	scale := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		ctr, s, err := stats(col)
		if err != nil {
			return errors.Wrapf(err, "%s.Fit: feature %d", a.name, j)
		}
		if math.Abs(s) < zeroScaleTolerance {
			s = 1.0
		}
		center[j], scale[j] = ctr, s
	}
	a.center, a.scale = center, scale
	a.state.SetDimensions(c, r)
	a.state.SetFitted()
	return nil
}

func (a *affineScaler) transform(X mat.Matrix, inverse bool) (mat.Matrix, error) {
	method := "Transform"
	if inverse {
		method = "InverseTransform"
	}
	if err := a.state.RequireFitted(a.name, method); err != nil {
		return nil, err
	}
	if err := a.state.CheckFeatures(a.name+"."+method, X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if inverse {
			return v*a.scale[j] + a.center[j]
		}
		return (v - a.center[j]) / a.scale[j]
	}, X)
	return result, nil
}

// IsFitted reports whether Fit has been called.
func (a *affineScaler) IsFitted() bool { return a.state.IsFitted() }

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1（母標準偏差）に変換する
type StandardScaler struct {
	affineScaler

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{affineScaler: newAffineScaler("StandardScaler"), WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	return s.fit(X, func(col []float64) (float64, float64, error) {
		mean, std := stat.PopMeanStdDev(col, nil)
		if !s.WithMean {
			mean = 0
		}
		if !s.WithStd {
			std = 1
		}
		return mean, std, nil
	})
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) { return s.transform(X, false) }

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.transform(X, true)
}

// Mean returns the fitted per-feature means.
func (s *StandardScaler) Mean() []float64 { return append([]float64(nil), s.center...) }

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{"with_mean": s.WithMean, "with_std": s.WithStd}
}

func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// データを指定した範囲（デフォルト[0,1]）にスケーリングする
type MinMaxScaler struct {
	affineScaler

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{affineScaler: newAffineScaler("MinMaxScaler"), FeatureRange: featureRange}
}

// NewMinMaxScalerDefault はデフォルト設定([0,1]範囲)でMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は訓練データから最小値・最大値を計算する
// (x − min)/(max − min)·(hi − lo) + lo is expressed as an affine map.
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	if hi <= lo {
		return errors.NewValidationError("feature_range", "max must exceed min", m.FeatureRange)
	}
	return m.fit(X, func(col []float64) (float64, float64, error) {
		dataMin, dataMax := floats.Min(col), floats.Max(col)
		dataRange := dataMax - dataMin
		if math.Abs(dataRange) < zeroScaleTolerance {
			dataRange = 1.0
		}
		scale := dataRange / (hi - lo)
		return dataMin - lo*scale, scale, nil
	})
}

// Transform は学習済みの統計情報を使ってデータをスケーリングする
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) { return m.transform(X, false) }

// FitTransform は訓練データで学習し、同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return m.transform(X, true)
}

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{"feature_range": m.FeatureRange}
}

func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])", m.FeatureRange[0], m.FeatureRange[1])
}

// RobustScaler centers each feature on its median and divides by the
// interquartile range, so outliers do not dominate the scale. A zero IQR
// becomes 1.
type RobustScaler struct {
	affineScaler

	// QuantileRange is the (low, high) percentile pair defining the spread.
	QuantileRange [2]float64
}

// NewRobustScaler creates a RobustScaler with the 25–75 quantile range.
func NewRobustScaler() *RobustScaler {
	return &RobustScaler{affineScaler: newAffineScaler("RobustScaler"), QuantileRange: [2]float64{25, 75}}
}

// Fit computes medians and interquartile ranges.
func (r *RobustScaler) Fit(X mat.Matrix) error {
	lo, hi := r.QuantileRange[0], r.QuantileRange[1]
	if lo < 0 || hi > 100 || lo >= hi {
		return errors.NewValidationError("quantile_range", "must satisfy 0 <= low < high <= 100", r.QuantileRange)
	}
	return r.fit(X, func(col []float64) (float64, float64, error) {
		med, err := Median(col)
		if err != nil {
			return 0, 0, err
		}
		q1, err := Quantile(col, lo/100)
		if err != nil {
			return 0, 0, err
		}
		q3, err := Quantile(col, hi/100)
		if err != nil {
			return 0, 0, err
		}
		return med, q3 - q1, nil
	})
}

// Transform applies (x − median) / IQR.
func (r *RobustScaler) Transform(X mat.Matrix) (mat.Matrix, error) { return r.transform(X, false) }

// FitTransform fits on X and transforms it.
func (r *RobustScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := r.Fit(X); err != nil {
		return nil, err
	}
	return r.Transform(X)
}

// InverseTransform maps scaled values back.
func (r *RobustScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return r.transform(X, true)
}

// Center returns the fitted medians.
func (r *RobustScaler) Center() []float64 { return append([]float64(nil), r.center...) }

// Scale returns the fitted interquartile ranges.
func (r *RobustScaler) Scale() []float64 { return append([]float64(nil), r.scale...) }

// GetParams returns the scaler parameters.
func (r *RobustScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{"quantile_range": r.QuantileRange, "with_centering": true, "with_scaling": true}
}

func (r *RobustScaler) String() string {
	return fmt.Sprintf("RobustScaler(quantile_range=(%.0f, %.0f))", r.QuantileRange[0], r.QuantileRange[1])
}

// NewScaler builds a scaler by name: "robust", "standard" or "minmax".
func NewScaler(name string) (model.Transformer, error) {
	switch name {
	case "robust", "":
		return NewRobustScaler(), nil
	case "standard":
		return NewStandardScalerDefault(), nil
	case "minmax":
		return NewMinMaxScalerDefault(), nil
	default:
		return nil, errors.NewValidationError("scaler", "must be robust, standard or minmax", name)
	}
}
