package cleaning

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/heartrisk/dataset"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
	"github.com/YuminosukeSato/heartrisk/preprocessing"
)

// Stage is one step of the normalizer. Fit learns parameters from the table
// it will transform; parameters already recorded in the table's Attrs are
// adopted instead of refitted. Transform never mutates its input.
type Stage interface {
	Name() string
	Fit(t *dataset.Table) error
	Transform(t *dataset.Table) (*dataset.Table, error)
}

func attrKey(stage, param string) string { return stage + "." + param }

// SentinelStage replaces a sentinel code with NaN.
type SentinelStage struct {
	Column   string
	Sentinel float64
}

func (s *SentinelStage) Name() string { return "replace_sentinel" }

func (s *SentinelStage) Fit(*dataset.Table) error { return nil }

func (s *SentinelStage) Transform(t *dataset.Table) (*dataset.Table, error) {
	return mapColumn(t, s.Name(), s.Column, func(v float64) float64 {
		if v == s.Sentinel {
			return math.NaN()
		}
		return v
	})
}

// ImputeStage fills NaN in Column with a fixed Value.
type ImputeStage struct {
	Column string
	Value  float64
}

func (s *ImputeStage) Name() string { return "impute" }

func (s *ImputeStage) Fit(*dataset.Table) error { return nil }

func (s *ImputeStage) Transform(t *dataset.Table) (*dataset.Table, error) {
	return mapColumn(t, s.Name(), s.Column, func(v float64) float64 {
		if math.IsNaN(v) {
			return s.Value
		}
		return v
	})
}

// DropStage removes columns judged uninformative.
type DropStage struct {
	Columns []string
}

func (s *DropStage) Name() string { return "drop_low_correlation" }

func (s *DropStage) Fit(*dataset.Table) error { return nil }

func (s *DropStage) Transform(t *dataset.Table) (*dataset.Table, error) {
	if _, done := t.Attr(attrKey(s.Name(), "applied")); done && !anyPresent(t, s.Columns) {
		return t, nil
	}
	out, err := t.Drop(s.Columns...)
	if err != nil {
		return nil, errors.Wrap(err, s.Name())
	}
	return out.WithAttr(attrKey(s.Name(), "applied"), 1), nil
}

// WinsorizeStage caps the upper tail of Column at the rank of Cutoff and
// writes the result to Output, dropping Column.
type WinsorizeStage struct {
	StageName string
	Column    string
	Output    string
	Cutoff    float64

	upper  float64
	limit  float64
	fitted bool
}

func (s *WinsorizeStage) Name() string { return s.StageName }

// Fit computes the upper clamp value, p = percentileofscore(x, Cutoff)/100
// and limit 1 − p, unless the table already records one.
func (s *WinsorizeStage) Fit(t *dataset.Table) error {
	if upper, ok := t.Attr(attrKey(s.Name(), "upper")); ok {
		s.upper = upper
		s.limit, _ = t.Attr(attrKey(s.Name(), "limit"))
		s.fitted = true
		return nil
	}
	if s.done(t) {
		return nil
	}
	x, err := t.Col(s.Column)
	if err != nil {
		return errors.Wrap(err, s.Name())
	}
	res, limit, err := preprocessing.WinsorizeAt(x, s.Cutoff)
	if err != nil {
		return errors.Wrap(err, s.Name())
	}
	s.upper, s.limit, s.fitted = res.Upper, limit, true
	return nil
}

// Transform clamps values above the fitted upper bound. On the fitting
// table this reproduces the rank-based winsorization exactly.
func (s *WinsorizeStage) Transform(t *dataset.Table) (*dataset.Table, error) {
	if s.done(t) {
		return t, nil
	}
	if !s.fitted {
		return nil, errors.NewNotFittedError(s.Name(), "Transform")
	}
	col, err := t.Column(s.Column)
	if err != nil {
		return nil, errors.Wrap(err, s.Name())
	}
	clipped := preprocessing.Clip(col.Values, math.Inf(-1), s.upper)
	out, err := t.WithColumn(dataset.Column{Name: s.Output, Kind: dataset.KindNumeric, Values: clipped})
	if err != nil {
		return nil, err
	}
	if out, err = out.Drop(s.Column); err != nil {
		return nil, err
	}
	return out.
		WithAttr(attrKey(s.Name(), "upper"), s.upper).
		WithAttr(attrKey(s.Name(), "limit"), s.limit), nil
}

func (s *WinsorizeStage) done(t *dataset.Table) bool {
	return t.Has(s.Output) && !t.Has(s.Column)
}

// Params returns the fitted clamp value and tail limit.
func (s *WinsorizeStage) Params() (upper, limit float64) { return s.upper, s.limit }

// FenceStage removes rows whose Column value lies strictly outside the IQR fence.
type FenceStage struct {
	Column string
	Mode   preprocessing.FenceMode
	K      float64

	fence  preprocessing.Fence
	fitted bool
}

func (s *FenceStage) Name() string { return fmt.Sprintf("remove_%s_outliers", s.Column) }

// Fit computes the fence unless the table already records one.
func (s *FenceStage) Fit(t *dataset.Table) error {
	lower, okL := t.Attr(attrKey(s.Name(), "lower"))
	upper, okU := t.Attr(attrKey(s.Name(), "upper"))
	if okL && okU {
		s.fence = preprocessing.Fence{Lower: lower, Upper: upper}
		s.fitted = true
		return nil
	}
	x, err := t.Col(s.Column)
	if err != nil {
		return errors.Wrap(err, s.Name())
	}
	if s.fence, err = preprocessing.IQRFence(x, s.Mode, s.K); err != nil {
		return errors.Wrap(err, s.Name())
	}
	s.fitted = true
	return nil
}

func (s *FenceStage) Transform(t *dataset.Table) (*dataset.Table, error) {
	if !s.fitted {
		return nil, errors.NewNotFittedError(s.Name(), "Transform")
	}
	x, err := t.Col(s.Column)
	if err != nil {
		return nil, errors.Wrap(err, s.Name())
	}
	out := t.FilterRows(func(i int) bool { return s.fence.Contains(x[i]) })
	if out.NRows() == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "%s removed every row", s.Name())
	}
	return out.
		WithAttr(attrKey(s.Name(), "lower"), s.fence.Lower).
		WithAttr(attrKey(s.Name(), "upper"), s.fence.Upper), nil
}

// Fence returns the fitted fence.
func (s *FenceStage) Fence() preprocessing.Fence { return s.fence }

// SqrtStage replaces Column with its square root under Output. The log
// variant is only measured, never kept.
type SqrtStage struct {
	StageName string
	Column    string
	Output    string

	skew map[string]float64
}

func (s *SqrtStage) Name() string { return s.StageName }

func (s *SqrtStage) Fit(*dataset.Table) error { return nil }

func (s *SqrtStage) Transform(t *dataset.Table) (*dataset.Table, error) {
	if t.Has(s.Output) && !t.Has(s.Column) {
		return t, nil
	}
	x, err := t.Col(s.Column)
	if err != nil {
		return nil, errors.Wrap(err, s.Name())
	}
	sqrtX := make([]float64, len(x))
	logX := make([]float64, len(x))
	for i, v := range x {
		if v < 0 {
			return nil, errors.NewValueError(s.Name(), fmt.Sprintf("row %d: negative value %v", i, v))
		}
		sqrtX[i] = math.Sqrt(v)
		logX[i] = math.Log(v)
	}
	s.skew = map[string]float64{
		s.Column:          dataset.SampleSkewness(x),
		s.Column + "_log": skewOrNaN(logX),
		s.Output:          dataset.SampleSkewness(sqrtX),
	}

	out, err := t.WithColumn(dataset.Column{Name: s.Output, Kind: dataset.KindNumeric, Values: sqrtX})
	if err != nil {
		return nil, err
	}
	return out.Drop(s.Column)
}

// Skewness returns the skewness of the raw, log and sqrt variants measured
// during the last Transform that did work.
func (s *SqrtStage) Skewness() map[string]float64 { return s.skew }

// skewOrNaN follows pandas: any infinite value makes the skewness undefined.
func skewOrNaN(x []float64) float64 {
	for _, v := range x {
		if math.IsInf(v, 0) {
			return math.NaN()
		}
	}
	return dataset.SampleSkewness(x)
}

func mapColumn(t *dataset.Table, stage, name string, fn func(float64) float64) (*dataset.Table, error) {
	col, err := t.Column(name)
	if err != nil {
		return nil, errors.Wrap(err, stage)
	}
	for i, v := range col.Values {
		col.Values[i] = fn(v)
	}
	return t.WithColumn(col)
}

func anyPresent(t *dataset.Table, names []string) bool {
	for _, n := range names {
		if t.Has(n) {
			return true
		}
	}
	return false
}

// stageFields returns the fitted parameters worth logging for a stage.
func stageFields(s Stage) []any {
	switch st := s.(type) {
	case *WinsorizeStage:
		return []any{log.ThresholdKey, st.upper, "limit", st.limit}
	case *FenceStage:
		return []any{"lower", st.fence.Lower, "upper", st.fence.Upper}
	default:
		return nil
	}
}
