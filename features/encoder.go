// Package features turns the normalized patient table into the numeric
// design matrix and label vector the classifiers consume.
package features

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/cleaning"
	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/dataset"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
	"github.com/YuminosukeSato/heartrisk/preprocessing"
)

// Dataset is the encoded design matrix X (n × p), the label column Y (n × 1)
// and the name of every column of X.
type Dataset struct {
	X            *mat.Dense
	Y            *mat.Dense
	FeatureNames []string
}

// NSamples returns the number of rows.
func (d *Dataset) NSamples() int {
	r, _ := d.X.Dims()
	return r
}

// Labels returns Y as a slice.
func (d *Dataset) Labels() []float64 {
	return mat.Col(nil, 0, d.Y)
}

// DefaultCategorical are one-hot encoded when present.
var DefaultCategorical = []string{
	dataset.ColSex, dataset.ColCP, dataset.ColExng, dataset.ColSlp, dataset.ColCaa, dataset.ColThall,
}

// DefaultNumeric are scaled.
var DefaultNumeric = []string{
	dataset.ColAge, dataset.ColThalachh, cleaning.ColTrtbpsWinsorize, cleaning.ColOldpeakWinsorizeSqrt,
}

// Encoder one-hot encodes categorical columns with the first level dropped,
// scales numeric columns, and splits off the target.
type Encoder struct {
	state       *model.StateManager
	categorical []string
	numeric     []string
	target      string
	scalerName  string
	logger      log.Logger

	// fitted
	encoded []string
	onehot  *preprocessing.OneHotEncoder
	scaler  model.Transformer
	names   []string
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithScaler selects "robust" (default), "standard" or "minmax".
func WithScaler(name string) Option {
	return func(e *Encoder) { e.scalerName = name }
}

// WithCategorical overrides the candidate categorical columns.
func WithCategorical(cols ...string) Option {
	return func(e *Encoder) { e.categorical = cols }
}

// WithNumeric overrides the scaled numeric columns.
func WithNumeric(cols ...string) Option {
	return func(e *Encoder) { e.numeric = cols }
}

// NewEncoder creates an encoder.
func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{
		state:       model.NewStateManager(),
		categorical: DefaultCategorical,
		numeric:     DefaultNumeric,
		target:      dataset.ColOutput,
		scalerName:  "robust",
		logger:      log.GetLoggerWithName("features"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FitTransform learns the category levels and scaling, then encodes t.
func (e *Encoder) FitTransform(t *dataset.Table) (*Dataset, error) {
	if t == nil || t.NRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "encode")
	}
	encoded := make([]string, 0, len(e.categorical))
	for _, c := range e.categorical {
		if t.Has(c) && c != e.target {
			encoded = append(encoded, c)
		}
	}
	if len(encoded) == 0 {
		return nil, errors.NewValueError("Encoder.FitTransform", "no categorical columns present")
	}
	onehot := preprocessing.NewOneHotEncoder(true)
	catX, err := columnsMatrix(t, encoded)
	if err != nil {
		return nil, err
	}
	if err := onehot.Fit(catX); err != nil {
		return nil, err
	}
	scaler, err := preprocessing.NewScaler(e.scalerName)
	if err != nil {
		return nil, err
	}
	numX, err := columnsMatrix(t, e.numeric)
	if err != nil {
		return nil, err
	}
	if err := scaler.Fit(numX); err != nil {
		return nil, err
	}

	e.encoded, e.onehot, e.scaler = encoded, onehot, scaler
	e.state.SetFitted()

	ds, err := e.Transform(t)
	if err != nil {
		e.state.Reset()
		return nil, err
	}
	e.state.SetDimensions(len(ds.FeatureNames), ds.NSamples())
	e.logger.Info("features encoded",
		log.SamplesKey, ds.NSamples(),
		log.FeaturesKey, len(ds.FeatureNames),
		"scaler", e.scalerName,
	)
	return ds, nil
}

// Transform encodes t with the fitted levels and scaling.
func (e *Encoder) Transform(t *dataset.Table) (*Dataset, error) {
	if err := e.state.RequireFitted("Encoder", "Transform"); err != nil {
		return nil, err
	}
	y, err := t.Col(e.target)
	if err != nil {
		return nil, err
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, errors.NewSchemaError(i+1, e.target, "label must be 0 or 1")
		}
	}

	// pandas get_dummies order: untouched columns first, dummies after.
	var passthrough []string
	for _, name := range t.Names() {
		if name != e.target && !slices.Contains(e.encoded, name) {
			passthrough = append(passthrough, name)
		}
	}

	passX, err := columnsMatrix(t, passthrough)
	if err != nil {
		return nil, err
	}
	numX, err := columnsMatrix(t, e.numeric)
	if err != nil {
		return nil, err
	}
	scaled, err := e.scaler.Transform(numX)
	if err != nil {
		return nil, err
	}
	for k, name := range e.numeric {
		j := slices.Index(passthrough, name)
		if j < 0 {
			return nil, errors.NewValueError("Encoder.Transform", fmt.Sprintf("column %q is both scaled and one-hot encoded", name))
		}
		for i := 0; i < t.NRows(); i++ {
			passX.Set(i, j, scaled.At(i, k))
		}
	}

	catX, err := columnsMatrix(t, e.encoded)
	if err != nil {
		return nil, err
	}
	dummies, err := e.onehot.Transform(catX)
	if err != nil {
		return nil, err
	}
	dummyNames, err := e.onehot.FeatureNames(e.encoded)
	if err != nil {
		return nil, err
	}

	n := t.NRows()
	_, pc := passX.Dims()
	_, dc := dummies.Dims()
	X := mat.NewDense(n, pc+dc, nil)
	X.Slice(0, n, 0, pc).(*mat.Dense).Copy(passX)
	X.Slice(0, n, pc, pc+dc).(*mat.Dense).Copy(dummies)

	if err := errors.CheckMatrix("encode", X, n, pc+dc, 0); err != nil {
		return nil, err
	}

	names := append(slices.Clone(passthrough), dummyNames...)
	e.names = names
	return &Dataset{X: X, Y: mat.NewDense(n, 1, y), FeatureNames: names}, nil
}

// FeatureNames returns the column names of the last encoded X.
func (e *Encoder) FeatureNames() []string { return slices.Clone(e.names) }

func columnsMatrix(t *dataset.Table, names []string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, errors.NewValueError("encode", "no columns selected")
	}
	m := mat.NewDense(t.NRows(), len(names), nil)
	for j, name := range names {
		vals, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		m.SetCol(j, vals)
	}
	return m, nil
}
