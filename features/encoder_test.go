package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/cleaning"
	"github.com/YuminosukeSato/heartrisk/dataset"
	"github.com/YuminosukeSato/heartrisk/internal/synth"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

func normalizedTable(t *testing.T, mutate func(map[string][]float64)) *dataset.Table {
	t.Helper()
	cols := map[string][]float64{
		dataset.ColAge:                   {40, 50, 60, 45, 55, 65},
		dataset.ColSex:                   {0, 1, 0, 1, 1, 0},
		dataset.ColCP:                    {0, 1, 2, 3, 0, 1},
		dataset.ColThalachh:              {150, 160, 140, 170, 130, 155},
		dataset.ColExng:                  {0, 1, 0, 1, 0, 0},
		dataset.ColSlp:                   {0, 1, 2, 1, 2, 0},
		dataset.ColCaa:                   {0, 1, 2, 3, 4, 0},
		dataset.ColThall:                 {1, 2, 3, 2, 2, 3},
		dataset.ColOutput:                {1, 0, 1, 0, 1, 0},
		cleaning.ColTrtbpsWinsorize:      {120, 130, 140, 125, 135, 145},
		cleaning.ColOldpeakWinsorizeSqrt: {0, 1, 1.2, 0.5, 0.8, 1.4},
	}
	if mutate != nil {
		mutate(cols)
	}
	order := []string{
		dataset.ColAge, dataset.ColSex, dataset.ColCP, dataset.ColThalachh, dataset.ColExng,
		dataset.ColSlp, dataset.ColCaa, dataset.ColThall, dataset.ColOutput,
		cleaning.ColTrtbpsWinsorize, cleaning.ColOldpeakWinsorizeSqrt,
	}
	columns := make([]dataset.Column, 0, len(order))
	for _, name := range order {
		columns = append(columns, dataset.Column{Name: name, Values: cols[name]})
	}
	tbl, err := dataset.NewTable(columns...)
	require.NoError(t, err)
	return tbl
}

func TestEncoderFeatureLayout(t *testing.T) {
	ds, err := NewEncoder().FitTransform(normalizedTable(t, nil))
	require.NoError(t, err)

	want := []string{
		"age", "thalachh", "trtbps_winsorize", "oldpeak_winsorize_sqrt",
		"sex_1", "cp_1", "cp_2", "cp_3", "exng_1", "slp_1", "slp_2",
		"caa_1", "caa_2", "caa_3", "caa_4", "thall_2", "thall_3",
	}
	assert.Equal(t, want, ds.FeatureNames)

	r, c := ds.X.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, len(want), c)
	assert.Equal(t, []float64{1, 0, 1, 0, 1, 0}, ds.Labels())
}

func TestEncoderIndicators(t *testing.T) {
	ds, err := NewEncoder().FitTransform(normalizedTable(t, nil))
	require.NoError(t, err)

	tests := []struct {
		name string
		row  int
		ones []int
	}{
		{"all base levels", 0, nil},
		{"second levels", 1, []int{4, 5, 8, 9, 11, 15}},
		{"caa 4 and thall 2", 4, []int{4, 10, 14, 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for j := 4; j < len(ds.FeatureNames); j++ {
				want := 0.0
				for _, k := range tt.ones {
					if k == j {
						want = 1
					}
				}
				assert.Equal(t, want, ds.X.At(tt.row, j), "column %s", ds.FeatureNames[j])
			}
		})
	}
}

func TestEncoderRobustScaling(t *testing.T) {
	ds, err := NewEncoder().FitTransform(normalizedTable(t, nil))
	require.NoError(t, err)

	// age: median 52.5, IQR 58.75 - 46.25
	age := mat.Col(nil, 0, ds.X)
	assert.InDelta(t, -1.0, age[0], 1e-12)
	assert.InDelta(t, 1.0, age[5], 1e-12)
	assert.InDelta(t, 0.0, (age[1]+age[4])/2, 1e-12)
}

func TestEncoderStandardScaler(t *testing.T) {
	ds, err := NewEncoder(WithScaler("standard")).FitTransform(normalizedTable(t, nil))
	require.NoError(t, err)
	for j := 0; j < 4; j++ {
		col := mat.Col(nil, j, ds.X)
		assert.InDelta(t, 0.0, floats.Sum(col)/float64(len(col)), 1e-12, ds.FeatureNames[j])
	}
}

func TestEncoderErrors(t *testing.T) {
	t.Run("unknown scaler", func(t *testing.T) {
		_, err := NewEncoder(WithScaler("quantile")).FitTransform(normalizedTable(t, nil))
		assert.Error(t, err)
	})

	t.Run("non-binary label", func(t *testing.T) {
		tbl := normalizedTable(t, func(m map[string][]float64) { m[dataset.ColOutput][2] = 2 })
		_, err := NewEncoder().FitTransform(tbl)
		var se *errors.SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 3, se.Row)
		assert.Equal(t, dataset.ColOutput, se.Column)
	})

	t.Run("missing numeric column", func(t *testing.T) {
		tbl, err := normalizedTable(t, nil).Drop(cleaning.ColTrtbpsWinsorize)
		require.NoError(t, err)
		_, err = NewEncoder().FitTransform(tbl)
		var cnf *errors.ColumnNotFoundError
		assert.True(t, errors.As(err, &cnf))
	})

	t.Run("transform before fit", func(t *testing.T) {
		_, err := NewEncoder().Transform(normalizedTable(t, nil))
		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("unseen level", func(t *testing.T) {
		enc := NewEncoder()
		_, err := enc.FitTransform(normalizedTable(t, nil))
		require.NoError(t, err)
		_, err = enc.Transform(normalizedTable(t, func(m map[string][]float64) { m[dataset.ColCP][0] = 7 }))
		var ve *errors.ValueError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("empty", func(t *testing.T) {
		tbl, err := dataset.NewTable()
		require.NoError(t, err)
		_, err = NewEncoder().FitTransform(tbl)
		assert.ErrorIs(t, err, errors.ErrEmptyData)
	})
}

func TestEncoderSynthetic(t *testing.T) {
	raw, err := synth.Table(400, 3)
	require.NoError(t, err)
	norm, err := cleaning.NewNormalizer().FitTransform(raw)
	require.NoError(t, err)

	ds, err := NewEncoder().FitTransform(norm)
	require.NoError(t, err)

	assert.Equal(t, norm.NRows(), ds.NSamples())
	assert.Equal(t, []string{"age", "thalachh", "trtbps_winsorize", "oldpeak_winsorize_sqrt"}, ds.FeatureNames[:4])
	assert.Equal(t, "sex_1", ds.FeatureNames[4])
	assert.NotContains(t, ds.FeatureNames, dataset.ColOutput)
	assert.NotContains(t, ds.FeatureNames, "thall_0")

	r, c := ds.X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.False(t, math.IsNaN(ds.X.At(i, j)) || math.IsInf(ds.X.At(i, j), 0))
		}
	}
}
