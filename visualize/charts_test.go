package visualize

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/heartrisk/dataset"
	"github.com/YuminosukeSato/heartrisk/internal/synth"
	"github.com/YuminosukeSato/heartrisk/metrics"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func requirePNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", path)
}

func TestROCCurves(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	y := []float64{0, 0, 1, 1, 0, 1}
	good, err := metrics.ROCCurve(y, []float64{0.1, 0.3, 0.8, 0.7, 0.2, 0.9})
	require.NoError(t, err)
	weak, err := metrics.ROCCurve(y, []float64{0.6, 0.3, 0.4, 0.7, 0.5, 0.2})
	require.NoError(t, err)

	paths, err := ROCCurves(dir, []Curve{
		{Name: "Logistic Regression", ROC: good},
		{Name: "SVC", ROC: weak},
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "roc_logistic_regression.png"),
		filepath.Join(dir, "roc_svc.png"),
		filepath.Join(dir, "roc_all.png"),
	}, paths)
	for _, p := range paths {
		requirePNG(t, p)
	}
}

func TestROCCurvesErrors(t *testing.T) {
	_, err := ROCCurves(t.TempDir(), nil)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))

	_, err = ROCCurves(t.TempDir(), []Curve{{Name: "broken"}})
	assert.Error(t, err)
}

func TestHistogramsAndHeatmap(t *testing.T) {
	tbl, err := synth.Table(120, 1)
	require.NoError(t, err)
	dir := t.TempDir()

	cols := []string{dataset.ColAge, dataset.ColTrtbps, dataset.ColOldpeak}
	paths, err := Histograms(dir, tbl, cols...)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		requirePNG(t, p)
	}

	corr, err := dataset.Correlation(tbl, cols...)
	require.NoError(t, err)
	heat := filepath.Join(dir, "correlation.png")
	require.NoError(t, CorrelationHeatmap(heat, cols, corr))
	requirePNG(t, heat)

	err = CorrelationHeatmap(heat, cols[:2], corr)
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = Histograms(dir, tbl, "missing")
	var ce *errors.ColumnNotFoundError
	assert.True(t, errors.As(err, &ce))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "random_forest", slug("Random Forest"))
	assert.Equal(t, "trtbps_winsorize", slug("trtbps_winsorize"))
}
