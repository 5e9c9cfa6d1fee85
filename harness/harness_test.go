package harness

import (
	"context"
	"math"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/cleaning"
	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/features"
	"github.com/YuminosukeSato/heartrisk/internal/synth"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
)

func encodedSynthetic(t *testing.T, n int) *features.Dataset {
	t.Helper()
	tbl, err := synth.Table(n, 42)
	require.NoError(t, err)
	clean, err := cleaning.NewNormalizer().FitTransform(tbl)
	require.NoError(t, err)
	ds, err := features.NewEncoder().FitTransform(clean)
	require.NoError(t, err)
	return ds
}

// collectWarnings routes errors.Warn into a slice for the rest of the test.
func collectWarnings(t *testing.T) func() []error {
	t.Helper()
	var mu sync.Mutex
	var got []error
	prev := errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, w)
	})
	t.Cleanup(func() { errors.SetWarningHandler(prev) })
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), got...)
	}
}

func methodologyWarnings(ws []error) int {
	n := 0
	for _, w := range ws {
		var mw *errors.MethodologyWarning
		if errors.As(w, &mw) {
			n++
		}
	}
	return n
}

func TestHarnessRunSynthetic(t *testing.T) {
	ds := encodedSynthetic(t, 300)
	warnings := collectWarnings(t)
	logs, restore := log.CaptureLogs(log.LevelInfo)
	defer restore()

	res, err := New(WithNJobs(2)).Run(context.Background(), ds)
	require.NoError(t, err)

	n := ds.NSamples()
	assert.Equal(t, n, res.TrainSize+res.TestSize)
	assert.Equal(t, int(math.Ceil(0.2*float64(n))), res.TestSize)
	assert.Equal(t, PartitionTest, res.CVPartition)
	assert.Equal(t, 1, methodologyWarnings(warnings()))

	require.Len(t, res.Models, 4)
	names := []string{LogisticRegression, DecisionTree, SVC, RandomForest}
	for i, mr := range res.Models {
		assert.Equal(t, names[i], mr.Name)
		assert.Greater(t, mr.Accuracy, 0.6, "%s should beat chance", mr.Name)
		assert.LessOrEqual(t, mr.Accuracy, 1.0)
		assert.Len(t, mr.CVScores, 10)
		assert.InDelta(t, 0.5, mr.ROC.AUC, 0.5)
		c := mr.Confusion
		assert.Equal(t, res.TestSize, c.TN+c.FP+c.FN+c.TP)
		assert.InDelta(t, float64(c.TN+c.TP)/float64(res.TestSize), mr.Accuracy, 1e-12)
		if mr.Name == SVC {
			assert.Nil(t, mr.LogLoss)
		} else {
			require.NotNil(t, mr.LogLoss)
			assert.Greater(t, *mr.LogLoss, 0.0)
		}
	}
	for _, name := range []string{LogisticRegression, RandomForest} {
		mr, ok := res.Model(name)
		require.True(t, ok)
		assert.Greater(t, mr.ROC.AUC, 0.75)
	}
	assert.True(t, logs.ContainsMessage("model evaluated"))
	assert.True(t, logs.ContainsMessage("data split"))
}

func TestHarnessDeterministic(t *testing.T) {
	ds := encodedSynthetic(t, 200)
	collectWarnings(t)

	a, err := New(WithNJobs(1)).Run(context.Background(), ds)
	require.NoError(t, err)
	b, err := New(WithNJobs(4)).Run(context.Background(), ds)
	require.NoError(t, err)
	for i := range a.Models {
		assert.Equal(t, a.Models[i].Accuracy, b.Models[i].Accuracy, a.Models[i].Name)
		assert.Equal(t, a.Models[i].CVScores, b.Models[i].CVScores, a.Models[i].Name)
	}
}

func TestHarnessTrainPartitionAndCharts(t *testing.T) {
	ds := encodedSynthetic(t, 200)
	warnings := collectWarnings(t)
	dir := t.TempDir()

	res, err := New(
		WithCVPartition(PartitionTrain),
		WithCVFolds(5),
		WithChartsDir(dir),
		WithModels(DefaultModels(5, 1)[:2]...),
	).Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Zero(t, methodologyWarnings(warnings()))
	require.Len(t, res.Models, 2)
	assert.Len(t, res.Models[0].CVScores, 5)
	require.Len(t, res.Charts, 3)
	for _, p := range res.Charts {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

// brokenModel fails on Fit.
type brokenModel struct{}

func (brokenModel) Fit(X, y mat.Matrix) error { return errors.New("cannot fit") }
func (brokenModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	return nil, errors.ErrNotImplemented
}
func (brokenModel) Score(X, y mat.Matrix) (float64, error) { return 0, errors.ErrNotImplemented }

func TestHarnessErrors(t *testing.T) {
	collectWarnings(t)
	ds := encodedSynthetic(t, 120)

	_, err := New(WithModels(ModelSpec{Name: "broken", New: func() model.Classifier { return brokenModel{} }})).
		Run(context.Background(), ds)
	var me *errors.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "broken", me.Kind)
	assert.ErrorContains(t, err, "cannot fit")

	_, err = New().Run(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Run(ctx, ds)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = New(WithTestSize(0)).Run(context.Background(), ds)
	assert.Error(t, err)
}

func TestParsePartition(t *testing.T) {
	p, err := ParsePartition("train")
	require.NoError(t, err)
	assert.Equal(t, PartitionTrain, p)

	_, err = ParsePartition("holdout")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}
