// Package harness splits the encoded dataset, fits every compared classifier
// and evaluates it with accuracy, stratified cross-validation and ROC.
package harness

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/features"
	"github.com/YuminosukeSato/heartrisk/metrics"
	"github.com/YuminosukeSato/heartrisk/model_selection"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
	"github.com/YuminosukeSato/heartrisk/visualize"
)

// Partition selects the side of the split cross-validation runs on.
type Partition string

// CV partitions.
const (
	PartitionTest  Partition = "test"
	PartitionTrain Partition = "train"
)

// ParsePartition accepts "test" or "train".
func ParsePartition(s string) (Partition, error) {
	switch p := Partition(s); p {
	case PartitionTest, PartitionTrain:
		return p, nil
	default:
		return "", errors.NewValidationError("cv_partition", "must be test or train", s)
	}
}

// ModelResult is the evaluation of one classifier on the test partition.
type ModelResult struct {
	Name       string            `yaml:"name"`
	Accuracy   float64           `yaml:"accuracy"`
	CVAccuracy float64           `yaml:"cv_accuracy"`
	CVStd      float64           `yaml:"cv_std"`
	CVScores   []float64         `yaml:"cv_scores"`
	ROC        *metrics.ROC      `yaml:"roc"`
	Confusion  metrics.Confusion `yaml:"confusion"`
	Duration   time.Duration     `yaml:"duration"`

	// LogLoss is nil for models without probabilities.
	LogLoss *float64 `yaml:"log_loss,omitempty"`
}

// Result is the outcome of one harness run.
type Result struct {
	TrainSize   int           `yaml:"train_size"`
	TestSize    int           `yaml:"test_size"`
	CVPartition Partition     `yaml:"cv_partition"`
	CVFolds     int           `yaml:"cv_folds"`
	Models      []ModelResult `yaml:"models"`
	Charts      []string      `yaml:"charts,omitempty"`
}

// Model returns the result for the named model.
func (r *Result) Model(name string) (ModelResult, bool) {
	for _, m := range r.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelResult{}, false
}

// Harness runs the split and train loop.
type Harness struct {
	models      []ModelSpec
	testSize    float64
	splitSeed   uint64
	cvFolds     int
	cvPartition Partition
	nJobs       int
	chartsDir   string
	logger      log.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithModels replaces the default four classifiers.
func WithModels(models ...ModelSpec) Option {
	return func(h *Harness) { h.models = models }
}

// WithTestSize sets the test fraction of the split.
func WithTestSize(f float64) Option {
	return func(h *Harness) { h.testSize = f }
}

// WithSplitSeed seeds the train/test shuffle.
func WithSplitSeed(seed uint64) Option {
	return func(h *Harness) { h.splitSeed = seed }
}

// WithCVFolds sets the number of stratified folds.
func WithCVFolds(k int) Option {
	return func(h *Harness) { h.cvFolds = k }
}

// WithCVPartition selects the partition cross-validation runs on.
func WithCVPartition(p Partition) Option {
	return func(h *Harness) { h.cvPartition = p }
}

// WithNJobs bounds fold-level parallelism; <= 0 means one per CPU.
func WithNJobs(n int) Option {
	return func(h *Harness) { h.nJobs = n }
}

// WithChartsDir enables ROC chart output into dir.
func WithChartsDir(dir string) Option {
	return func(h *Harness) { h.chartsDir = dir }
}

// WithLogger overrides the harness logger.
func WithLogger(l log.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a harness with the notebook defaults: a 20% test split seeded
// with 3, the four default models seeded with 5 and 10-fold CV on the test
// partition.
func New(opts ...Option) *Harness {
	h := &Harness{
		testSize:    0.2,
		splitSeed:   3,
		cvFolds:     10,
		cvPartition: PartitionTest,
		logger:      log.GetLoggerWithName("harness"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.models == nil {
		h.models = DefaultModels(5, h.nJobs)
	}
	return h
}

// Run evaluates every model on ds. The first failing model aborts the run.
func (h *Harness) Run(ctx context.Context, ds *features.Dataset) (*Result, error) {
	if ds == nil || ds.X == nil || ds.Y == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "harness.Run")
	}
	if len(h.models) == 0 {
		return nil, errors.NewValueError("harness.Run", "no models configured")
	}
	split, err := model_selection.TrainTestSplit(ds.X, ds.Y,
		model_selection.WithTestSize(h.testSize),
		model_selection.WithRandomState(h.splitSeed),
	)
	if err != nil {
		return nil, err
	}
	res := &Result{
		TrainSize:   len(split.TrainIndex),
		TestSize:    len(split.TestIndex),
		CVPartition: h.cvPartition,
		CVFolds:     h.cvFolds,
	}
	h.logger.Info("data split",
		"train", res.TrainSize,
		"test", res.TestSize,
		log.RandomSeedKey, h.splitSeed,
	)
	if h.cvPartition == PartitionTest {
		errors.Warn(errors.NewMethodologyWarning("cross_validation",
			"folds are drawn from the test partition, so CV accuracy reuses the held-out rows"))
	}

	curves := make([]visualize.Curve, 0, len(h.models))
	for _, spec := range h.models {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mr, err := h.evaluate(ctx, spec, split)
		if err != nil {
			return nil, errors.NewModelError("harness.Run", spec.Name, err)
		}
		res.Models = append(res.Models, mr)
		curves = append(curves, visualize.Curve{Name: mr.Name, ROC: mr.ROC})
	}

	if h.chartsDir != "" {
		paths, err := visualize.ROCCurves(h.chartsDir, curves)
		if err != nil {
			return nil, err
		}
		res.Charts = paths
	}
	return res, nil
}

func (h *Harness) evaluate(ctx context.Context, spec ModelSpec, split *model_selection.Split) (ModelResult, error) {
	start := time.Now()
	mr := ModelResult{Name: spec.Name}
	logger := h.logger.With(log.ModelNameKey, spec.Name)

	est := spec.New()
	if err := est.Fit(split.XTrain, split.YTrain); err != nil {
		return mr, err
	}
	pred, err := est.Predict(split.XTest)
	if err != nil {
		return mr, err
	}
	yTrue := mat.VecDenseCopyOf(split.YTest.ColView(0))
	yPred := mat.NewVecDense(len(split.TestIndex), mat.Col(nil, 0, pred))
	if mr.Accuracy, err = metrics.Accuracy(yTrue, yPred); err != nil {
		return mr, err
	}
	if mr.Confusion, err = metrics.ConfusionMatrix(yTrue, yPred); err != nil {
		return mr, err
	}

	cvX, cvY := split.XTest, split.YTest
	if h.cvPartition == PartitionTrain {
		cvX, cvY = split.XTrain, split.YTrain
	}
	cv, err := model_selection.CrossValScore(ctx, model_selection.EstimatorFactory(spec.New), cvX, cvY,
		model_selection.NewStratifiedKFold(h.cvFolds, false, 0),
		model_selection.WithNJobs(h.nJobs),
	)
	if err != nil {
		return mr, errors.Wrap(err, "cross-validation")
	}
	mr.CVScores = cv.Scores
	mr.CVAccuracy = cv.Mean()
	mr.CVStd = cv.Std()

	scores, proba, err := positiveScores(est, split.XTest)
	if err != nil {
		return mr, err
	}
	if mr.ROC, err = metrics.ROCCurve(mat.Col(nil, 0, split.YTest), scores); err != nil {
		return mr, err
	}
	if proba {
		loss, err := metrics.BinaryLogLoss(yTrue, mat.NewVecDense(len(scores), scores))
		if err != nil {
			return mr, err
		}
		mr.LogLoss = &loss
	}
	mr.Duration = time.Since(start)

	logger.Info("model evaluated",
		log.AccuracyKey, mr.Accuracy,
		log.CVAccuracyKey, mr.CVAccuracy,
		log.AUCKey, mr.ROC.AUC,
		log.DurationMsKey, mr.Duration.Milliseconds(),
	)
	return mr, nil
}

// positiveScores returns the score of the positive class for every row: the
// class-1 probability when the model has one, the decision function
// otherwise. proba reports which it was.
func positiveScores(est model.Classifier, X mat.Matrix) (scores []float64, proba bool, err error) {
	if pc, ok := est.(model.ProbabilisticClassifier); ok {
		p, err := pc.PredictProba(X)
		if err != nil {
			return nil, false, err
		}
		classes := pc.Classes()
		if len(classes) != 2 {
			return nil, false, errors.NewValueError("positiveScores",
				fmt.Sprintf("ROC needs a binary model, got %d classes", len(classes)))
		}
		return mat.Col(nil, 1, p), true, nil
	}
	if df, ok := est.(model.DecisionFunctioner); ok {
		d, err := df.DecisionFunction(X)
		if err != nil {
			return nil, false, err
		}
		return mat.Col(nil, 0, d), false, nil
	}
	return nil, false, errors.Wrapf(errors.ErrNotImplemented, "%T exposes neither probabilities nor a decision function", est)
}
