package model_selection

import (
	"context"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/core/parallel"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// EstimatorFactory builds a fresh, unfitted estimator.
type EstimatorFactory func() model.Classifier

// CVResult holds the per-fold test scores of a cross-validation run.
type CVResult struct {
	Scores []float64
}

// Mean returns the mean fold score.
func (r CVResult) Mean() float64 { return stat.Mean(r.Scores, nil) }

// Std returns the population standard deviation of the fold scores.
func (r CVResult) Std() float64 {
	_, std := stat.PopMeanStdDev(r.Scores, nil)
	return std
}

type cvConfig struct {
	nJobs  int
	scorer func(est model.Classifier, X, y mat.Matrix) (float64, error)
}

// CVOption configures CrossValScore.
type CVOption func(*cvConfig)

// WithNJobs sets how many folds are fitted concurrently; <= 0 means one
// per CPU.
func WithNJobs(n int) CVOption {
	return func(c *cvConfig) { c.nJobs = n }
}

// WithScorer replaces the default scorer, the estimator's Score (accuracy).
func WithScorer(fn func(est model.Classifier, X, y mat.Matrix) (float64, error)) CVOption {
	return func(c *cvConfig) { c.scorer = fn }
}

// CrossValScore fits a new estimator from factory on the train side of every
// fold and scores it on the test side. Scores are in fold order regardless of
// scheduling.
func CrossValScore(ctx context.Context, factory EstimatorFactory, X, y mat.Matrix, cv Splitter, opts ...CVOption) (CVResult, error) {
	cfg := cvConfig{
		scorer: func(est model.Classifier, X, y mat.Matrix) (float64, error) { return est.Score(X, y) },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	folds, err := cv.Split(X, y)
	if err != nil {
		return CVResult{}, err
	}
	scores := make([]float64, len(folds))
	err = parallel.For(ctx, len(folds), cfg.nJobs, func(_ context.Context, f int) (err error) {
		defer errors.Recover(&err, "CrossValScore")
		fold := folds[f]
		est := factory()
		if err := est.Fit(SelectRows(X, fold.TrainIndices), SelectRows(y, fold.TrainIndices)); err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		score, err := cfg.scorer(est, SelectRows(X, fold.TestIndices), SelectRows(y, fold.TestIndices))
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		scores[f] = score
		return nil
	})
	if err != nil {
		return CVResult{}, err
	}
	return CVResult{Scores: scores}, nil
}
