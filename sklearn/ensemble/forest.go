// Package ensemble provides a random forest classifier built from
// sklearn/tree decision trees.
package ensemble

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/core/parallel"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
	"github.com/YuminosukeSato/heartrisk/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of decision trees
// grown on bootstrap samples with a random feature subset per split.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "sqrt", "log2" or "all"
	bootstrap       bool
	randomState     uint64
	nJobs           int // <= 0 means one worker per CPU

	// Fitted
	trees        []*tree.DecisionTreeClassifier
	classes_     []int
	importances_ []float64
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(c string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = c }
}

// WithMaxDepth limits every tree; 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = d }
}

// WithMinSamplesLeaf sets the minimum leaf size of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures selects "sqrt", "log2" or "all".
func WithMaxFeatures(m string) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = m }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRandomState seeds the per-tree seeds.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs sets the number of trees grown concurrently.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// NewRandomForestClassifier creates a forest with scikit-learn defaults.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func (rf *RandomForestClassifier) featuresPerSplit(p int) (int, error) {
	switch rf.maxFeatures {
	case "sqrt":
		return max(1, int(math.Sqrt(float64(p)))), nil
	case "log2":
		return max(1, int(math.Log2(float64(p)))), nil
	case "all":
		return p, nil
	}
	return 0, errors.NewValidationError("max_features", "must be sqrt, log2 or all", rf.maxFeatures)
}

// Fit grows the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext grows the trees concurrently. Seeds are drawn up front, so the
// fitted forest does not depend on scheduling or nJobs.
func (rf *RandomForestClassifier) FitContext(ctx context.Context, X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	n, p, err := model.CheckXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	classes, err := model.Classes("RandomForestClassifier.Fit", y)
	if err != nil {
		return err
	}
	mtry, err := rf.featuresPerSplit(p)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(rf.randomState, rf.randomState^0xda3e39cb94b95bdb))
	seeds := make([]uint64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	X = mat.DenseCopyOf(X)
	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	err = parallel.For(ctx, rf.nEstimators, rf.nJobs, func(_ context.Context, t int) error {
		treeRng := rand.New(rand.NewPCG(seeds[t], seeds[t]>>1|1))
		idx := make([]int, n)
		for i := range idx {
			if rf.bootstrap {
				idx[i] = treeRng.IntN(n)
			} else {
				idx[i] = i
			}
		}
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(rf.criterion),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(mtry),
			tree.WithRandomState(treeRng.Uint64()),
		)
		if err := dt.FitSample(X, y, idx); err != nil {
			return errors.Wrapf(err, "tree %d", t)
		}
		trees[t] = dt
		return nil
	})
	if err != nil {
		return errors.NewModelError("RandomForestClassifier.Fit", "tree fitting", err)
	}

	importances := make([]float64, p)
	for _, dt := range trees {
		floats.Add(importances, dt.GetFeatureImportances())
	}
	floats.Scale(1/float64(len(trees)), importances)

	rf.trees = trees
	rf.classes_ = classes
	rf.importances_ = importances
	rf.state.SetDimensions(p, n)
	rf.state.SetFitted()

	logger := log.GetLoggerWithName("ensemble.forest")
	logger.Debug("RandomForestClassifier fitted",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		"n_estimators", rf.nEstimators,
		"max_features", mtry,
	)
	return nil
}

// PredictProba averages the tree probabilities, one column per class.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	if err := rf.state.CheckFeatures("RandomForestClassifier.PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	sum := mat.NewDense(r, len(rf.classes_), nil)
	for _, dt := range rf.trees {
		proba, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, proba)
	}
	sum.Scale(1/float64(len(rf.trees)), sum)
	return sum, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(rf.classes_[floats.MaxIdx(mat.Row(nil, i, proba))]))
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(rf, X, y)
}

// Classes returns the class labels in PredictProba column order.
func (rf *RandomForestClassifier) Classes() []int { return slices.Clone(rf.classes_) }

// FeatureImportances returns the mean impurity-based importance per feature.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return slices.Clone(rf.importances_)
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return slices.Clone(rf.trees)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams sets hyperparameters by their scikit-learn names.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "n_estimators":
			rf.nEstimators, ok = value.(int)
		case "criterion":
			rf.criterion, ok = value.(string)
		case "max_depth":
			rf.maxDepth, ok = value.(int)
		case "min_samples_split":
			rf.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			rf.minSamplesLeaf, ok = value.(int)
		case "max_features":
			rf.maxFeatures, ok = value.(string)
		case "bootstrap":
			rf.bootstrap, ok = value.(bool)
		case "random_state":
			rf.randomState, ok = value.(uint64)
		case "n_jobs":
			rf.nJobs, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return nil
}
