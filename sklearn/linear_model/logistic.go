package linear_model

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
)

// LogisticRegression implements L2-regularised logistic regression.
// Compatible with scikit-learn's LogisticRegression: the objective is
// C·Σ logloss + ½‖w‖², the intercept is not penalised, and more than two
// classes are fitted one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Kept for parity; both solvers are deterministic
	solver       string  // Solver: "lbfgs" or "gd"
	maxIter      int     // Maximum iterations
	tol          float64 // Gradient tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nIter_     []int       // Actual iterations per fitted problem
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		randomState:  -1,
		solver:       "lbfgs",
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.solver = solver }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.penalty != "l2" && lr.penalty != "none":
		return errors.NewValidationError("penalty", "must be l2 or none", lr.penalty)
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.solver != "lbfgs" && lr.solver != "gd":
		return errors.NewValidationError("solver", "must be lbfgs or gd", lr.solver)
	case lr.maxIter <= 0:
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	case lr.tol <= 0:
		return errors.NewValidationError("tol", "must be positive", lr.tol)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	classes, err := model.Classes("LogisticRegression.Fit", y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X, nSamples, nFeatures, 0); err != nil {
		return err
	}

	problems := len(classes)
	if problems == 2 {
		problems = 1
	}
	coef := make([][]float64, problems)
	intercept := make([]float64, problems)
	nIter := make([]int, problems)

	labels := model.ClassIndex(y, classes)
	for k := 0; k < problems; k++ {
		positive := k
		if len(classes) == 2 {
			positive = 1
		}
		target := make([]float64, nSamples)
		for i, c := range labels {
			if c == positive {
				target[i] = 1
			}
		}
		w, iters, err := lr.fitBinary(X, target)
		if err != nil {
			return errors.NewModelError("LogisticRegression.Fit", fmt.Sprintf("class %d", classes[positive]), err)
		}
		coef[k] = w[:nFeatures]
		intercept[k] = w[nFeatures]
		nIter[k] = iters
	}

	lr.coef_, lr.intercept_, lr.classes_, lr.nIter_ = coef, intercept, classes, nIter
	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()

	logger := log.GetLoggerWithName("linear_model.logistic")
	logger.Debug("LogisticRegression fitted",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.IterationKey, slices.Max(nIter),
		"solver", lr.solver,
	)
	return nil
}

// objective returns the loss and its gradient for one binary problem,
// scaled by 1/n. w holds the coefficients followed by the intercept.
func (lr *LogisticRegression) objective(X mat.Matrix, target []float64) (f func([]float64) float64, g func(grad, w []float64)) {
	n, p := X.Dims()
	alpha := 0.0
	if lr.penalty == "l2" {
		alpha = 1 / (lr.C * float64(n))
	}
	margin := func(w []float64, i int) float64 {
		z := w[p]
		for j := 0; j < p; j++ {
			z += X.At(i, j) * w[j]
		}
		return z
	}
	f = func(w []float64) float64 {
		var loss float64
		for i := 0; i < n; i++ {
			z := margin(w, i)
			loss += errors.Softplus(z) - target[i]*z
		}
		return loss/float64(n) + 0.5*alpha*floats.Dot(w[:p], w[:p])
	}
	g = func(grad, w []float64) {
		for j := range grad {
			grad[j] = 0
		}
		for i := 0; i < n; i++ {
			r := errors.Sigmoid(margin(w, i)) - target[i]
			for j := 0; j < p; j++ {
				grad[j] += r * X.At(i, j)
			}
			grad[p] += r
		}
		floats.Scale(1/float64(n), grad)
		for j := 0; j < p; j++ {
			grad[j] += alpha * w[j]
		}
		if !lr.fitIntercept {
			grad[p] = 0
		}
	}
	return f, g
}

func (lr *LogisticRegression) fitBinary(X mat.Matrix, target []float64) ([]float64, int, error) {
	_, p := X.Dims()
	f, g := lr.objective(X, target)
	w := make([]float64, p+1)

	if lr.solver == "gd" {
		return lr.gradientDescent(f, g, w)
	}

	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	result, err := optimize.Minimize(optimize.Problem{Func: f, Grad: g}, w, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, err
	}
	if err != nil || result.Status == optimize.IterationLimit {
		msg := result.Status.String()
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.Stats.MajorIterations, msg))
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, errors.NewNumericalInstabilityError("LogisticRegression.lbfgs", result.X, result.Stats.MajorIterations)
		}
	}
	return result.X, result.Stats.MajorIterations, nil
}

// gradientDescent takes plain gradient steps with a decaying rate.
func (lr *LogisticRegression) gradientDescent(f func([]float64) float64, g func(grad, w []float64), w []float64) ([]float64, int, error) {
	grad := make([]float64, len(w))
	for iter := 0; iter < lr.maxIter; iter++ {
		g(grad, w)
		if floats.Norm(grad, math.Inf(1)) < lr.tol {
			return w, iter, nil
		}
		rate := 1.0 / (1.0 + 0.1*float64(iter))
		floats.AddScaled(w, -rate, grad)
		if err := errors.CheckScalar("LogisticRegression.gd", f(w), iter); err != nil {
			return nil, iter, err
		}
	}
	errors.Warn(errors.NewConvergenceWarning("gd", lr.maxIter, "gradient norm above tolerance"))
	return w, lr.maxIter, nil
}

// DecisionFunction returns the signed distance to the separating
// hyperplane; one column for two classes, one per class otherwise.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := lr.state.CheckFeatures("LogisticRegression.DecisionFunction", X); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	scores := mat.NewDense(nSamples, len(lr.coef_), nil)
	for k, w := range lr.coef_ {
		for i := 0; i < nSamples; i++ {
			z := lr.intercept_[k]
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * w[j]
			}
			scores.Set(i, k, z)
		}
	}
	return scores, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	probas, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := probas.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		row := mat.Row(nil, i, probas)
		predictions.Set(i, 0, float64(lr.classes_[floats.MaxIdx(row)]))
	}
	return predictions, nil
}

// PredictProba returns probability estimates for each class in Classes order.
// One-vs-rest scores are normalised to sum to one.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := scores.Dims()
	probas := mat.NewDense(nSamples, len(lr.classes_), nil)
	for i := 0; i < nSamples; i++ {
		if len(lr.classes_) == 2 {
			p1 := errors.Sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1-p1)
			probas.Set(i, 1, p1)
			continue
		}
		row := make([]float64, len(lr.classes_))
		for k := range row {
			row[k] = errors.Sigmoid(scores.At(i, k))
		}
		floats.Scale(1/floats.Sum(row), row)
		probas.SetRow(i, row)
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(lr, X, y)
}

// Classes returns the class labels in PredictProba column order.
func (lr *LogisticRegression) Classes() []int { return slices.Clone(lr.classes_) }

// Coef returns the fitted coefficients, one row per binary problem.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for i, c := range lr.coef_ {
		out[i] = slices.Clone(c)
	}
	return out
}

// Intercept returns the fitted intercepts.
func (lr *LogisticRegression) Intercept() []float64 { return slices.Clone(lr.intercept_) }

// NIter returns the solver iterations per binary problem.
func (lr *LogisticRegression) NIter() []int { return slices.Clone(lr.nIter_) }

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "random_state":
			lr.randomState, ok = value.(int64)
		case "solver":
			lr.solver, ok = value.(string)
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return lr.validate()
}
