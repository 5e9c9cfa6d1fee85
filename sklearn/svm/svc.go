// Package svm provides a support vector classifier solved with sequential
// minimal optimisation, following libsvm as used by scikit-learn's SVC.
package svm

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/heartrisk/core/model"
	"github.com/YuminosukeSato/heartrisk/core/parallel"
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
)

const (
	tau = 1e-12
	// kernelParallelThreshold is the row count above which the Gram matrix is
	// filled concurrently.
	kernelParallelThreshold = 64
	defaultMaxIter          = 10_000_000
)

// SVC is a binary C-support vector classifier.
type SVC struct {
	state *model.StateManager

	// Hyperparameters
	C          float64
	kernel     string  // "rbf" or "linear"
	gamma      string  // "scale", "auto" or "value"
	gammaValue float64 // used when gamma == "value"
	tol        float64
	maxIter    int // -1 means no limit beyond defaultMaxIter

	// Fitted
	gamma_         float64
	supportVectors [][]float64
	dualCoef       []float64 // α_i·y_i of every support vector
	intercept      float64
	classes_       []int
	nIter_         int
}

// Option configures an SVC.
type Option func(*SVC)

// WithC sets the penalty of the error term.
func WithC(c float64) Option { return func(s *SVC) { s.C = c } }

// WithKernel selects "rbf" or "linear".
func WithKernel(k string) Option { return func(s *SVC) { s.kernel = k } }

// WithGamma selects "scale" or "auto".
func WithGamma(g string) Option { return func(s *SVC) { s.gamma = g } }

// WithGammaValue fixes the RBF coefficient.
func WithGammaValue(g float64) Option {
	return func(s *SVC) { s.gamma, s.gammaValue = "value", g }
}

// WithTol sets the KKT violation tolerance.
func WithTol(tol float64) Option { return func(s *SVC) { s.tol = tol } }

// WithMaxIter caps solver iterations; -1 means no cap.
func WithMaxIter(n int) Option { return func(s *SVC) { s.maxIter = n } }

// NewSVC creates an RBF SVC with scikit-learn defaults.
func NewSVC(opts ...Option) *SVC {
	s := &SVC{
		state:   model.NewStateManager(),
		C:       1.0,
		kernel:  "rbf",
		gamma:   "scale",
		tol:     1e-3,
		maxIter: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SVC) validate() error {
	switch {
	case s.C <= 0:
		return errors.NewValidationError("C", "must be positive", s.C)
	case s.kernel != "rbf" && s.kernel != "linear":
		return errors.NewValidationError("kernel", "must be rbf or linear", s.kernel)
	case s.gamma != "scale" && s.gamma != "auto" && s.gamma != "value":
		return errors.NewValidationError("gamma", "must be scale or auto", s.gamma)
	case s.gamma == "value" && s.gammaValue <= 0:
		return errors.NewValidationError("gamma", "must be positive", s.gammaValue)
	case s.tol <= 0:
		return errors.NewValidationError("tol", "must be positive", s.tol)
	case s.maxIter == 0 || s.maxIter < -1:
		return errors.NewValidationError("max_iter", "must be positive or -1", s.maxIter)
	}
	return nil
}

func (s *SVC) resolveGamma(X mat.Matrix) float64 {
	_, p := X.Dims()
	switch s.gamma {
	case "auto":
		return 1 / float64(p)
	case "value":
		return s.gammaValue
	}
	raw := mat.DenseCopyOf(X).RawMatrix().Data
	_, std := stat.PopMeanStdDev(raw, nil)
	if v := std * std; v != 0 {
		return 1 / (float64(p) * v)
	}
	return 1
}

func (s *SVC) kernelFunc(a, b []float64) float64 {
	if s.kernel == "linear" {
		return floats.Dot(a, b)
	}
	d := floats.Distance(a, b, 2)
	return math.Exp(-s.gamma_ * d * d)
}

// Fit solves the dual problem with SMO using second-order working set
// selection.
func (s *SVC) Fit(X, y mat.Matrix) error {
	if err := s.validate(); err != nil {
		return err
	}
	n, p, err := model.CheckXY("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	classes, err := model.Classes("SVC.Fit", y)
	if err != nil {
		return err
	}
	if len(classes) != 2 {
		return errors.Wrapf(errors.ErrNotImplemented, "SVC.Fit: %d classes, only binary is supported", len(classes))
	}
	if err := errors.CheckMatrix("SVC.Fit", X, n, p, 0); err != nil {
		return err
	}

	s.gamma_ = s.resolveGamma(X)
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	sign := make([]float64, n)
	for i, c := range model.ClassIndex(y, classes) {
		sign[i] = float64(2*c - 1)
	}

	K := s.gram(rows)
	alpha, rho, iters := s.solve(K, sign)

	var sv []int
	for i, a := range alpha {
		if a > 0 {
			sv = append(sv, i)
		}
	}
	s.supportVectors = make([][]float64, len(sv))
	s.dualCoef = make([]float64, len(sv))
	for k, i := range sv {
		s.supportVectors[k] = rows[i]
		s.dualCoef[k] = alpha[i] * sign[i]
	}
	s.intercept = -rho
	s.classes_ = classes
	s.nIter_ = iters
	s.state.SetDimensions(p, n)
	s.state.SetFitted()

	logger := log.GetLoggerWithName("svm.svc")
	logger.Debug("SVC fitted",
		log.SamplesKey, n,
		log.IterationKey, iters,
		"support_vectors", len(sv),
		"gamma", s.gamma_,
	)
	return nil
}

// gram fills the symmetric kernel matrix, row blocks in parallel.
func (s *SVC) gram(rows [][]float64) *mat.SymDense {
	n := len(rows)
	K := mat.NewSymDense(n, nil)
	parallel.ParallelizeWithThreshold(n, kernelParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := i; j < n; j++ {
				K.SetSym(i, j, s.kernelFunc(rows[i], rows[j]))
			}
		}
	})
	return K
}

func (s *SVC) solve(K *mat.SymDense, y []float64) (alpha []float64, rho float64, iters int) {
	n := len(y)
	C := s.C
	alpha = make([]float64, n)
	G := make([]float64, n)
	for i := range G {
		G[i] = -1
	}
	upper := func(t int) bool { return alpha[t] >= C }
	lower := func(t int) bool { return alpha[t] <= 0 }
	q := func(i, j int) float64 { return y[i] * y[j] * K.At(i, j) }

	limit := s.maxIter
	if limit < 0 {
		limit = max(defaultMaxIter, 100*n)
	}

	for iters = 0; iters < limit; iters++ {
		// i: maximal violation among I_up
		i, gmax := -1, math.Inf(-1)
		for t := 0; t < n; t++ {
			if (y[t] > 0 && !upper(t)) || (y[t] < 0 && !lower(t)) {
				if v := -y[t] * G[t]; v >= gmax {
					i, gmax = t, v
				}
			}
		}
		// j: second-order gain among I_low
		j, gmax2, best := -1, math.Inf(-1), math.Inf(1)
		for t := 0; t < n; t++ {
			if !((y[t] > 0 && !lower(t)) || (y[t] < 0 && !upper(t))) {
				continue
			}
			yg := y[t] * G[t]
			gmax2 = max(gmax2, yg)
			if i < 0 {
				continue
			}
			if b := gmax + yg; b > 0 {
				a := K.At(i, i) + K.At(t, t) - 2*K.At(i, t)
				if a <= 0 {
					a = tau
				}
				if obj := -b * b / a; obj <= best {
					j, best = t, obj
				}
			}
		}
		if i < 0 || j < 0 || gmax+gmax2 < s.tol {
			break
		}
		s.update(alpha, G, y, q, i, j)
	}
	if iters >= limit {
		errors.Warn(errors.NewConvergenceWarning("smo", iters, "KKT conditions not satisfied within max_iter"))
	}
	return alpha, s.rho(alpha, G, y), iters
}

func (s *SVC) update(alpha, G, y []float64, q func(i, j int) float64, i, j int) {
	C := s.C
	oldI, oldJ := alpha[i], alpha[j]
	if y[i] != y[j] {
		quad := q(i, i) + q(j, j) + 2*q(i, j)
		if quad <= 0 {
			quad = tau
		}
		delta := (-G[i] - G[j]) / quad
		diff := alpha[i] - alpha[j]
		alpha[i] += delta
		alpha[j] += delta
		if diff > 0 {
			if alpha[j] < 0 {
				alpha[j], alpha[i] = 0, diff
			}
		} else if alpha[i] < 0 {
			alpha[i], alpha[j] = 0, -diff
		}
		if diff > 0 {
			if alpha[i] > C {
				alpha[i], alpha[j] = C, C-diff
			}
		} else if alpha[j] > C {
			alpha[j], alpha[i] = C, C+diff
		}
	} else {
		quad := q(i, i) + q(j, j) - 2*q(i, j)
		if quad <= 0 {
			quad = tau
		}
		delta := (G[i] - G[j]) / quad
		sum := alpha[i] + alpha[j]
		alpha[i] -= delta
		alpha[j] += delta
		if sum > C {
			if alpha[i] > C {
				alpha[i], alpha[j] = C, sum-C
			}
		} else if alpha[j] < 0 {
			alpha[j], alpha[i] = 0, sum
		}
		if sum > C {
			if alpha[j] > C {
				alpha[j], alpha[i] = C, sum-C
			}
		} else if alpha[i] < 0 {
			alpha[i], alpha[j] = 0, sum
		}
	}
	dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
	for k := range G {
		G[k] += q(i, k)*dI + q(j, k)*dJ
	}
}

// rho averages y·G over free vectors, or takes the midpoint of the
// feasible interval when none is free.
func (s *SVC) rho(alpha, G, y []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var sumFree float64
	var nFree int
	for i := range alpha {
		yG := y[i] * G[i]
		switch {
		case alpha[i] >= s.C:
			if y[i] < 0 {
				ub = min(ub, yG)
			} else {
				lb = max(lb, yG)
			}
		case alpha[i] <= 0:
			if y[i] > 0 {
				ub = min(ub, yG)
			} else {
				lb = max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

// DecisionFunction returns Σ α_i y_i K(x_i, x) + b for every row. Positive
// values favour Classes()[1].
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("SVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	if err := s.state.CheckFeatures("SVC.DecisionFunction", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		row := mat.Row(nil, i, X)
		f := s.intercept
		for k, sv := range s.supportVectors {
			f += s.dualCoef[k] * s.kernelFunc(sv, row)
		}
		out.Set(i, 0, f)
	}
	return out, nil
}

// Predict returns Classes()[1] where the decision function is positive.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	r, _ := scores.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		c := s.classes_[0]
		if scores.At(i, 0) > 0 {
			c = s.classes_[1]
		}
		out.Set(i, 0, float64(c))
	}
	return out, nil
}

// Score returns the mean accuracy on X and y.
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	return model.MeanAccuracy(s, X, y)
}

// Classes returns the two class labels.
func (s *SVC) Classes() []int { return slices.Clone(s.classes_) }

// NSupport returns the number of support vectors.
func (s *SVC) NSupport() int { return len(s.dualCoef) }

// DualCoef returns α_i·y_i for every support vector.
func (s *SVC) DualCoef() []float64 { return slices.Clone(s.dualCoef) }

// Intercept returns the bias term b.
func (s *SVC) Intercept() float64 { return s.intercept }

// Gamma returns the fitted RBF coefficient.
func (s *SVC) Gamma() float64 { return s.gamma_ }

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	gamma := interface{}(s.gamma)
	if s.gamma == "value" {
		gamma = s.gammaValue
	}
	return map[string]interface{}{
		"C":        s.C,
		"kernel":   s.kernel,
		"gamma":    gamma,
		"tol":      s.tol,
		"max_iter": s.maxIter,
	}
}

// SetParams sets hyperparameters by their scikit-learn names. gamma accepts
// "scale", "auto" or a float64.
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		ok := true
		switch key {
		case "C":
			s.C, ok = value.(float64)
		case "kernel":
			s.kernel, ok = value.(string)
		case "gamma":
			switch g := value.(type) {
			case string:
				s.gamma = g
			case float64:
				s.gamma, s.gammaValue = "value", g
			default:
				ok = false
			}
		case "tol":
			s.tol, ok = value.(float64)
		case "max_iter":
			s.maxIter, ok = value.(int)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	return s.validate()
}
