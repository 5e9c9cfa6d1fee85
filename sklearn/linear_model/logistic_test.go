package linear_model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Create simple linearly separable data
	// Class 0: points around (1, 1)
	// Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})

	y := mat.NewDense(6, 1, []float64{
		0, 0, 0,  // Class 0
		1, 1, 1,  // Class 1
	})

	// Create and train model
	lr := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRTol(1e-4),
	)

	err := lr.Fit(X, y)
	if err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	// Test predictions on training data
	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}

	// Check predictions
	for i := 0; i < 6; i++ {
		pred := predictions.At(i, 0)
		actual := y.At(i, 0)
		if pred != actual {
			t.Errorf("Sample %d: expected %v, got %v", i, actual, pred)
		}
	}

	// Test on new data
	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0,  // Should be class 0
		3.0, 3.0,  // Should be class 1
	})

	testPreds, err := lr.Predict(XTest)
	if err != nil {
		t.Fatalf("Failed to predict on test data: %v", err)
	}

	if testPreds.At(0, 0) != 0 {
		t.Errorf("Test point (1,1) should be class 0, got %v", testPreds.At(0, 0))
	}

	if testPreds.At(1, 0) != 1 {
		t.Errorf("Test point (3,3) should be class 1, got %v", testPreds.At(1, 0))
	}
}

// TestLogisticRegression_PredictProba tests probability predictions
func TestLogisticRegression_PredictProba(t *testing.T) {
	// Simple data
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})

	y := mat.NewDense(4, 1, []float64{
		0, 0, 1, 1,
	})

	lr := NewLogisticRegression(
		WithLRMaxIter(500),
	)

	err := lr.Fit(X, y)
	if err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}

	rows, cols := probas.Dims()
	if rows != 4 || cols != 2 {
		t.Errorf("Expected probas shape (4, 2), got (%d, %d)", rows, cols)
	}

	// Check that probabilities sum to 1
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			prob := probas.At(i, j)
			if prob < 0 || prob > 1 {
				t.Errorf("Invalid probability at (%d, %d): %v", i, j, prob)
			}
			sum += prob
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("Probabilities for sample %d don't sum to 1: %v", i, sum)
		}
	}

	// Check that higher probability corresponds to predicted class
	predictions, _ := lr.Predict(X)
	for i := 0; i < rows; i++ {
		pred := int(predictions.At(i, 0))
		prob0 := probas.At(i, 0)
		prob1 := probas.At(i, 1)
	
		if pred == 0 && prob0 <= prob1 {
			t.Errorf("Sample %d: predicted class 0 but P(0)=%v <= P(1)=%v", i, prob0, prob1)
		}
		if pred == 1 && prob1 <= prob0 {
			t.Errorf("Sample %d: predicted class 1 but P(1)=%v <= P(0)=%v", i, prob1, prob0)
		}
	}
}

// TestLogisticRegression_Score tests accuracy calculation
func TestLogisticRegression_Score(t *testing.T) {
	// Create XOR-like data (not linearly separable, but we'll use more features)
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 0, 1,
		0, 1, 0,
		0, 1, 1,
		1, 0, 0,
		1, 0, 1,
		1, 1, 0,
		1, 1, 1,
	})

	// Simple pattern: class 1 if sum of features > 1.5
	y := mat.NewDense(8, 1, []float64{
		0, 0, 0, 1, 0, 1, 1, 1,
	})

	lr := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRC(10.0), // Less regularization for better fit
	)

	err := lr.Fit(X, y)
	if err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score < 0.75 { // Should achieve at least 75% accuracy
		t.Errorf("Score too low: %v", score)
	}

	// Perfect classification test with better separated data
	XSimple := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
	})
	ySimple := mat.NewDense(6, 1, []float64{
		0, 0, 0,  // Class 0 (lower values)
		1, 1, 1,  // Class 1 (higher values)
	})

	lr2 := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRC(10.0),  // Less regularization for better fit
	)
	if err := lr2.Fit(XSimple, ySimple); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	scoreSimple, _ := lr2.Score(XSimple, ySimple)
	if scoreSimple != 1.0 {
		t.Errorf("Expected perfect score for linearly separable data, got %v", scoreSimple)
	}
}

// TestLogisticRegression_Regularization tests L2 regularization
func TestLogisticRegression_Regularization(t *testing.T) {
	// Create data with many features (prone to overfitting)
	X := mat.NewDense(10, 5, []float64{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
		0, 0, 0, 0, 1,
		1, 1, 0, 0, 0,
		0, 1, 1, 0, 0,
		0, 0, 1, 1, 0,
		0, 0, 0, 1, 1,
		1, 0, 0, 0, 1,
	})

	y := mat.NewDense(10, 1, []float64{
		0, 0, 0, 1, 1, 0, 0, 1, 1, 1,
	})

	// Train with strong regularization
	lrStrong := NewLogisticRegression(
		WithLRC(0.01), // Strong regularization (small C)
		WithLRMaxIter(1000),
	)
	lrStrong.Fit(X, y)

	// Train with weak regularization
	lrWeak := NewLogisticRegression(
		WithLRC(100.0), // Weak regularization (large C)
		WithLRMaxIter(1000),
	)
	lrWeak.Fit(X, y)

	// Check that strong regularization produces smaller weights
	strongNorm := 0.0
	weakNorm := 0.0

	for j := 0; j < 5; j++ {
		strongNorm += lrStrong.coef_[0][j] * lrStrong.coef_[0][j]
		weakNorm += lrWeak.coef_[0][j] * lrWeak.coef_[0][j]
	}

	strongNorm = math.Sqrt(strongNorm)
	weakNorm = math.Sqrt(weakNorm)

	if strongNorm >= weakNorm {
		t.Errorf("Strong regularization should produce smaller weights: strong=%v, weak=%v",
			strongNorm, weakNorm)
	}
}

// TestLogisticRegression_Multiclass tests multiclass classification
func TestLogisticRegression_Multiclass(t *testing.T) {
	// Create 3-class data
	X := mat.NewDense(9, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		2, 2,
		2, 3,
		3, 2,
		4, 4,
		4, 5,
		5, 4,
	})

	y := mat.NewDense(9, 1, []float64{
		0, 0, 0,  // Class 0
		1, 1, 1,  // Class 1
		2, 2, 2,  // Class 2
	})

	lr := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRC(10.0),
	)

	err := lr.Fit(X, y)
	if err != nil {
		t.Fatalf("Failed to fit multiclass model: %v", err)
	}

	// Check that we have 3 classes
	if got := lr.Classes(); len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("Expected classes [0 1 2], got %v", got)
	}

	// Check predictions
	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}

	correct := 0
	for i := 0; i < 9; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}

	accuracy := float64(correct) / 9.0
	if accuracy < 0.89 { // Should achieve at least 89% accuracy (8/9)
		t.Errorf("Multiclass accuracy too low: %v", accuracy)
	}

	// Test probability predictions
	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}

	rows, cols := probas.Dims()
	if cols != 3 {
		t.Errorf("Expected 3 probability columns, got %d", cols)
	}

	// Check probability constraints
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			prob := probas.At(i, j)
			if prob < 0 || prob > 1 {
				t.Errorf("Invalid probability at (%d, %d): %v", i, j, prob)
			}
			sum += prob
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("Probabilities for sample %d don't sum to 1: %v", i, sum)
		}
	}
}

// TestLogisticRegression_GetSetParams tests parameter management
func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()

	// Get default params
	params := lr.GetParams()

	// Check some defaults
	if params["C"].(float64) != 1.0 {
		t.Errorf("Default C should be 1.0, got %v", params["C"])
	}

	if params["max_iter"].(int) != 100 {
		t.Errorf("Default max_iter should be 100, got %v", params["max_iter"])
	}

	// Set new params
	newParams := map[string]interface{}{
		"C":         2.0,
		"max_iter":  200,
		"penalty":   "none",
		"tol":       1e-5,
	}

	err := lr.SetParams(newParams)
	if err != nil {
		t.Fatalf("Failed to set params: %v", err)
	}

	// Verify changes
	if lr.C != 2.0 {
		t.Errorf("C not updated: expected 2.0, got %v", lr.C)
	}

	if lr.maxIter != 200 {
		t.Errorf("max_iter not updated: expected 200, got %v", lr.maxIter)
	}

	if lr.penalty != "none" {
		t.Errorf("penalty not updated: expected 'none', got %v", lr.penalty)
	}

	if lr.tol != 1e-5 {
		t.Errorf("tol not updated: expected 1e-5, got %v", lr.tol)
	}
}

// TestLogisticRegression_NotFitted tests error when predicting without fitting
func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()

	X := mat.NewDense(2, 2, []float64{
		1, 2,
		3, 4,
	})

	_, err := lr.Predict(X)
	if err == nil {
		t.Error("Expected error when predicting without fitting")
	}

	_, err = lr.PredictProba(X)
	if err == nil {
		t.Error("Expected error when predicting probabilities without fitting")
	}
}
// overlapData is not linearly separable, so the L2 optimum is well inside the
// iteration budget.
func overlapData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 2, []float64{
		0.2, 1.1,
		0.9, 0.4,
		1.4, 1.8,
		1.9, 0.7,
		2.3, 2.6,
		2.0, 1.5,
		2.8, 1.2,
		3.1, 2.9,
		1.2, 2.2,
		3.5, 3.3,
	})
	y := mat.NewDense(10, 1, []float64{0, 0, 0, 1, 0, 1, 1, 1, 1, 1})
	return X, y
}

// TestLogisticRegression_Optimality checks the first-order condition of the
// regularised objective at the fitted weights.
func TestLogisticRegression_Optimality(t *testing.T) {
	X, y := overlapData()
	for _, withIntercept := range []bool{true, false} {
		lr := NewLogisticRegression(WithLogisticFitIntercept(withIntercept))
		if err := lr.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}

		target := mat.Col(nil, 0, y)
		_, g := lr.objective(X, target)
		w := append(lr.Coef()[0], lr.Intercept()[0])
		grad := make([]float64, len(w))
		g(grad, w)
		for j, v := range grad {
			if math.Abs(v) > 1e-3 {
				t.Errorf("intercept=%v: gradient[%d] = %v, want ~0", withIntercept, j, v)
			}
		}
		if !withIntercept && lr.Intercept()[0] != 0 {
			t.Errorf("intercept should stay 0, got %v", lr.Intercept()[0])
		}
	}
}

// TestLogisticRegression_DecisionFunction tests the sign convention of scores
func TestLogisticRegression_DecisionFunction(t *testing.T) {
	X, y := overlapData()
	lr := NewLogisticRegression(WithLRRandomState(5))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		t.Fatalf("DecisionFunction failed: %v", err)
	}
	probas, _ := lr.PredictProba(X)
	for i := 0; i < 10; i++ {
		s, p := scores.At(i, 0), probas.At(i, 1)
		if (s > 0) != (p > 0.5) {
			t.Errorf("sample %d: score %v but P(1)=%v", i, s, p)
		}
		if math.Abs(p-1/(1+math.Exp(-s))) > 1e-12 {
			t.Errorf("sample %d: P(1)=%v is not sigmoid(%v)", i, p, s)
		}
	}
}

// TestLogisticRegression_GradientDescentSolver tests the "gd" solver
func TestLogisticRegression_GradientDescentSolver(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		3, 3,
		3, 4,
		4, 3,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	prev := errors.SetWarningHandler(func(error) {})
	defer errors.SetWarningHandler(prev)

	lr := NewLogisticRegression(WithLRSolver("gd"), WithLRMaxIter(2000))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	score, err := lr.Score(X, y)
	if err != nil || score != 1.0 {
		t.Errorf("gd score = %v (err %v), want 1.0", score, err)
	}
}

// TestLogisticRegression_ConvergenceWarning tests the warning on an exhausted budget
func TestLogisticRegression_ConvergenceWarning(t *testing.T) {
	X, y := overlapData()

	var warnings []error
	prev := errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(prev)

	lr := NewLogisticRegression(WithLRMaxIter(1), WithLRTol(1e-12))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var cw *errors.ConvergenceWarning
	if len(warnings) == 0 || !errors.As(warnings[0], &cw) {
		t.Fatalf("expected a ConvergenceWarning, got %v", warnings)
	}
	if cw.Algorithm != "lbfgs" {
		t.Errorf("warning algorithm = %q", cw.Algorithm)
	}
}

// TestLogisticRegression_Errors tests input and parameter validation
func TestLogisticRegression_Errors(t *testing.T) {
	X, y := overlapData()

	tests := []struct {
		name string
		lr   *LogisticRegression
		X, y mat.Matrix
	}{
		{"negative C", NewLogisticRegression(WithLRC(-1)), X, y},
		{"unknown solver", NewLogisticRegression(WithLRSolver("saga")), X, y},
		{"l1 penalty", NewLogisticRegression(WithLRPenalty("l1")), X, y},
		{"single class", NewLogisticRegression(), X, mat.NewDense(10, 1, nil)},
		{"row mismatch", NewLogisticRegression(), X, mat.NewDense(3, 1, []float64{0, 1, 0})},
		{"NaN feature", NewLogisticRegression(), mat.NewDense(2, 1, []float64{math.NaN(), 1}), mat.NewDense(2, 1, []float64{0, 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.lr.Fit(tt.X, tt.y); err == nil {
				t.Error("expected an error")
			}
		})
	}

	lr := NewLogisticRegression()
	if err := lr.SetParams(map[string]interface{}{"C": "big"}); err == nil {
		t.Error("expected a type error for C")
	}
	if err := lr.SetParams(map[string]interface{}{"l1_ratio": 0.5}); err == nil {
		t.Error("expected an unknown parameter error")
	}

	_, err := NewLogisticRegression().Predict(X)
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, err = lr.Predict(mat.NewDense(1, 3, []float64{1, 2, 3}))
	var de *errors.DimensionError
	if !errors.As(err, &de) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}
