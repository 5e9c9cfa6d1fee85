package svm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// TestSVC_LinearHardMargin checks the closed-form solution of two points
func TestSVC_LinearHardMargin(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{-1, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})

	svc := NewSVC(WithKernel("linear"), WithC(10))
	if err := svc.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if svc.NSupport() != 2 {
		t.Errorf("support vectors = %d, want 2", svc.NSupport())
	}
	if math.Abs(svc.Intercept()) > 1e-12 {
		t.Errorf("intercept = %v, want 0", svc.Intercept())
	}

	scores, err := svc.DecisionFunction(mat.NewDense(3, 1, []float64{2, -0.5, 0}))
	if err != nil {
		t.Fatalf("DecisionFunction failed: %v", err)
	}
	want := []float64{2, -0.5, 0}
	for i, w := range want {
		if math.Abs(scores.At(i, 0)-w) > 1e-12 {
			t.Errorf("f(x_%d) = %v, want %v", i, scores.At(i, 0), w)
		}
	}

	preds, _ := svc.Predict(mat.NewDense(3, 1, []float64{2, -0.5, 0}))
	for i, w := range []float64{1, 0, 0} {
		if preds.At(i, 0) != w {
			t.Errorf("predict(x_%d) = %v, want %v", i, preds.At(i, 0), w)
		}
	}
}

// TestSVC_GammaScale tests gamma = 1 / (n_features * Var(X))
func TestSVC_GammaScale(t *testing.T) {
	tests := []struct {
		name string
		X    *mat.Dense
		opts []Option
		want float64
	}{
		{"scale", mat.NewDense(2, 2, []float64{0, 0, 2, 2}), nil, 0.5},
		{"scale constant", mat.NewDense(2, 2, []float64{3, 3, 3, 3}), nil, 1},
		{"auto", mat.NewDense(2, 2, []float64{0, 0, 2, 2}), []Option{WithGamma("auto")}, 0.5},
		{"value", mat.NewDense(2, 2, []float64{0, 0, 2, 2}), []Option{WithGammaValue(0.1)}, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSVC(tt.opts...)
			if got := svc.resolveGamma(tt.X); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("gamma = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSVC_RBFRings tests a problem no linear boundary separates
func TestSVC_RBFRings(t *testing.T) {
	const n = 12
	X := mat.NewDense(2*n, 2, nil)
	y := mat.NewDense(2*n, 1, nil)
	for k := 0; k < n; k++ {
		theta := 2 * math.Pi * float64(k) / n
		X.SetRow(k, []float64{0.5 * math.Cos(theta), 0.5 * math.Sin(theta)})
		y.Set(k, 0, 1)
		X.SetRow(n+k, []float64{3 * math.Cos(theta), 3 * math.Sin(theta)})
	}

	svc := NewSVC(WithC(10))
	if err := svc.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	score, err := svc.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 1.0 {
		t.Errorf("training accuracy = %v, want 1", score)
	}

	scores, _ := svc.DecisionFunction(mat.NewDense(2, 2, []float64{0, 0, 5, 5}))
	if scores.At(0, 0) <= 0 || scores.At(1, 0) >= 0 {
		t.Errorf("origin should score positive and far point negative, got %v and %v", scores.At(0, 0), scores.At(1, 0))
	}
}

// TestSVC_Classes tests label handling for arbitrary integer classes
func TestSVC_Classes(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-2, -1, 1, 2})
	y := mat.NewDense(4, 1, []float64{3, 3, 7, 7})

	svc := NewSVC()
	if err := svc.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if c := svc.Classes(); len(c) != 2 || c[0] != 3 || c[1] != 7 {
		t.Errorf("classes = %v, want [3 7]", c)
	}
	preds, _ := svc.Predict(X)
	for i := 0; i < 4; i++ {
		if preds.At(i, 0) != y.At(i, 0) {
			t.Errorf("row %d: got %v, want %v", i, preds.At(i, 0), y.At(i, 0))
		}
	}
}

// TestSVC_Errors tests validation and fitted-state errors
func TestSVC_Errors(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})

	if err := NewSVC().Fit(X, mat.NewDense(3, 1, []float64{0, 1, 2})); !errors.Is(err, errors.ErrNotImplemented) {
		t.Errorf("multiclass: expected ErrNotImplemented, got %v", err)
	}
	if err := NewSVC(WithC(0)).Fit(X, mat.NewDense(3, 1, []float64{0, 1, 1})); err == nil {
		t.Error("expected an error for C=0")
	}
	if err := NewSVC(WithGamma("large")).Fit(X, mat.NewDense(3, 1, []float64{0, 1, 1})); err == nil {
		t.Error("expected an error for an unknown gamma")
	}

	_, err := NewSVC().DecisionFunction(X)
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	svc := NewSVC()
	if err := svc.SetParams(map[string]interface{}{"gamma": 0.25, "C": 2.0}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if p := svc.GetParams(); p["gamma"] != 0.25 || p["C"] != 2.0 {
		t.Errorf("params = %v", p)
	}
}
