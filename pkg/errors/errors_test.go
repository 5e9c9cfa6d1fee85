package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "heartrisk: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "heartrisk: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 12, 9, 1)

	want := "heartrisk: Predict: dimension mismatch on axis 1 (features). Expected 12, got 9"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RobustScaler", "Transform")

	want := "heartrisk: RobustScaler: this model is not fitted yet. Call Fit() before using Transform()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewColumnNotFoundError(t *testing.T) {
	err := NewColumnNotFoundError("winsorize_trtbps", "trtbps")

	want := `heartrisk: winsorize_trtbps: column "trtbps" not found`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var colErr *ColumnNotFoundError
	if !As(err, &colErr) {
		t.Fatal("Error should be castable to *ColumnNotFoundError")
	}
	if colErr.Column != "trtbps" {
		t.Errorf("Column = %q, want trtbps", colErr.Column)
	}
}

func TestNewSchemaError(t *testing.T) {
	tests := []struct {
		name    string
		row     int
		column  string
		reason  string
		wantMsg string
	}{
		{
			name:    "row violation",
			row:     17,
			column:  "cp",
			reason:  "value 7 outside domain",
			wantMsg: `heartrisk: schema: row 17, column "cp": value 7 outside domain`,
		},
		{
			name:    "header violation",
			row:     0,
			column:  "output",
			reason:  "missing from header",
			wantMsg: `heartrisk: schema: column "output": missing from header`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSchemaError(tt.row, tt.column, tt.reason)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			var schemaErr *SchemaError
			if !As(err, &schemaErr) {
				t.Error("Error should be castable to *SchemaError")
			}
		})
	}
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("TrainTestSplit", "test_size: 1.5 (must be in (0, 1))")

	want := "heartrisk: TrainTestSplit: test_size: 1.5 (must be in (0, 1))"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValueError
	if !As(err, &valErr) {
		t.Error("Error should be castable to *ValueError")
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name    string
		warning error
		want    string
	}{
		{
			name:    "convergence",
			warning: NewConvergenceWarning("lbfgs", 100, "gradient threshold not reached"),
			want:    "lbfgs failed to converge after 100 iterations: gradient threshold not reached",
		},
		{
			name:    "undefined metric",
			warning: NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5),
			want:    "'roc_auc' is ill-defined and being set to 0.500000 due to only one class present in y_true.",
		},
		{
			name:    "methodology",
			warning: NewMethodologyWarning("cross_val_score", "folds drawn from the test partition"),
			want:    "methodology: cross_val_score: folds drawn from the test partition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.warning.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", tt.warning.Error(), tt.want)
			}
		})
	}
}

func TestWarnRoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	SetZerologWarnFunc(ZerologWarnFunc(logger))
	defer SetZerologWarnFunc(nil)

	Warn(NewMethodologyWarning("cross_val_score", "folds drawn from the test partition"))

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"type":"MethodologyWarning"`, `"step":"cross_val_score"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %s", out, want)
		}
	}
}

func TestSetWarningHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(error) {})

	Warn(NewConvergenceWarning("smo", 10, ""))

	if len(got) != 1 {
		t.Fatalf("handler received %d warnings, want 1", len(got))
	}
	var convWarn *ConvergenceWarning
	if !As(got[0], &convWarn) {
		t.Error("Warning should be castable to *ConvergenceWarning")
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "remove_thalachh_outliers: %d rows in", 0)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "remove_thalachh_outliers: 0 rows in") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}

func TestNumericalHelpers(t *testing.T) {
	if err := CheckScalar("loss", 0.3, 1); err != nil {
		t.Errorf("CheckScalar(0.3) = %v, want nil", err)
	}

	var nan float64
	nan = nan / nan
	err := CheckScalar("loss", nan, 7)
	var instErr *NumericalInstabilityError
	if !As(err, &instErr) {
		t.Fatalf("CheckScalar(NaN) = %v, want NumericalInstabilityError", err)
	}
	if instErr.Iteration != 7 {
		t.Errorf("Iteration = %d, want 7", instErr.Iteration)
	}

	if got := Sigmoid(0); got != 0.5 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", got)
	}
	if got := Sigmoid(-1000); got != 0 {
		t.Errorf("Sigmoid(-1000) = %v, want 0", got)
	}
	if got := Softplus(1000); got != 1000 {
		t.Errorf("Softplus(1000) = %v, want 1000", got)
	}
	if got := ClipValue(1.2, 0, 1); got != 1 {
		t.Errorf("ClipValue(1.2, 0, 1) = %v, want 1", got)
	}
	if got := SafeDivide(1, 0); got != 0 {
		t.Errorf("SafeDivide(1, 0) = %v, want 0", got)
	}
}
