package preprocessing

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		q    float64
		want float64
	}{
		{"first quartile interpolates", []float64{1, 2, 3, 4}, 0.25, 1.75},
		{"median even", []float64{4, 1, 3, 2}, 0.5, 2.5},
		{"median odd", []float64{5, 1, 3}, 0.5, 3},
		{"min", []float64{7, 3, 9}, 0, 3},
		{"max", []float64{7, 3, 9}, 1, 9},
		{"nan ignored", []float64{1, math.NaN(), 3}, 0.5, 2},
		{"single value", []float64{42}, 0.75, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Quantile(tt.x, tt.q)
			if err != nil {
				t.Fatalf("Quantile() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Quantile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuantileErrors(t *testing.T) {
	if _, err := Quantile(nil, 0.5); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("Quantile(nil) error = %v, want ErrEmptyData", err)
	}
	var vErr *errors.ValidationError
	if _, err := Quantile([]float64{1}, 1.5); !errors.As(err, &vErr) {
		t.Errorf("Quantile(q=1.5) error = %v, want ValidationError", err)
	}
}

func TestPercentileOfScore(t *testing.T) {
	tests := []struct {
		name  string
		x     []float64
		score float64
		want  float64
	}{
		{"present once", []float64{1, 2, 3, 4}, 3, 75},
		{"ties", []float64{1, 2, 3, 3, 4}, 3, 70},
		{"absent between", []float64{1, 2, 4, 5}, 3, 50},
		{"below all", []float64{1, 2, 3}, 0, 0},
		{"above all", []float64{1, 2, 3}, 10, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PercentileOfScore(tt.x, tt.score)
			if err != nil {
				t.Fatalf("PercentileOfScore() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PercentileOfScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWinsorize(t *testing.T) {
	x := []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}

	res, err := Winsorize(x, 0.1, 0.2)
	if err != nil {
		t.Fatalf("Winsorize() error = %v", err)
	}
	want := []float64{8, 2, 8, 2, 8, 3, 7, 4, 6, 5}
	for i := range want {
		if res.Values[i] != want[i] {
			t.Fatalf("Values = %v, want %v", res.Values, want)
		}
	}
	if res.Upper != 8 || res.Lower != 2 {
		t.Errorf("Lower, Upper = %v, %v, want 2, 8", res.Lower, res.Upper)
	}
	if res.Clipped != 3 {
		t.Errorf("Clipped = %d, want 3", res.Clipped)
	}
	if x[0] != 10 {
		t.Error("input must not be modified")
	}
}

func TestWinsorizeAt(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	res, limit, err := WinsorizeAt(x, 6)
	if err != nil {
		t.Fatalf("WinsorizeAt() error = %v", err)
	}
	if limit != 0.25 {
		t.Errorf("limit = %v, want 0.25", limit)
	}
	if res.Upper != 6 {
		t.Errorf("Upper = %v, want 6", res.Upper)
	}
	if !math.IsInf(res.Lower, -1) {
		t.Errorf("Lower = %v, want -Inf for an untouched tail", res.Lower)
	}
	for _, v := range res.Values {
		if v > res.Upper {
			t.Errorf("value %v exceeds fitted upper %v", v, res.Upper)
		}
	}
}

func TestWinsorizeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		x       []float64
		low, up float64
	}{
		{"negative limit", []float64{1, 2}, -0.1, 0},
		{"overlapping tails", []float64{1, 2}, 0.6, 0.6},
		{"nan", []float64{1, math.NaN()}, 0, 0.1},
		{"empty", nil, 0, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Winsorize(tt.x, tt.low, tt.up); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIQRFence(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}

	tests := []struct {
		mode         FenceMode
		lower, upper float64
	}{
		{FenceAdditive, 3 - (1.5 + 4), 7 + (1.5 + 4)},
		{FenceMultiplicative, 3 - 1.5*4, 7 + 1.5*4},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f, err := IQRFence(x, tt.mode, 1.5)
			if err != nil {
				t.Fatalf("IQRFence() error = %v", err)
			}
			if f.Lower != tt.lower || f.Upper != tt.upper {
				t.Errorf("fence = [%v, %v], want [%v, %v]", f.Lower, f.Upper, tt.lower, tt.upper)
			}
			if !f.Contains(f.Upper) || f.Contains(f.Upper+0.01) {
				t.Error("fence must be closed at its bounds")
			}
		})
	}
}

func TestParseFenceMode(t *testing.T) {
	if m, err := ParseFenceMode("multiplicative"); err != nil || m != FenceMultiplicative {
		t.Errorf("ParseFenceMode(multiplicative) = %v, %v", m, err)
	}
	if _, err := ParseFenceMode("tukey"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
