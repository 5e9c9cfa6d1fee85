package preprocessing

import (
	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// FenceMode selects how the IQR widens the quartiles.
type FenceMode int

const (
	// FenceAdditive uses Q1 − (k + IQR) and Q3 + (k + IQR).
	FenceAdditive FenceMode = iota
	// FenceMultiplicative uses Tukey's Q1 − k·IQR and Q3 + k·IQR.
	FenceMultiplicative
)

func (m FenceMode) String() string {
	if m == FenceMultiplicative {
		return "multiplicative"
	}
	return "additive"
}

// ParseFenceMode accepts "additive" or "multiplicative".
func ParseFenceMode(s string) (FenceMode, error) {
	switch s {
	case "additive", "":
		return FenceAdditive, nil
	case "multiplicative":
		return FenceMultiplicative, nil
	default:
		return 0, errors.NewValidationError("fence_mode", "must be additive or multiplicative", s)
	}
}

// Fence is an interval outside which values are outliers.
type Fence struct {
	Q1, Q3       float64
	Lower, Upper float64
}

// Contains reports whether v lies inside the closed fence.
func (f Fence) Contains(v float64) bool {
	return v >= f.Lower && v <= f.Upper
}

// IQRFence fits the fence from the numpy-linear quartiles of x.
func IQRFence(x []float64, mode FenceMode, k float64) (Fence, error) {
	q1, err := Quantile(x, 0.25)
	if err != nil {
		return Fence{}, err
	}
	q3, err := Quantile(x, 0.75)
	if err != nil {
		return Fence{}, err
	}
	iqr := q3 - q1
	width := k + iqr
	if mode == FenceMultiplicative {
		width = k * iqr
	}
	return Fence{Q1: q1, Q3: q3, Lower: q1 - width, Upper: q3 + width}, nil
}
