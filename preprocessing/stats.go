package preprocessing

import (
	"math"
	"slices"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// Quantile returns the q-th quantile of x with linear interpolation between
// the two nearest order statistics, h = (n-1)q. This matches numpy's
// default method. NaN values are ignored.
func Quantile(x []float64, q float64) (float64, error) {
	if q < 0 || q > 1 || math.IsNaN(q) {
		return 0, errors.NewValidationError("q", "must be in [0, 1]", q)
	}
	sorted := sortedFinite(x)
	if len(sorted) == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "quantile of empty sample")
	}
	return quantileSorted(sorted, q), nil
}

// Median is Quantile(x, 0.5).
func Median(x []float64) (float64, error) {
	return Quantile(x, 0.5)
}

func quantileSorted(sorted []float64, q float64) float64 {
	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// PercentileOfScore returns the percentile rank (0-100) of score relative
// to x. Ties get the mean of the strict and weak ranks, as scipy's
// percentileofscore with kind="rank".
func PercentileOfScore(x []float64, score float64) (float64, error) {
	if len(x) == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "percentile of empty sample")
	}
	left, right := 0, 0
	for _, v := range x {
		if v < score {
			left++
		}
		if v <= score {
			right++
		}
	}
	plus1 := 0
	if left < right {
		plus1 = 1
	}
	return float64(left+right+plus1) * (50.0 / float64(len(x))), nil
}

func sortedFinite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
