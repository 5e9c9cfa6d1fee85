package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// WinsorizeResult holds a winsorized copy of the input and the values the
// tails were clamped to. A tail that was not limited reports ±Inf.
type WinsorizeResult struct {
	Values  []float64
	Lower   float64
	Upper   float64
	Clipped int
}

// Winsorize clamps the lowLimit and upLimit fractions of each tail, following
// scipy.stats.mstats.winsorize: with n values, the int(n·up) largest become
// the (n − int(n·up))-th smallest, and the int(n·low) smallest become the
// (int(n·low)+1)-th smallest.
func Winsorize(x []float64, lowLimit, upLimit float64) (*WinsorizeResult, error) {
	if lowLimit < 0 || lowLimit > 1 {
		return nil, errors.NewValidationError("lowLimit", "must be in [0, 1]", lowLimit)
	}
	if upLimit < 0 || upLimit > 1 {
		return nil, errors.NewValidationError("upLimit", "must be in [0, 1]", upLimit)
	}
	if lowLimit+upLimit > 1 {
		return nil, errors.NewValidationError("limits", "tails overlap", lowLimit+upLimit)
	}
	n := len(x)
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "winsorize empty sample")
	}
	for _, v := range x {
		if math.IsNaN(v) {
			return nil, errors.NewValueError("Winsorize", "sample contains NaN")
		}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	out := append([]float64(nil), x...)
	res := &WinsorizeResult{Values: out, Lower: math.Inf(-1), Upper: math.Inf(1)}

	if lowLimit > 0 {
		lowIdx := int(lowLimit * float64(n))
		if lowIdx > 0 {
			res.Lower = x[idx[lowIdx]]
			for _, i := range idx[:lowIdx] {
				if out[i] != res.Lower {
					res.Clipped++
				}
				out[i] = res.Lower
			}
		}
	}
	if upLimit > 0 {
		upIdx := max(n-int(float64(n)*upLimit), 1)
		if upIdx < n {
			res.Upper = x[idx[upIdx-1]]
			for _, i := range idx[upIdx:] {
				if out[i] != res.Upper {
					res.Clipped++
				}
				out[i] = res.Upper
			}
		}
	}
	return res, nil
}

// WinsorizeAt caps the upper tail at the rank of cutoff: the limit is
// 1 − percentileofscore(x, cutoff)/100. It returns the result and the limit.
func WinsorizeAt(x []float64, cutoff float64) (*WinsorizeResult, float64, error) {
	pct, err := PercentileOfScore(x, cutoff)
	if err != nil {
		return nil, 0, err
	}
	limit := 1 - pct/100
	if limit < 0 {
		limit = 0
	}
	res, err := Winsorize(x, 0, limit)
	if err != nil {
		return nil, 0, err
	}
	return res, limit, nil
}

// Clip bounds every value to [lower, upper].
func Clip(x []float64, lower, upper float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(math.Max(v, lower), upper)
	}
	return out
}
