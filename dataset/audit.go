package dataset

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	scigoErrors "github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/preprocessing"
)

// ColumnQuality is the audit result for one column.
type ColumnQuality struct {
	Column  string `yaml:"column"`
	Missing int    `yaml:"missing"`
	Unique  int    `yaml:"unique"`
}

// QualityReport lists per-column missing and distinct-value counts.
type QualityReport struct {
	Rows    int             `yaml:"rows"`
	Columns []ColumnQuality `yaml:"columns"`
}

// Get returns the entry for column.
func (q *QualityReport) Get(column string) (ColumnQuality, bool) {
	for _, c := range q.Columns {
		if c.Column == column {
			return c, true
		}
	}
	return ColumnQuality{}, false
}

// Audit counts NaN cells and distinct non-missing values for the given
// columns, or for every column when none are named.
func Audit(t *Table, columns ...string) (*QualityReport, error) {
	if len(columns) == 0 {
		columns = t.Names()
	}
	report := &QualityReport{Rows: t.NRows(), Columns: make([]ColumnQuality, 0, len(columns))}
	for _, name := range columns {
		vals, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		q := ColumnQuality{Column: name}
		seen := make(map[float64]struct{})
		for _, v := range vals {
			if math.IsNaN(v) {
				q.Missing++
				continue
			}
			seen[v] = struct{}{}
		}
		q.Unique = len(seen)
		report.Columns = append(report.Columns, q)
	}
	return report, nil
}

// Summary is the describe() row for one numeric column.
type Summary struct {
	Column string  `yaml:"column"`
	Count  int     `yaml:"count"`
	Mean   float64 `yaml:"mean"`
	Std    float64 `yaml:"std"`
	Min    float64 `yaml:"min"`
	Q25    float64 `yaml:"q25"`
	Q50    float64 `yaml:"q50"`
	Q75    float64 `yaml:"q75"`
	Max    float64 `yaml:"max"`
}

// Describe summarizes each column, ignoring NaN. Std is the sample standard
// deviation and quartiles interpolate linearly.
func Describe(t *Table, columns ...string) ([]Summary, error) {
	if len(columns) == 0 {
		columns = t.Names()
	}
	out := make([]Summary, 0, len(columns))
	for _, name := range columns {
		vals, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		x := finite(vals)
		s := Summary{Column: name, Count: len(x)}
		if len(x) > 0 {
			s.Mean, s.Std = stat.MeanStdDev(x, nil)
			s.Min, s.Max = floats.Min(x), floats.Max(x)
			s.Q25, _ = preprocessing.Quantile(x, 0.25)
			s.Q50, _ = preprocessing.Quantile(x, 0.5)
			s.Q75, _ = preprocessing.Quantile(x, 0.75)
		}
		out = append(out, s)
	}
	return out, nil
}

// ValueCount is one entry of ValueCounts.
type ValueCount struct {
	Value float64 `yaml:"value"`
	Count int     `yaml:"count"`
}

// ValueCounts returns the frequency of each non-missing value, most frequent
// first and ties by ascending value.
func ValueCounts(t *Table, column string) ([]ValueCount, error) {
	vals, err := t.Col(column)
	if err != nil {
		return nil, err
	}
	counts := map[float64]int{}
	for _, v := range vals {
		if !math.IsNaN(v) {
			counts[v]++
		}
	}
	out := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	slices.SortFunc(out, func(a, b ValueCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out, nil
}

// Skewness returns the bias-corrected sample skewness per column.
func Skewness(t *Table, columns ...string) (map[string]float64, error) {
	out := make(map[string]float64, len(columns))
	for _, name := range columns {
		vals, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		out[name] = SampleSkewness(finite(vals))
	}
	return out, nil
}

// SampleSkewness is the adjusted Fisher-Pearson coefficient used by pandas.
func SampleSkewness(x []float64) float64 {
	if len(x) < 3 {
		return math.NaN()
	}
	return stat.Skew(x, nil)
}

// ZScoreExceedance is the number of rows whose z-score exceeds Threshold.
type ZScoreExceedance struct {
	Threshold float64 `yaml:"threshold"`
	Count     int     `yaml:"count"`
}

// ZScoreExceedances counts rows with (x − mean)/σ > threshold, σ being the
// population standard deviation.
func ZScoreExceedances(t *Table, column string, thresholds ...float64) ([]ZScoreExceedance, error) {
	vals, err := t.Col(column)
	if err != nil {
		return nil, err
	}
	x := finite(vals)
	mean, std := stat.PopMeanStdDev(x, nil)
	out := make([]ZScoreExceedance, len(thresholds))
	for i, th := range thresholds {
		out[i].Threshold = th
		if std == 0 {
			continue
		}
		for _, v := range x {
			if (v-mean)/std > th {
				out[i].Count++
			}
		}
	}
	return out, nil
}

// Correlation returns the Pearson correlation matrix of the columns, in the
// order given. Rows with a NaN in any requested column are skipped.
func Correlation(t *Table, columns ...string) (*mat.SymDense, error) {
	if len(columns) == 0 {
		columns = t.Names()
	}
	data := make([][]float64, len(columns))
	for j, name := range columns {
		vals, err := t.Col(name)
		if err != nil {
			return nil, err
		}
		data[j] = vals
	}

	var rows []int
	for i := 0; i < t.NRows(); i++ {
		complete := true
		for j := range data {
			if math.IsNaN(data[j][i]) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}

	if len(rows) < 2 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "correlation needs at least two complete rows")
	}
	m := mat.NewDense(len(rows), len(columns), nil)
	for k, i := range rows {
		for j := range data {
			m.Set(k, j, data[j][i])
		}
	}
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, m, nil)
	return &corr, nil
}

func finite(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
