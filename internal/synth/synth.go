// Package synth generates schema-valid synthetic patient tables for tests.
// The outcome depends on the features the way it does in the published
// dataset, so classifiers trained on it score well above chance.
package synth

import (
	"bytes"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/heartrisk/dataset"
)

// Rows draws n patient records from a fixed seed.
func Rows(n int, seed uint64) []dataset.Record {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]dataset.Record, n)
	for i := range out {
		out[i] = patient(rng)
	}
	return out
}

func patient(rng *rand.Rand) dataset.Record {
	target := 0
	if rng.Float64() < 0.54 {
		target = 1
	}
	pos := target == 1
	pick := func(pPos, pNeg float64) int {
		p := pNeg
		if pos {
			p = pPos
		}
		if rng.Float64() < p {
			return 1
		}
		return 0
	}

	r := dataset.Record{
		Age:       clampInt(int(math.Round(rng.NormFloat64()*9+54-3*float64(target))), 29, 77),
		Sex:       pick(0.56, 0.83),
		RestingBP: clampInt(int(math.Round(rng.NormFloat64()*17+131)), 94, 200),
		Chol:      clampInt(int(math.Round(rng.NormFloat64()*50+246)), 126, 564),
		FastingBS: pick(0.14, 0.16),
		RestECG:   rng.IntN(2),
		ExAngina:  pick(0.14, 0.55),
		Target:    target,
	}
	if rng.Float64() < 0.02 {
		r.RestECG = 2
	}
	if pos {
		r.ChestPain = []int{0, 1, 1, 2, 2, 2, 3}[rng.IntN(7)]
		r.MaxHR = clampInt(int(math.Round(rng.NormFloat64()*19+158)), 96, 202)
		r.Oldpeak = math.Round(math.Abs(rng.NormFloat64())*0.8*10) / 10
		r.Slope = []int{0, 1, 2, 2, 2}[rng.IntN(5)]
		r.Vessels = []int{0, 0, 0, 0, 0, 1, 2}[rng.IntN(7)]
		r.Thal = intPtr([]int{2, 2, 2, 2, 3, 1}[rng.IntN(6)])
	} else {
		r.ChestPain = []int{0, 0, 0, 0, 1, 2}[rng.IntN(6)]
		r.MaxHR = clampInt(int(math.Round(rng.NormFloat64()*23+139)), 71, 195)
		r.Oldpeak = math.Round(math.Abs(rng.NormFloat64())*1.6*10) / 10
		r.Slope = []int{1, 1, 1, 2, 0}[rng.IntN(5)]
		r.Vessels = []int{0, 1, 1, 2, 2, 3}[rng.IntN(6)]
		r.Thal = intPtr([]int{3, 3, 3, 2, 1}[rng.IntN(5)])
	}
	if r.Oldpeak > 6.2 {
		r.Oldpeak = 6.2
	}
	switch x := rng.Float64(); {
	case x < 0.01:
		r.Thal = intPtr(0)
	case x < 0.02:
		r.Vessels = 4
	}
	return r
}

// CSV renders records with the published header. A missing thall is
// written as NaN.
func CSV(records []dataset.Record) []byte {
	header := make([]string, len(dataset.Schema))
	for i, s := range dataset.Schema {
		header[i] = s.Name
	}
	rows := [][]string{header}
	for _, r := range records {
		vals := r.Values()
		row := make([]string, len(vals))
		for j, v := range vals {
			row[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		rows = append(rows, row)
	}

	df := dataframe.LoadRecords(rows,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	var buf bytes.Buffer
	if err := df.WriteCSV(&buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Table loads n synthetic records through the CSV loader.
func Table(n int, seed uint64) (*dataset.Table, error) {
	return dataset.LoadCSV(bytes.NewReader(CSV(Rows(n, seed))))
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func intPtr(v int) *int { return &v }
