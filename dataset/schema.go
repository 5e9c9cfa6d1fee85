// Package dataset loads the heart-attack patient table and audits its quality.
//
// The table is column-oriented and immutable from the caller's point of
// view: every method that changes shape returns a new *Table.
package dataset

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	scigoErrors "github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// Column names of the published dataset.
const (
	ColAge      = "age"
	ColSex      = "sex"
	ColCP       = "cp"
	ColTrtbps   = "trtbps"
	ColChol     = "chol"
	ColFbs      = "fbs"
	ColRestECG  = "restecg"
	ColThalachh = "thalachh"
	ColExng     = "exng"
	ColOldpeak  = "oldpeak"
	ColSlp      = "slp"
	ColCaa      = "caa"
	ColThall    = "thall"
	ColOutput   = "output"
)

// Kind classifies a column for encoding and auditing.
type Kind int

const (
	KindNumeric Kind = iota
	KindCategorical
	KindTarget
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindTarget:
		return "target"
	default:
		return "unknown"
	}
}

// ColumnSpec describes one schema column.
type ColumnSpec struct {
	Name     string
	Kind     Kind
	Integral bool
	Nullable bool
}

// Schema lists the 14 columns in file order.
var Schema = []ColumnSpec{
	{Name: ColAge, Kind: KindNumeric, Integral: true},
	{Name: ColSex, Kind: KindCategorical, Integral: true},
	{Name: ColCP, Kind: KindCategorical, Integral: true},
	{Name: ColTrtbps, Kind: KindNumeric, Integral: true},
	{Name: ColChol, Kind: KindNumeric, Integral: true},
	{Name: ColFbs, Kind: KindCategorical, Integral: true},
	{Name: ColRestECG, Kind: KindCategorical, Integral: true},
	{Name: ColThalachh, Kind: KindNumeric, Integral: true},
	{Name: ColExng, Kind: KindCategorical, Integral: true},
	{Name: ColOldpeak, Kind: KindNumeric},
	{Name: ColSlp, Kind: KindCategorical, Integral: true},
	{Name: ColCaa, Kind: KindCategorical, Integral: true},
	{Name: ColThall, Kind: KindCategorical, Integral: true, Nullable: true},
	{Name: ColOutput, Kind: KindTarget, Integral: true},
}

// SpecFor returns the schema entry for name.
func SpecFor(name string) (ColumnSpec, bool) {
	for _, s := range Schema {
		if s.Name == name {
			return s, true
		}
	}
	return ColumnSpec{}, false
}

// Record is one patient row. Field domains are enforced by Validate.
type Record struct {
	Age       int     `csv:"age" validate:"min=1,max=120"`
	Sex       int     `csv:"sex" validate:"oneof=0 1"`
	ChestPain int     `csv:"cp" validate:"oneof=0 1 2 3"`
	RestingBP int     `csv:"trtbps" validate:"min=50,max=250"`
	Chol      int     `csv:"chol" validate:"min=50,max=700"`
	FastingBS int     `csv:"fbs" validate:"oneof=0 1"`
	RestECG   int     `csv:"restecg" validate:"oneof=0 1 2"`
	MaxHR     int     `csv:"thalachh" validate:"min=50,max=250"`
	ExAngina  int     `csv:"exng" validate:"oneof=0 1"`
	Oldpeak   float64 `csv:"oldpeak" validate:"min=0,max=10"`
	Slope     int     `csv:"slp" validate:"oneof=0 1 2"`
	Vessels   int     `csv:"caa" validate:"min=0,max=4"`
	Thal      *int    `csv:"thall" validate:"omitempty,oneof=0 1 2 3"`
	Target    int     `csv:"output" validate:"oneof=0 1"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("csv"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks every field against its domain. row is used for error
// reporting only. The first violation is returned as a SchemaError.
func (r *Record) Validate(row int) error {
	err := recordValidator().Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if scigoErrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return scigoErrors.NewSchemaError(row, fe.Field(), describeViolation(fe))
	}
	return scigoErrors.NewSchemaError(row, "", err.Error())
}

func describeViolation(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("value %v not in {%s}", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ","))
	case "min":
		return fmt.Sprintf("value %v below minimum %s", fe.Value(), fe.Param())
	case "max":
		return fmt.Sprintf("value %v above maximum %s", fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

// set assigns a parsed cell to the field for col. The caller has already
// checked integrality; NaN is only passed for nullable columns.
func (r *Record) set(col string, v float64) {
	i := int(v)
	switch col {
	case ColAge:
		r.Age = i
	case ColSex:
		r.Sex = i
	case ColCP:
		r.ChestPain = i
	case ColTrtbps:
		r.RestingBP = i
	case ColChol:
		r.Chol = i
	case ColFbs:
		r.FastingBS = i
	case ColRestECG:
		r.RestECG = i
	case ColThalachh:
		r.MaxHR = i
	case ColExng:
		r.ExAngina = i
	case ColOldpeak:
		r.Oldpeak = v
	case ColSlp:
		r.Slope = i
	case ColCaa:
		r.Vessels = i
	case ColThall:
		if math.IsNaN(v) {
			r.Thal = nil
		} else {
			r.Thal = &i
		}
	case ColOutput:
		r.Target = i
	}
}

// Values returns the record in Schema order, with NaN for a missing thall.
func (r *Record) Values() []float64 {
	thal := math.NaN()
	if r.Thal != nil {
		thal = float64(*r.Thal)
	}
	return []float64{
		float64(r.Age), float64(r.Sex), float64(r.ChestPain), float64(r.RestingBP),
		float64(r.Chol), float64(r.FastingBS), float64(r.RestECG), float64(r.MaxHR),
		float64(r.ExAngina), r.Oldpeak, float64(r.Slope), float64(r.Vessels),
		thal, float64(r.Target),
	}
}
