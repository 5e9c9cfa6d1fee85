package dataset

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	scigoErrors "github.com/YuminosukeSato/heartrisk/pkg/errors"
	"github.com/YuminosukeSato/heartrisk/pkg/log"
)

// DefaultNaNValues are the cell contents treated as missing.
var DefaultNaNValues = []string{"", "NA", "NaN", "nan", "?"}

// Loader reads the patient table from CSV or XLSX.
type Loader struct {
	nanValues []string
	sheet     string
	logger    log.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithNaNValues overrides the tokens read as missing.
func WithNaNValues(values ...string) LoaderOption {
	return func(l *Loader) { l.nanValues = values }
}

// WithSheet selects the XLSX sheet. The first sheet is used when empty.
func WithSheet(name string) LoaderOption {
	return func(l *Loader) { l.sheet = name }
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		nanValues: DefaultNaNValues,
		logger:    log.GetLoggerWithName("dataset"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile opens path and dispatches on its extension (.xlsx or CSV otherwise).
func LoadFile(path string, opts ...LoaderOption) (*Table, error) {
	return NewLoader(opts...).LoadFile(path)
}

// LoadCSV reads a CSV with a header row using the default loader.
func LoadCSV(r io.Reader) (*Table, error) {
	return NewLoader().LoadCSV(r)
}

// LoadFile opens path and dispatches on its extension.
func (l *Loader) LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()

	l.logger.Debug("loading dataset", log.PathKey, path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return l.LoadXLSX(f)
	default:
		return l.LoadCSV(f)
	}
}

// LoadCSV parses the CSV stream through gota with every column kept as
// text, then converts and validates each row against Record.
func (l *Loader) LoadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "read dataset")
	}
	if nonEmptyLines(data) < 2 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "dataset has no data rows")
	}

	df := dataframe.ReadCSV(bytes.NewReader(data), l.readOptions()...)
	return l.fromDataFrame(df)
}

// LoadXLSX reads the configured sheet of a workbook.
func (l *Loader) LoadXLSX(r io.Reader) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "open workbook")
	}
	defer wb.Close()

	sheet := l.sheet
	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "read sheet %s", sheet)
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		records = append(records, row)
	}
	if len(records) < 2 {
		return nil, scigoErrors.Wrapf(scigoErrors.ErrEmptyData, "sheet %s has no data rows", sheet)
	}
	// excelize trims trailing empty cells.
	width := len(records[0])
	for i, row := range records {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			records[i] = padded
		}
	}

	df := dataframe.LoadRecords(records, l.readOptions()...)
	return l.fromDataFrame(df)
}

func (l *Loader) readOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(l.nanValues),
	}
}

func (l *Loader) fromDataFrame(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, scigoErrors.NewSchemaError(0, "", df.Err.Error())
	}
	if df.Nrow() == 0 {
		return nil, scigoErrors.Wrap(scigoErrors.ErrEmptyData, "dataset has no data rows")
	}

	present := make(map[string]bool, df.Ncol())
	for _, name := range df.Names() {
		present[strings.TrimSpace(name)] = true
	}
	for _, spec := range Schema {
		if !present[spec.Name] {
			return nil, scigoErrors.NewSchemaError(0, spec.Name, "missing from header")
		}
	}
	for _, name := range df.Names() {
		if _, ok := SpecFor(strings.TrimSpace(name)); !ok {
			l.logger.Warn("ignoring column outside the schema", log.ColumnKey, name)
		}
	}

	cols := make(map[string]series.Series, len(Schema))
	for _, name := range df.Names() {
		cols[strings.TrimSpace(name)] = df.Col(name)
	}

	n := df.Nrow()
	values := make([][]float64, len(Schema))
	for j := range Schema {
		values[j] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		var rec Record
		for _, spec := range Schema {
			v, err := parseCell(cols[spec.Name].Elem(i), spec, i+1)
			if err != nil {
				return nil, err
			}
			rec.set(spec.Name, v)
		}
		if err := rec.Validate(i + 1); err != nil {
			return nil, err
		}
		for j, v := range rec.Values() {
			values[j][i] = v
		}
	}

	columns := make([]Column, len(Schema))
	for j, spec := range Schema {
		columns[j] = Column{Name: spec.Name, Kind: spec.Kind, Values: values[j]}
	}
	t, err := NewTable(columns...)
	if err != nil {
		return nil, err
	}
	l.logger.Info("dataset loaded", log.SamplesKey, t.NRows(), log.FeaturesKey, t.NCols())
	return t, nil
}

func parseCell(e series.Element, spec ColumnSpec, row int) (float64, error) {
	if e.IsNA() {
		if spec.Nullable {
			return math.NaN(), nil
		}
		return 0, scigoErrors.NewSchemaError(row, spec.Name, "missing value")
	}
	v := e.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, scigoErrors.NewSchemaError(row, spec.Name, "non-numeric value "+strconv.Quote(e.String()))
	}
	if spec.Integral && v != math.Trunc(v) {
		return 0, scigoErrors.NewSchemaError(row, spec.Name, "non-integral value "+strconv.Quote(e.String()))
	}
	return v, nil
}

func nonEmptyLines(data []byte) int {
	n := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
