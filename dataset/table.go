package dataset

import (
	"maps"
	"slices"

	scigoErrors "github.com/YuminosukeSato/heartrisk/pkg/errors"
)

// Column is a named float64 column. NaN marks a missing value.
type Column struct {
	Name   string
	Kind   Kind
	Values []float64
}

// Table is an ordered set of equal-length columns plus Attrs, the fitted
// stage parameters carried along the table's lineage.
type Table struct {
	columns []Column
	index   map[string]int
	attrs   map[string]float64
}

// NewTable builds a table from columns. Values are copied.
func NewTable(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols)), attrs: map[string]float64{}}
	for _, c := range cols {
		if _, dup := t.index[c.Name]; dup {
			return nil, scigoErrors.NewValueError("NewTable", "duplicate column "+c.Name)
		}
		if len(t.columns) > 0 && len(c.Values) != len(t.columns[0].Values) {
			return nil, scigoErrors.NewDimensionError("NewTable", len(t.columns[0].Values), len(c.Values), 0)
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, Column{Name: c.Name, Kind: c.Kind, Values: slices.Clone(c.Values)})
	}
	return t, nil
}

// NRows returns the number of rows.
func (t *Table) NRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Values)
}

// NCols returns the number of columns.
func (t *Table) NCols() int { return len(t.columns) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) (Column, error) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, scigoErrors.NewColumnNotFoundError("Table.Column", name)
	}
	c := t.columns[i]
	return Column{Name: c.Name, Kind: c.Kind, Values: slices.Clone(c.Values)}, nil
}

// Col returns a copy of the named column's values.
func (t *Table) Col(name string) ([]float64, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	return c.Values, nil
}

// Columns returns copies of all columns in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	for i, c := range t.columns {
		out[i] = Column{Name: c.Name, Kind: c.Kind, Values: slices.Clone(c.Values)}
	}
	return out
}

// Attr returns a fitted parameter recorded on the table.
func (t *Table) Attr(key string) (float64, bool) {
	v, ok := t.attrs[key]
	return v, ok
}

// Attrs returns a copy of all recorded parameters.
func (t *Table) Attrs() map[string]float64 {
	return maps.Clone(t.attrs)
}

// WithAttr returns a copy of the table with key set.
func (t *Table) WithAttr(key string, v float64) *Table {
	out := t.Clone()
	out.attrs[key] = v
	return out
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		columns: make([]Column, len(t.columns)),
		index:   maps.Clone(t.index),
		attrs:   maps.Clone(t.attrs),
	}
	for i, c := range t.columns {
		out.columns[i] = Column{Name: c.Name, Kind: c.Kind, Values: slices.Clone(c.Values)}
	}
	if out.index == nil {
		out.index = map[string]int{}
	}
	if out.attrs == nil {
		out.attrs = map[string]float64{}
	}
	return out
}

// Drop returns a table without the named columns. Every name must exist.
func (t *Table) Drop(names ...string) (*Table, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if !t.Has(n) {
			return nil, scigoErrors.NewColumnNotFoundError("Table.Drop", n)
		}
		drop[n] = true
	}
	kept := make([]Column, 0, len(t.columns))
	for _, c := range t.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	out, err := NewTable(kept...)
	if err != nil {
		return nil, err
	}
	out.attrs = maps.Clone(t.attrs)
	return out, nil
}

// WithColumn returns a table with c replacing the column of the same name,
// or appended at the end when the name is new.
func (t *Table) WithColumn(c Column) (*Table, error) {
	if len(t.columns) > 0 && len(c.Values) != t.NRows() {
		return nil, scigoErrors.NewDimensionError("Table.WithColumn", t.NRows(), len(c.Values), 0)
	}
	out := t.Clone()
	nc := Column{Name: c.Name, Kind: c.Kind, Values: slices.Clone(c.Values)}
	if i, ok := out.index[c.Name]; ok {
		out.columns[i] = nc
		return out, nil
	}
	out.index[c.Name] = len(out.columns)
	out.columns = append(out.columns, nc)
	return out, nil
}

// FilterRows returns a table with only the rows for which keep returns true.
func (t *Table) FilterRows(keep func(row int) bool) *Table {
	out := t.Clone()
	var rows []int
	for i := 0; i < t.NRows(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	for ci, c := range t.columns {
		vals := make([]float64, len(rows))
		for k, r := range rows {
			vals[k] = c.Values[r]
		}
		out.columns[ci].Values = vals
	}
	return out
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []float64 {
	row := make([]float64, len(t.columns))
	for j, c := range t.columns {
		row[j] = c.Values[i]
	}
	return row
}

// Equal reports whether both tables have the same columns, kinds, values
// and attrs. NaN equals NaN.
func (t *Table) Equal(o *Table) bool {
	if !slices.Equal(t.Names(), o.Names()) || !maps.Equal(t.attrs, o.attrs) {
		return false
	}
	for i, c := range t.columns {
		oc := o.columns[i]
		if c.Kind != oc.Kind || !slices.EqualFunc(c.Values, oc.Values, sameFloat) {
			return false
		}
	}
	return true
}

func sameFloat(a, b float64) bool {
	return a == b || (a != a && b != b)
}
