package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/YuminosukeSato/heartrisk/pkg/errors"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(
		Column{Name: "a", Kind: KindNumeric, Values: []float64{1, 2, 3}},
		Column{Name: "b", Kind: KindCategorical, Values: []float64{0, 1, math.NaN()}},
		Column{Name: "y", Kind: KindTarget, Values: []float64{1, 0, 1}},
	)
	require.NoError(t, err)
	return tbl
}

func TestNewTableRejectsRaggedColumns(t *testing.T) {
	_, err := NewTable(
		Column{Name: "a", Values: []float64{1, 2}},
		Column{Name: "b", Values: []float64{1}},
	)
	var dimErr *scigoErrors.DimensionError
	assert.True(t, scigoErrors.As(err, &dimErr))

	_, err = NewTable(Column{Name: "a"}, Column{Name: "a"})
	assert.Error(t, err)
}

func TestTableDrop(t *testing.T) {
	tbl := newTestTable(t)

	out, err := tbl.Drop("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "y"}, out.Names())
	assert.Equal(t, []string{"a", "b", "y"}, tbl.Names(), "input must not change")

	_, err = tbl.Drop("missing")
	var colErr *scigoErrors.ColumnNotFoundError
	require.True(t, scigoErrors.As(err, &colErr))
	assert.Equal(t, "missing", colErr.Column)
}

func TestTableWithColumn(t *testing.T) {
	tbl := newTestTable(t)

	out, err := tbl.WithColumn(Column{Name: "c", Kind: KindNumeric, Values: []float64{7, 8, 9}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "y", "c"}, out.Names())

	replaced, err := out.WithColumn(Column{Name: "a", Kind: KindNumeric, Values: []float64{0, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "y", "c"}, replaced.Names())
	a, _ := replaced.Col("a")
	assert.Equal(t, []float64{0, 0, 0}, a)

	orig, _ := tbl.Col("a")
	assert.Equal(t, []float64{1, 2, 3}, orig)

	_, err = tbl.WithColumn(Column{Name: "short", Values: []float64{1}})
	assert.Error(t, err)
}

func TestTableFilterRows(t *testing.T) {
	tbl := newTestTable(t).WithAttr("fence.lower", 1.5)

	out := tbl.FilterRows(func(i int) bool { return i != 1 })
	assert.Equal(t, 2, out.NRows())
	assert.Equal(t, 3, tbl.NRows())

	y, _ := out.Col("y")
	assert.Equal(t, []float64{1, 1}, y)

	v, ok := out.Attr("fence.lower")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestTableColReturnsCopy(t *testing.T) {
	tbl := newTestTable(t)

	a, err := tbl.Col("a")
	require.NoError(t, err)
	a[0] = 100

	again, _ := tbl.Col("a")
	assert.Equal(t, 1.0, again[0])
}

func TestTableEqual(t *testing.T) {
	a := newTestTable(t)
	b := newTestTable(t)
	assert.True(t, a.Equal(b), "NaN cells compare equal")

	assert.False(t, a.Equal(b.WithAttr("k", 1)))

	c, err := b.WithColumn(Column{Name: "a", Kind: KindNumeric, Values: []float64{1, 2, 4}})
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}
