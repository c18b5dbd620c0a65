// Package dataset provides the columnar table that models are fitted on.
//
// A Dataset is an ordered sequence of observations stored column-wise. Columns
// are either numeric or categorical. Categorical columns carry a frozen level
// set that is computed once when the column is created and inherited by every
// subset, so a level that is absent from a subset is still known to the
// model formula. This is what lets a refit notice that a level has vanished
// from a training fold.
//
// Datasets are treated as read-only: Subset and Without always return fresh
// copies and never share storage with the receiver.
package dataset

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
)

// Kind is the storage kind of a column.
type Kind int

const (
	// Numeric columns hold float64 values.
	Numeric Kind = iota
	// Categorical columns hold level codes into a fixed level set.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is a single named column.
type Column struct {
	name   string
	kind   Kind
	floats []float64
	codes  []int
	levels []string
}

// NumericColumn creates a numeric column. values is copied.
func NumericColumn(name string, values []float64) *Column {
	v := make([]float64, len(values))
	copy(v, values)
	return &Column{name: name, kind: Numeric, floats: v}
}

// CategoricalColumn creates a categorical column. When levels is empty the
// level set is the sorted set of distinct values; otherwise levels fixes the
// order (the first level is the reference level) and every value must be one
// of them.
func CategoricalColumn(name string, values []string, levels ...string) (*Column, error) {
	if len(levels) == 0 {
		seen := make(map[string]struct{}, len(values))
		for _, v := range values {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				levels = append(levels, v)
			}
		}
		sort.Strings(levels)
	}

	index := make(map[string]int, len(levels))
	for i, l := range levels {
		if _, dup := index[l]; dup {
			return nil, errors.NewDataError("dataset.CategoricalColumn", name, fmt.Sprintf("duplicate level %q", l))
		}
		index[l] = i
	}

	codes := make([]int, len(values))
	for i, v := range values {
		code, ok := index[v]
		if !ok {
			return nil, errors.NewDataError("dataset.CategoricalColumn", name,
				fmt.Sprintf("value %q at row %d is not one of the levels %v", v, i, levels))
		}
		codes[i] = code
	}

	lv := make([]string, len(levels))
	copy(lv, levels)
	return &Column{name: name, kind: Categorical, codes: codes, levels: lv}, nil
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the column kind.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of rows.
func (c *Column) Len() int {
	if c.kind == Numeric {
		return len(c.floats)
	}
	return len(c.codes)
}

// Float returns row i of a numeric column.
func (c *Column) Float(i int) float64 { return c.floats[i] }

// Code returns the level index of row i of a categorical column.
func (c *Column) Code(i int) int { return c.codes[i] }

// String returns row i rendered as text.
func (c *Column) String(i int) string {
	if c.kind == Categorical {
		return c.levels[c.codes[i]]
	}
	return fmt.Sprintf("%g", c.floats[i])
}

// Levels returns a copy of the level set of a categorical column.
func (c *Column) Levels() []string {
	out := make([]string, len(c.levels))
	copy(out, c.levels)
	return out
}

// take copies the given rows into a new column with the same level set.
func (c *Column) take(rows []int) *Column {
	out := &Column{name: c.name, kind: c.kind, levels: c.levels}
	if c.kind == Numeric {
		out.floats = make([]float64, len(rows))
		for j, r := range rows {
			out.floats[j] = c.floats[r]
		}
		return out
	}
	out.codes = make([]int, len(rows))
	for j, r := range rows {
		out.codes[j] = c.codes[r]
	}
	return out
}

// Dataset is an ordered, column-oriented set of observations.
type Dataset struct {
	columns []*Column
	index   map[string]int
	n       int
}

// New assembles columns into a Dataset. All columns must have the same length
// and distinct names.
func New(columns ...*Column) (*Dataset, error) {
	d := &Dataset{index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == nil {
			return nil, errors.NewValueError("dataset.New", fmt.Sprintf("column %d is nil", i))
		}
		if _, dup := d.index[c.name]; dup {
			return nil, errors.NewDataError("dataset.New", c.name, "duplicate column name")
		}
		if i == 0 {
			d.n = c.Len()
		} else if c.Len() != d.n {
			return nil, errors.NewDimensionError("dataset.New", d.n, c.Len(), 0)
		}
		d.index[c.name] = i
		d.columns = append(d.columns, c)
	}
	return d, nil
}

// Len returns the number of observations.
func (d *Dataset) Len() int { return d.n }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.name
	}
	return out
}

// Has reports whether the dataset has a column called name.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the named column or a DataError if it is absent.
func (d *Dataset) Column(name string) (*Column, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, errors.NewDataError("dataset.Column", name, "required field is absent")
	}
	return d.columns[i], nil
}

// Float returns a copy of a numeric column's values.
func (d *Dataset) Float(name string) ([]float64, error) {
	c, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	if c.kind != Numeric {
		return nil, errors.NewDataError("dataset.Float", name, "field is categorical, expected numeric")
	}
	out := make([]float64, len(c.floats))
	copy(out, c.floats)
	return out, nil
}

// Strings returns the values of a column rendered as text.
func (d *Dataset) Strings(name string) ([]string, error) {
	c, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.String(i)
	}
	return out, nil
}

// Subset returns a fresh dataset holding the given rows in the given order.
// Rows may repeat (bootstrap resampling relies on this).
func (d *Dataset) Subset(rows []int) (*Dataset, error) {
	for _, r := range rows {
		if r < 0 || r >= d.n {
			return nil, errors.NewValueError("dataset.Subset", fmt.Sprintf("row %d out of range [0, %d)", r, d.n))
		}
	}
	out := &Dataset{index: make(map[string]int, len(d.columns)), n: len(rows)}
	for i, c := range d.columns {
		out.columns = append(out.columns, c.take(rows))
		out.index[c.name] = i
	}
	return out, nil
}

// Without returns a fresh dataset with every row except the excluded ones,
// keeping the original order. Each excluded row is removed exactly once,
// however often it is listed.
func (d *Dataset) Without(exclude []int) (*Dataset, error) {
	drop := make([]bool, d.n)
	for _, r := range exclude {
		if r < 0 || r >= d.n {
			return nil, errors.NewValueError("dataset.Without", fmt.Sprintf("row %d out of range [0, %d)", r, d.n))
		}
		drop[r] = true
	}
	keep := make([]int, 0, d.n)
	for i, dropped := range drop {
		if !dropped {
			keep = append(keep, i)
		}
	}
	return d.Subset(keep)
}

// WithColumn returns a dataset with c appended, or replacing the column of
// the same name. The receiver is not modified.
func (d *Dataset) WithColumn(c *Column) (*Dataset, error) {
	cols := make([]*Column, 0, len(d.columns)+1)
	replaced := false
	for _, existing := range d.columns {
		if existing.name == c.name {
			cols = append(cols, c)
			replaced = true
			continue
		}
		cols = append(cols, existing)
	}
	if !replaced {
		cols = append(cols, c)
	}
	return New(cols...)
}
