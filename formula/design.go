package formula

import (
	"fmt"

	"github.com/YuminosukeSato/glmcv/core/parallel"
	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// InterceptName is the design column name of the intercept.
const InterceptName = "(Intercept)"

// parallelThreshold is the row count above which design rows are filled
// concurrently.
const parallelThreshold = 1000

// component is one coded piece of a variable: the value itself for numeric
// variables, or the indicator of one level for categorical variables.
type component struct {
	variable string
	kind     dataset.Kind
	level    int // level index for categorical components
	label    string
}

// designColumn is the product of one component per variable of a term.
type designColumn struct {
	name  string
	parts []component
}

// Design is the frozen column layout derived from a formula and a reference
// dataset. Categorical variables use treatment coding against their first
// level; the level sets are captured here so every dataset coded with the
// same Design yields identical columns, including levels it does not contain.
type Design struct {
	formula *Formula
	columns []designColumn
	levels  map[string][]string
	kinds   map[string]dataset.Kind
}

// Design derives the column layout of f from ds.
func (f *Formula) Design(ds *dataset.Dataset) (*Design, error) {
	d := &Design{
		formula: f,
		levels:  make(map[string][]string),
		kinds:   make(map[string]dataset.Kind),
	}
	for _, v := range f.Variables() {
		col, err := ds.Column(v)
		if err != nil {
			return nil, err
		}
		d.kinds[v] = col.Kind()
		if col.Kind() == dataset.Categorical {
			d.levels[v] = col.Levels()
		}
	}

	if f.Intercept {
		d.columns = append(d.columns, designColumn{name: InterceptName})
	}

	for ti, t := range f.Terms {
		// without an intercept the first categorical main effect is coded
		// with one indicator per level
		fullCoding := !f.Intercept && ti == 0 && len(t.Vars) == 1 && d.kinds[t.Vars[0]] == dataset.Categorical

		combos := [][]component{{}}
		for _, v := range t.Vars {
			comps := d.components(v, fullCoding)
			if len(comps) == 0 {
				return nil, errors.NewDataError("formula.Design", v, "categorical variable has a single level")
			}
			next := make([][]component, 0, len(combos)*len(comps))
			for _, prefix := range combos {
				for _, c := range comps {
					combo := make([]component, len(prefix), len(prefix)+1)
					copy(combo, prefix)
					next = append(next, append(combo, c))
				}
			}
			combos = next
		}
		for _, combo := range combos {
			name := ""
			for i, c := range combo {
				if i > 0 {
					name += ":"
				}
				name += c.label
			}
			d.columns = append(d.columns, designColumn{name: name, parts: combo})
		}
	}
	return d, nil
}

func (d *Design) components(v string, fullCoding bool) []component {
	if d.kinds[v] == dataset.Numeric {
		return []component{{variable: v, kind: dataset.Numeric, label: v}}
	}
	levels := d.levels[v]
	start := 1
	if fullCoding {
		start = 0
	}
	var out []component
	for i := start; i < len(levels); i++ {
		out = append(out, component{
			variable: v,
			kind:     dataset.Categorical,
			level:    i,
			label:    fmt.Sprintf("%s[%s]", v, levels[i]),
		})
	}
	return out
}

// Formula returns the formula the design was derived from.
func (d *Design) Formula() *Formula { return d.formula }

// Names returns the design column names.
func (d *Design) Names() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.name
	}
	return out
}

// NumColumns returns the number of design columns (model parameters).
func (d *Design) NumColumns() int { return len(d.columns) }

// Matrix codes ds into an n×p design matrix. ds must carry every variable of
// the formula with the kind seen when the design was derived; categorical
// values are matched to the frozen levels by name.
func (d *Design) Matrix(ds *dataset.Dataset) (*mat.Dense, error) {
	n := ds.Len()
	p := len(d.columns)
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "formula.Matrix")
	}

	// resolve every variable to per-row level codes or values up front
	codes := make(map[string][]int)
	values := make(map[string][]float64)
	for v, kind := range d.kinds {
		col, err := ds.Column(v)
		if err != nil {
			return nil, err
		}
		if col.Kind() != kind {
			return nil, errors.NewDataError("formula.Matrix", v,
				fmt.Sprintf("expected %s column, got %s", kind, col.Kind()))
		}
		if kind == dataset.Numeric {
			values[v], _ = ds.Float(v)
			continue
		}
		index := make(map[string]int, len(d.levels[v]))
		for i, l := range d.levels[v] {
			index[l] = i
		}
		rowCodes := make([]int, n)
		for i := 0; i < n; i++ {
			code, ok := index[col.String(i)]
			if !ok {
				return nil, errors.NewDataError("formula.Matrix", v,
					fmt.Sprintf("level %q at row %d was not seen when the design was built", col.String(i), i))
			}
			rowCodes[i] = code
		}
		codes[v] = rowCodes
	}

	X := mat.NewDense(n, p, nil)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j, c := range d.columns {
				x := 1.0
				for _, part := range c.parts {
					if part.kind == dataset.Numeric {
						x *= values[part.variable][i]
					} else if codes[part.variable][i] != part.level {
						x = 0
						break
					}
				}
				X.Set(i, j, x)
			}
		}
	})
	return X, nil
}

// ResponseValues returns the response column of ds.
func (f *Formula) ResponseValues(ds *dataset.Dataset) ([]float64, error) {
	return ds.Float(f.Response)
}
