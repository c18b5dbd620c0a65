package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
)

type csvConfig struct {
	categorical map[string]bool
	levels      map[string][]string
	comma       rune
}

// CSVOption configures ReadCSV.
type CSVOption func(*csvConfig)

// WithCategorical forces the named columns to be categorical even when every
// value parses as a number.
func WithCategorical(names ...string) CSVOption {
	return func(c *csvConfig) {
		for _, n := range names {
			c.categorical[n] = true
		}
	}
}

// WithLevels fixes the level order of a categorical column; the first level
// becomes the reference level.
func WithLevels(name string, levels ...string) CSVOption {
	return func(c *csvConfig) {
		c.categorical[name] = true
		c.levels[name] = levels
	}
}

// WithComma sets the field delimiter.
func WithComma(r rune) CSVOption {
	return func(c *csvConfig) {
		c.comma = r
	}
}

// ReadCSV reads a dataset from CSV with a header row. A column is numeric
// when every value parses as a float and it is not forced categorical.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Dataset, error) {
	cfg := &csvConfig{
		categorical: make(map[string]bool),
		levels:      make(map[string][]string),
		comma:       ',',
	}
	for _, opt := range opts {
		opt(cfg)
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "dataset.ReadCSV: parse")
	}
	if len(records) == 0 {
		return nil, errors.NewDataError("dataset.ReadCSV", "", "missing header row")
	}

	header := records[0]
	rows := records[1:]
	for name := range cfg.categorical {
		if !contains(header, name) {
			return nil, errors.NewDataError("dataset.ReadCSV", name, "required field is absent")
		}
	}

	columns := make([]*Column, 0, len(header))
	for j, rawName := range header {
		name := strings.TrimSpace(rawName)
		values := make([]string, len(rows))
		for i, rec := range rows {
			values[i] = strings.TrimSpace(rec[j])
		}

		if !cfg.categorical[name] {
			if floats, ok := parseFloats(values); ok {
				columns = append(columns, NumericColumn(name, floats))
				continue
			}
		}
		col, err := CategoricalColumn(name, values, cfg.levels[name]...)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return New(columns...)
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string, opts ...CSVOption) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset.LoadCSV: open %s", path)
	}
	defer f.Close()

	d, err := ReadCSV(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset.LoadCSV: %s", path)
	}
	return d, nil
}

// WriteCSV writes the dataset with a header row.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Names()); err != nil {
		return err
	}
	rec := make([]string, len(d.columns))
	for i := 0; i < d.n; i++ {
		for j, c := range d.columns {
			if c.kind == Numeric {
				rec[j] = strconv.FormatFloat(c.floats[i], 'g', -1, 64)
			} else {
				rec[j] = c.String(i)
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("dataset.WriteCSV: row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseFloats(values []string) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.TrimSpace(v) == s {
			return true
		}
	}
	return false
}
