package dataset

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
)

// WithProportion derives a proportion response and its trial-count weight
// from two count columns: resp = successes/(successes+failures) and
// trials = successes+failures. Rows with zero trials are rejected because
// their proportion is undefined.
func (d *Dataset) WithProportion(resp, successes, failures, trials string) (*Dataset, error) {
	s, err := d.Float(successes)
	if err != nil {
		return nil, err
	}
	f, err := d.Float(failures)
	if err != nil {
		return nil, err
	}

	props := make([]float64, d.n)
	totals := make([]float64, d.n)
	for i := range props {
		if s[i] < 0 || f[i] < 0 {
			return nil, errors.NewDataError("dataset.WithProportion", successes,
				fmt.Sprintf("negative count at row %d", i))
		}
		totals[i] = s[i] + f[i]
		if totals[i] == 0 {
			return nil, errors.NewDataError("dataset.WithProportion", trials,
				fmt.Sprintf("zero trials at row %d", i))
		}
		props[i] = s[i] / totals[i]
	}

	out, err := d.WithColumn(NumericColumn(resp, props))
	if err != nil {
		return nil, err
	}
	return out.WithColumn(NumericColumn(trials, totals))
}

// ValidateBinomial checks that resp holds proportions in [0,1] and, when
// weights is non-empty, that weights holds positive integer trial counts.
func (d *Dataset) ValidateBinomial(resp, weights string) error {
	y, err := d.Float(resp)
	if err != nil {
		return err
	}
	for i, v := range y {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return errors.NewDataError("dataset.ValidateBinomial", resp,
				fmt.Sprintf("value %g outside [0,1] at row %d", v, i))
		}
	}
	if weights == "" {
		return nil
	}
	w, err := d.Float(weights)
	if err != nil {
		return err
	}
	for i, v := range w {
		if v <= 0 || v != math.Trunc(v) || math.IsInf(v, 0) {
			return errors.NewDataError("dataset.ValidateBinomial", weights,
				fmt.Sprintf("weight %g at row %d is not a positive integer", v, i))
		}
	}
	return nil
}
