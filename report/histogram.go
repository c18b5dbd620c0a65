package report

import (
	"math"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DefaultBins is the histogram bin count used by the CLI.
const DefaultBins = 10

// Histogram draws a histogram of values. Missing values (NaN) are skipped.
func Histogram(values []float64, bins int, title string) (*plot.Plot, error) {
	if bins < 1 {
		return nil, errors.NewValidationError("bins", "must be positive", bins)
	}
	v := make(plotter.Values, 0, len(values))
	for _, x := range values {
		if !math.IsNaN(x) {
			v = append(v, x)
		}
	}
	if len(v) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "report.Histogram")
	}

	h, err := plotter.NewHist(v, bins)
	if err != nil {
		return nil, errors.Wrap(err, "report.Histogram")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "held-out error"
	p.Y.Label.Text = "count"
	p.Add(h)
	return p, nil
}

// SaveHistogram draws the histogram and writes it to path. The file
// extension selects the format (.png, .svg, .pdf, ...).
func SaveHistogram(values []float64, bins int, title, path string) error {
	p, err := Histogram(values, bins, title)
	if err != nil {
		return err
	}
	if err := p.Save(4*vg.Inch, 3*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save histogram to %s", path)
	}
	return nil
}
