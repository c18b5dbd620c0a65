// Package report renders fitted models, cross-validation results, bootstrap
// and simulation summaries as aligned text, and draws the error histogram.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/YuminosukeSato/glmcv/cv"
	"github.com/YuminosukeSato/glmcv/glm"
	"github.com/YuminosukeSato/glmcv/metrics"
	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/YuminosukeSato/glmcv/resample"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
}

// errWriter remembers the first write error so the renderers can print
// unconditionally and check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func stars(p float64) string {
	switch {
	case p < 0.001:
		return "***"
	case p < 0.01:
		return "**"
	case p < 0.05:
		return "*"
	case p < 0.1:
		return "."
	}
	return ""
}

// WriteModelSummary writes the coefficient table and fit statistics of m.
func WriteModelSummary(w io.Writer, m *glm.Model) error {
	spec := m.Spec()
	ew := &errWriter{w: w}
	ew.printf("Formula: %s\n", spec.Formula())
	ew.printf("Family:  %s (link = %s)\n\n", spec.Family().Name(), spec.Family().Link().Name())

	statName := "z value"
	if !spec.Family().FixedDispersion() {
		statName = "t value"
	}
	tw := newTable(ew.w)
	fmt.Fprintf(tw, "\tEstimate\tStd. Error\t%s\tPr(>|%c|)\t\n", statName, statName[0])
	for _, c := range m.Table() {
		fmt.Fprintf(tw, "%s\t%.5f\t%.5f\t%.3f\t%.4g\t%s\n",
			c.Name, c.Estimate, c.StdErr, c.Statistic, c.PValue, stars(c.PValue))
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "write coefficient table")
	}

	ew.printf("\nNull deviance:     %.4f on %d degrees of freedom\n", m.NullDeviance(), m.DFNull())
	ew.printf("Residual deviance: %.4f on %d degrees of freedom\n", m.Deviance(), m.DFResidual())
	ew.printf("AIC: %.4f\n", m.AIC())
	ew.printf("Dispersion ratio (Pearson chi2 / df): %.4f\n", m.DispersionRatio())
	ew.printf("McFadden pseudo-R2: %.4f\n", m.McFaddenR2())
	ew.printf("Fisher scoring iterations: %d (converged: %t)\n", m.Iterations(), m.Converged())

	fit, err := metrics.Summarize(m.Observed(), m.Fitted(), m.PriorWeights())
	if err == nil {
		ew.printf("In-sample fit (weighted): MAE %.4f  RMSE %.4f  R2 %.4f\n", fit.MAE, fit.RMSE, fit.R2)
	}
	return ew.err
}

// WriteSummary writes the aggregate of a cross-validation result.
func WriteSummary(w io.Writer, res *cv.Result) error {
	ew := &errWriter{w: w}
	kind := fmt.Sprintf("%d-fold", res.Folds)
	if res.Folds == res.Len() {
		kind = "leave-one-out"
	}
	ew.printf("Cross-validation: %s, %d observations, %d refits\n", kind, res.Len(), res.Refits)
	ew.printf("Mean error:     %.6f\n", res.Mean())
	ew.printf("Std. deviation: %.6f\n", res.StdDev())
	ew.printf("Std. error:     %.6f\n", res.StdError())

	if fit, err := metrics.Summarize(res.Observed, res.Predictions, nil); err == nil {
		ew.printf("Held-out predictions: MAE %.4f  RMSE %.4f  R2 %.4f\n", fit.MAE, fit.RMSE, fit.R2)
	}
	if !res.Complete() {
		ew.printf("Missing: %d observations without an error: %v\n", len(res.Failed), res.Failed)
		for _, idx := range res.Failed {
			ew.printf("  [%d] %v\n", idx, res.Failures[idx])
		}
	}
	ew.printf("Elapsed: %s\n", res.Elapsed)
	return ew.err
}

// WriteErrors writes one line per observation: fold, observed response,
// held-out prediction and error.
func WriteErrors(w io.Writer, res *cv.Result) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "index\tfold\tobserved\tpredicted\terror\t\n")
	for i := range res.Errors {
		fmt.Fprintf(tw, "%d\t%d\t%.4f\t%s\t%s\t\n",
			i, res.Fold[i], res.Observed[i], formatMissing(res.Predictions[i]), formatMissing(res.Errors[i]))
	}
	return tw.Flush()
}

func formatMissing(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf("%.4f", v)
}

// WriteBootstrap writes the bootstrap standard errors and percentile
// intervals next to the full-data estimates.
func WriteBootstrap(w io.Writer, res *resample.BootstrapResult, level float64) error {
	lo, hi, err := res.PercentileInterval(level)
	if err != nil {
		return err
	}
	se := res.StdErrors()
	bias := res.Bias()

	ew := &errWriter{w: w}
	ew.printf("Bootstrap: %d of %d replicates succeeded\n\n", res.Len(), res.Requested)
	if ew.err != nil {
		return ew.err
	}
	pct := strings.TrimSuffix(fmt.Sprintf("%.1f", level*100), ".0")
	tw := newTable(w)
	fmt.Fprintf(tw, "\tEstimate\tBias\tStd. Error\t%s%% lower\t%s%% upper\t\n", pct, pct)
	for j, name := range res.Names {
		fmt.Fprintf(tw, "%s\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t\n",
			name, res.Estimate[j], bias[j], se[j], lo[j], hi[j])
	}
	return tw.Flush()
}

// WriteSimulation writes the posterior predictive check: per observation the
// observed response, the simulated mean and the central interval.
func WriteSimulation(w io.Writer, sim *glm.Simulation, observed []float64, level float64) error {
	lo, hi, err := sim.Interval(level)
	if err != nil {
		return err
	}
	coverage, err := sim.Coverage(observed, level)
	if err != nil {
		return err
	}
	mean := sim.Mean()

	tw := newTable(w)
	fmt.Fprintf(tw, "index\tobserved\tsimulated mean\tlower\tupper\t\n")
	for i, y := range observed {
		mark := ""
		if y < lo[i] || y > hi[i] {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.4f\t%.4f\t%s\n", i, y, mean[i], lo[i], hi[i], mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "\n%d simulations, %.1f%% of observations inside the %.0f%% interval\n",
		sim.Len(), coverage*100, level*100)
	return err
}
