package cv

import (
	"math"
	"time"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Result holds one held-out error per observation, index-aligned with the
// evaluated dataset.
type Result struct {
	// Errors[i] is the cost at observation i, NaN if its fold failed.
	Errors []float64
	// Predictions[i] is the held-out prediction for observation i on the
	// response scale, NaN if its fold failed.
	Predictions []float64
	// Observed[i] is the observed response.
	Observed []float64
	// Fold[i] is the fold that held out observation i.
	Fold []int

	// Failed lists the observations without an error, in ascending order.
	// It is only populated in partial-results mode.
	Failed []int
	// Failures maps each failed observation to the error of its fold.
	Failures errors.FoldErrors

	// Folds is the number of folds, Refits the number of successful refits.
	Folds  int
	Refits int
	// TrainSizes[f] is the number of training rows of fold f.
	TrainSizes []int

	Elapsed time.Duration
}

func newResult(n, folds int, observed []float64) *Result {
	r := &Result{
		Errors:      make([]float64, n),
		Predictions: make([]float64, n),
		Observed:    observed,
		Fold:        make([]int, n),
		Failures:    make(errors.FoldErrors),
		Folds:       folds,
		TrainSizes:  make([]int, folds),
	}
	for i := range r.Errors {
		r.Errors[i] = math.NaN()
		r.Predictions[i] = math.NaN()
	}
	return r
}

// Len returns the number of observations.
func (r *Result) Len() int { return len(r.Errors) }

// Valid returns the errors of the observations whose fold succeeded.
func (r *Result) Valid() []float64 {
	out := make([]float64, 0, len(r.Errors))
	for i, e := range r.Errors {
		if _, failed := r.Failures[i]; failed || math.IsNaN(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Complete reports whether every observation has an error.
func (r *Result) Complete() bool { return len(r.Failed) == 0 }

// Mean is the cross-validation estimate: the arithmetic mean of the valid
// errors. It is NaN when no observation has an error.
func (r *Result) Mean() float64 {
	v := r.Valid()
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// StdDev is the sample standard deviation of the valid errors.
func (r *Result) StdDev() float64 {
	v := r.Valid()
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdDev(v, nil)
}

// StdError is the standard error of Mean.
func (r *Result) StdError() float64 {
	v := r.Valid()
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdDev(v, nil) / math.Sqrt(float64(len(v)))
}
