// Package glmcv estimates the prediction error of generalized linear models
// by cross-validation.
//
// A model is described by a formula and a family. It is fitted by
// iteratively reweighted least squares and evaluated by leave-one-out or
// K-fold cross-validation: each fold is refitted without its held-out rows
// and the held-out responses are scored with a cost function. Failing folds
// are reported with the observation that caused them.
//
// # Features
//
//   - Binomial (logit), Poisson (log) and Gaussian (identity) families
//   - Factor predictors with treatment coding and interactions
//   - Leave-one-out and K-fold cross-validation with concurrent refits
//   - Partial results: failing folds are recorded instead of aborting
//   - Case-resampling bootstrap and posterior predictive simulation
//
// # Quick Start
//
// Leave-one-out error of a binomial model of the lizard perch data:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/glmcv/cv"
//	    "github.com/YuminosukeSato/glmcv/dataset"
//	    "github.com/YuminosukeSato/glmcv/glm"
//	)
//
//	func main() {
//	    ds, err := dataset.LoadLizards()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    spec, err := glm.NewSpec("gfrac ~ height*diameter + light + time",
//	        glm.Binomial(), glm.WithWeights("n"))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    res, err := cv.LeaveOneOut(context.Background(), spec, ds, cv.AbsoluteError,
//	        cv.WithWorkers(4))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("LOO mean absolute error: %.4f\n", res.Mean())
//	}
//
// # Packages
//
//   - dataset: columnar data with frozen factor levels, CSV input
//   - formula: model formulas and design matrices
//   - glm: IRLS fitting, diagnostics and simulation
//   - cv: the cross-validation evaluator, splitters and cost functions
//   - resample: bootstrap of the coefficients
//   - metrics: regression metrics (MSE, RMSE, MAE, R²)
//   - report: text summaries and error histograms
//   - core/model: the Refitter and Predictor interfaces, coefficient export
//   - core/parallel: parallel processing utilities
//
// The glmcv command in cmd/glmcv exposes fit, cv, bootstrap and simulate.
package glmcv
