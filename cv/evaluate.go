// Package cv estimates out-of-sample prediction error by cross-validation.
//
// For every fold the model is refitted from scratch on the training rows,
// the held-out rows are predicted on the response scale and a cost function
// scores each prediction. With the default fold count every observation is
// held out on its own (leave-one-out).
//
//	spec, _ := glm.NewSpec("gfrac ~ height*diameter + light + time", glm.Binomial(),
//	    glm.WithWeights("n"))
//	res, err := cv.LeaveOneOut(ctx, spec, ds, cv.AbsoluteError, cv.WithWorkers(4))
//	fmt.Println(res.Mean())
//
// A failing fold is fatal unless WithPartialResults is set; errors carry the
// held-out indices (RefitError) or the observation (CostFunctionError).
package cv

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YuminosukeSato/glmcv/core/model"
	"github.com/YuminosukeSato/glmcv/core/parallel"
	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/YuminosukeSato/glmcv/pkg/log"
)

// LeaveOneOut evaluates refitter with one fold per observation.
func LeaveOneOut(ctx context.Context, refitter model.Refitter, ds *dataset.Dataset, cost CostFunc, opts ...Option) (*Result, error) {
	opts = append(opts, WithSplitter(LeaveOneOutSplitter{}))
	return Evaluate(ctx, refitter, ds, cost, opts...)
}

// Evaluate runs cross-validation of refitter on ds. A nil cost means
// AbsoluteError.
//
// The returned Result is index-aligned with ds whatever the number of
// workers. In partial-results mode a Result is returned together with an
// error when every fold failed.
func Evaluate(ctx context.Context, refitter model.Refitter, ds *dataset.Dataset, cost CostFunc, opts ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if refitter == nil {
		return nil, errors.NewValidationError("refitter", "is required", nil)
	}
	if ds == nil {
		return nil, errors.NewDataError("cv.Evaluate", "", "dataset is nil")
	}
	if cost == nil {
		cost = AbsoluteError
	}

	n := ds.Len()
	if n < 2 {
		return nil, errors.NewDataError("cv.Evaluate", "",
			fmt.Sprintf("at least 2 observations are required, got %d", n))
	}
	observed, err := ds.Float(refitter.Response())
	if err != nil {
		return nil, err
	}

	splitter := cfg.splitter
	if splitter == nil {
		if cfg.folds == 0 || cfg.folds == n {
			splitter = LeaveOneOutSplitter{}
		} else {
			splitter = NewKFold(cfg.folds, false, 0)
		}
	}
	folds, err := splitter.Split(n)
	if err != nil {
		return nil, err
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.GetLoggerWithName("cv")
	}
	workers := parallel.Workers(cfg.workers)
	logger = logger.With(log.FoldsKey, len(folds), log.WorkersKey, workers, log.PartialKey, cfg.partial)
	logger.Info("Evaluation started", log.OperationKey, log.OperationEvaluate, log.SamplesKey, n)

	start := time.Now()
	res := newResult(n, len(folds), observed)
	for _, f := range folds {
		for _, idx := range f.Test {
			res.Fold[idx] = f.Index
		}
	}

	e := &evaluator{
		refitter: refitter,
		ds:       ds,
		cost:     cost,
		observed: observed,
		res:      res,
		logger:   logger,
	}

	var mu sync.Mutex
	err = parallel.ForEach(ctx, len(folds), workers, func(ctx context.Context, i int) error {
		fold := folds[i]
		ferr := e.run(ctx, fold)
		if ferr == nil {
			return nil
		}
		// a timeout or cancellation ends the evaluation in every mode
		if ctx.Err() != nil || !cfg.partial {
			return ferr
		}

		mu.Lock()
		for _, idx := range fold.Test {
			res.Failures[idx] = ferr
		}
		mu.Unlock()
		logger.Warn("Fold failed, continuing",
			log.FoldKey, fold.Index,
			log.HeldOutKey, fold.Test,
			log.ErrAttrKey, ferr.Error(),
		)
		return nil
	})
	res.Refits = int(e.refits.Load())
	res.Elapsed = time.Since(start)

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			err = errors.Wrapf(err, "cv: evaluation stopped after %d of %d folds", res.Refits, len(folds))
		}
		logger.Error("Evaluation failed", log.ErrAttrKey, err.Error())
		return nil, err
	}

	if len(res.Failures) > 0 {
		res.Failed = res.Failures.Indices()
		for _, idx := range res.Failed {
			res.Errors[idx] = math.NaN()
			res.Predictions[idx] = math.NaN()
		}
		errors.Warn(errors.NewPartialResultWarning(res.Failed, n))
		if len(res.Failed) == n {
			first := res.Failures[res.Failed[0]]
			return res, errors.Wrapf(first, "cv: all %d observations failed", n)
		}
	}

	logger.Info("Evaluation finished",
		log.MeanErrorKey, res.Mean(),
		log.FailedKey, len(res.Failed),
		log.DurationMsKey, res.Elapsed.Milliseconds(),
	)
	return res, nil
}

type evaluator struct {
	refitter model.Refitter
	ds       *dataset.Dataset
	cost     CostFunc
	observed []float64
	res      *Result
	logger   log.Logger
	refits   atomic.Int64
}

// run evaluates one fold. It owns the result slots of fold.Test and
// TrainSizes[fold.Index]; they are written only when the whole fold succeeds.
func (e *evaluator) run(ctx context.Context, fold Fold) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	train, err := e.ds.Subset(fold.Train)
	if err != nil {
		return err
	}
	held, err := e.ds.Subset(fold.Test)
	if err != nil {
		return err
	}

	var predictor model.Predictor
	err = errors.SafeExecute("cv.refit", func() error {
		p, err := e.refitter.Refit(ctx, train)
		predictor = p
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.NewRefitError(fold.Index, fold.Test, err)
	}
	if predictor == nil {
		return errors.NewRefitError(fold.Index, fold.Test, errors.New("refit returned no model"))
	}
	e.refits.Add(1)

	var preds []float64
	err = errors.SafeExecute("cv.predict", func() error {
		p, err := predictor.PredictResponse(held)
		preds = p
		return err
	})
	if err == nil && len(preds) != len(fold.Test) {
		err = errors.NewDimensionError("cv.predict", len(fold.Test), len(preds), 0)
	}
	if err != nil {
		return errors.NewRefitError(fold.Index, fold.Test, err)
	}

	costs := make([]float64, len(fold.Test))
	for j, idx := range fold.Test {
		obs, pred := e.observed[idx], preds[j]
		var c float64
		err := errors.SafeExecute("cv.cost", func() error {
			v, err := e.cost(obs, pred)
			c = v
			return err
		})
		switch {
		case err != nil:
		case math.IsNaN(c) || math.IsInf(c, 0):
			err = errors.ErrNonFinite
		case c < 0:
			err = errors.ErrNegativeCost
		}
		if err != nil {
			return errors.NewCostFunctionError(idx, obs, pred, err)
		}
		costs[j] = c
	}

	for j, idx := range fold.Test {
		e.res.Predictions[idx] = preds[j]
		e.res.Errors[idx] = costs[j]
	}
	e.res.TrainSizes[fold.Index] = train.Len()

	if e.logger.Enabled(ctx, log.LevelDebug) {
		e.logger.Debug("Fold done",
			log.FoldKey, fold.Index,
			log.HeldOutKey, fold.Test,
			log.TrainSamplesKey, train.Len(),
		)
	}
	return nil
}
