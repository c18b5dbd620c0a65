package cv

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/YuminosukeSato/glmcv/core/model"
	"github.com/YuminosukeSato/glmcv/dataset"
	"github.com/YuminosukeSato/glmcv/glm"
	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/YuminosukeSato/glmcv/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// idData is a dataset whose "id" column identifies each row.
func idData(t *testing.T, y []float64) *dataset.Dataset {
	t.Helper()
	ids := make([]float64, len(y))
	for i := range ids {
		ids[i] = float64(i)
	}
	ds, err := dataset.New(dataset.NumericColumn("id", ids), dataset.NumericColumn("y", y))
	require.NoError(t, err)
	return ds
}

// meanRefitter predicts the training mean and records which rows each
// held-out row was trained on.
type meanRefitter struct {
	mu       sync.Mutex
	trainIDs map[int][]int
	calls    atomic.Int32
	failOn   map[int]bool // held-out ids whose refit fails
	predict  func(heldID int, mean float64) float64
}

func newMeanRefitter() *meanRefitter {
	return &meanRefitter{trainIDs: make(map[int][]int), failOn: map[int]bool{}}
}

func (r *meanRefitter) Response() string { return "y" }

func (r *meanRefitter) Refit(_ context.Context, train *dataset.Dataset) (model.Predictor, error) {
	r.calls.Add(1)
	ids, err := train.Float("id")
	if err != nil {
		return nil, err
	}
	y, _ := train.Float("y")

	present := make(map[int]bool, len(ids))
	for _, id := range ids {
		present[int(id)] = true
	}
	for id := range r.failOn {
		if !present[id] {
			return nil, errors.NewRankDeficiencyError("fake", 0, 1, []string{"id"})
		}
	}

	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	trainIDs := make([]int, len(ids))
	for i, id := range ids {
		trainIDs[i] = int(id)
	}

	return model.PredictorFunc(func(held *dataset.Dataset) ([]float64, error) {
		heldIDs, err := held.Float("id")
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(heldIDs))
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, id := range heldIDs {
			r.trainIDs[int(id)] = trainIDs
			out[i] = mean
			if r.predict != nil {
				out[i] = r.predict(int(id), mean)
			}
		}
		return out, nil
	}), nil
}

func TestLeaveOneOutExcludesExactlyTheHeldOutRow(t *testing.T) {
	y := []float64{0.1, 0.4, 0.35, 0.8, 0.05, 0.6}
	ds := idData(t, y)
	r := newMeanRefitter()

	res, err := LeaveOneOut(context.Background(), r, ds, nil)
	require.NoError(t, err)

	n := len(y)
	require.Len(t, res.Errors, n)
	assert.Equal(t, int32(n), r.calls.Load())
	assert.Equal(t, n, res.Refits)
	assert.Equal(t, n, res.Folds)
	assert.True(t, res.Complete())

	for i := 0; i < n; i++ {
		train := r.trainIDs[i]
		require.Len(t, train, n-1, "fold %d", i)
		assert.NotContains(t, train, i)

		var sum float64
		for j, v := range y {
			if j != i {
				sum += v
			}
		}
		want := math.Abs(y[i] - sum/float64(n-1))
		assert.InDelta(t, want, res.Errors[i], 1e-15)
		assert.GreaterOrEqual(t, res.Errors[i], 0.0)
		assert.Equal(t, i, res.Fold[i])
		assert.Equal(t, n-1, res.TrainSizes[i])
	}
	assert.Equal(t, y, res.Observed)
}

func TestEvaluateIsDeterministicAcrossWorkers(t *testing.T) {
	ds, err := dataset.LoadLizards()
	require.NoError(t, err)
	spec, err := glm.NewSpec("gfrac ~ height*diameter + light + time", glm.Binomial(),
		glm.WithWeights(dataset.LizardTrials))
	require.NoError(t, err)

	seq, err := LeaveOneOut(context.Background(), spec, ds, AbsoluteError)
	require.NoError(t, err)
	again, err := LeaveOneOut(context.Background(), spec, ds, AbsoluteError)
	require.NoError(t, err)
	par, err := LeaveOneOut(context.Background(), spec, ds, AbsoluteError, WithWorkers(4))
	require.NoError(t, err)
	all, err := LeaveOneOut(context.Background(), spec, ds, AbsoluteError, WithWorkers(0))
	require.NoError(t, err)

	assert.Equal(t, seq.Errors, again.Errors)
	assert.Equal(t, seq.Errors, par.Errors)
	assert.Equal(t, seq.Predictions, par.Predictions)
	assert.Equal(t, seq.Errors, all.Errors)
}

// countingRefitter wraps a refitter and records training sizes.
type countingRefitter struct {
	model.Refitter
	mu    sync.Mutex
	sizes []int
}

func (c *countingRefitter) Refit(ctx context.Context, train *dataset.Dataset) (model.Predictor, error) {
	c.mu.Lock()
	c.sizes = append(c.sizes, train.Len())
	c.mu.Unlock()
	return c.Refitter.Refit(ctx, train)
}

func TestLizardLeaveOneOut(t *testing.T) {
	ds, err := dataset.LoadLizards()
	require.NoError(t, err)
	spec, err := glm.NewSpec("gfrac ~ height*diameter + light + time", glm.Binomial(),
		glm.WithWeights(dataset.LizardTrials))
	require.NoError(t, err)

	full, err := spec.Fit(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, full.Coefficients(), 7)

	counting := &countingRefitter{Refitter: spec}
	res, err := LeaveOneOut(context.Background(), counting, ds, AbsoluteError, WithWorkers(3))
	require.NoError(t, err)

	require.Len(t, counting.sizes, 23)
	for _, s := range counting.sizes {
		assert.Equal(t, 22, s)
	}
	require.Len(t, res.Errors, 23)
	for i, e := range res.Errors {
		assert.True(t, e >= 0 && e <= 1, "error %d = %v", i, e)
		p := res.Predictions[i]
		assert.True(t, p > 0 && p < 1, "prediction %d = %v", i, p)
	}
	mean := res.Mean()
	assert.True(t, mean > 0 && mean < 1, "mean %v", mean)
	assert.False(t, math.IsNaN(res.StdDev()))
	assert.False(t, math.IsNaN(res.StdError()))
}

func TestTwoObservationsFailEveryFold(t *testing.T) {
	lizards, err := dataset.LoadLizards()
	require.NoError(t, err)
	ds, err := lizards.Subset([]int{0, 1})
	require.NoError(t, err)
	spec, err := glm.NewSpec("gfrac ~ height*diameter + light + time", glm.Binomial(),
		glm.WithWeights(dataset.LizardTrials))
	require.NoError(t, err)

	_, err = LeaveOneOut(context.Background(), spec, ds, AbsoluteError)
	var refitErr *errors.RefitError
	require.True(t, errors.As(err, &refitErr), "got %v", err)
	assert.Equal(t, 0, refitErr.Index)
	var rankErr *errors.RankDeficiencyError
	assert.True(t, errors.As(err, &rankErr))

	res, err := LeaveOneOut(context.Background(), spec, ds, AbsoluteError, WithPartialResults(true))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []int{0, 1}, res.Failed)
	assert.True(t, math.IsNaN(res.Mean()))
	for i := 0; i < 2; i++ {
		var foldErr *errors.RefitError
		require.True(t, errors.As(res.Failures[i], &foldErr))
		assert.Equal(t, i, foldErr.Index)
		assert.True(t, math.IsNaN(res.Errors[i]))
	}
}

func TestCostFunctionErrorCarriesIndex(t *testing.T) {
	ds := idData(t, []float64{0.2, 0.4, 0.6, 0.8, 0.5})
	r := newMeanRefitter()
	// a broken link produces a prediction outside [0, 1] for row 3
	r.predict = func(id int, mean float64) float64 {
		if id == 3 {
			return 1.7
		}
		return mean
	}
	logOneMinus := func(observed, predicted float64) (float64, error) {
		x := 1 - predicted
		if x < 0 {
			return 0, errors.Newf("negative input %g", x)
		}
		return math.Abs(observed - predicted), nil
	}

	_, err := LeaveOneOut(context.Background(), r, ds, logOneMinus)
	var costErr *errors.CostFunctionError
	require.True(t, errors.As(err, &costErr), "got %v", err)
	assert.Equal(t, 3, costErr.Index)
	assert.Equal(t, 1.7, costErr.Predicted)
	assert.Equal(t, 0.8, costErr.Observed)
	// sequential evaluation stops scheduling after the failing fold
	assert.Equal(t, int32(4), r.calls.Load())
}

func TestCostFunctionMisbehaviour(t *testing.T) {
	ds := idData(t, []float64{0.2, 0.4, 0.6})

	tests := []struct {
		name   string
		cost   CostFunc
		target error
	}{
		{"negative", func(o, p float64) (float64, error) { return -1, nil }, errors.ErrNegativeCost},
		{"nan", func(o, p float64) (float64, error) { return math.NaN(), nil }, errors.ErrNonFinite},
		{"panic", func(o, p float64) (float64, error) { panic("boom") }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LeaveOneOut(context.Background(), newMeanRefitter(), ds, tt.cost)
			var costErr *errors.CostFunctionError
			require.True(t, errors.As(err, &costErr), "got %v", err)
			assert.Equal(t, 0, costErr.Index)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			} else {
				var panicErr *errors.PanicError
				assert.True(t, errors.As(err, &panicErr))
			}
		})
	}
}

func TestRefitPanicBecomesRefitError(t *testing.T) {
	ds := idData(t, []float64{0.2, 0.4, 0.6})
	r := model.RefitterFunc{
		Field: "y",
		Fn: func(context.Context, *dataset.Dataset) (model.Predictor, error) {
			panic("fit exploded")
		},
	}
	_, err := LeaveOneOut(context.Background(), r, ds, nil)
	var refitErr *errors.RefitError
	require.True(t, errors.As(err, &refitErr))
	var panicErr *errors.PanicError
	assert.True(t, errors.As(err, &panicErr))
}

func TestPredictionLengthMismatch(t *testing.T) {
	ds := idData(t, []float64{0.2, 0.4, 0.6})
	r := model.RefitterFunc{
		Field: "y",
		Fn: func(context.Context, *dataset.Dataset) (model.Predictor, error) {
			return model.PredictorFunc(func(*dataset.Dataset) ([]float64, error) {
				return []float64{0.1, 0.2}, nil
			}), nil
		},
	}
	_, err := LeaveOneOut(context.Background(), r, ds, nil)
	var refitErr *errors.RefitError
	require.True(t, errors.As(err, &refitErr))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestEvaluateDataErrors(t *testing.T) {
	var dataErr *errors.DataError

	one := idData(t, []float64{0.5})
	_, err := LeaveOneOut(context.Background(), newMeanRefitter(), one, nil)
	require.True(t, errors.As(err, &dataErr), "got %v", err)

	noResponse, err := dataset.New(dataset.NumericColumn("id", []float64{0, 1, 2}))
	require.NoError(t, err)
	_, err = LeaveOneOut(context.Background(), newMeanRefitter(), noResponse, nil)
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "y", dataErr.Field)

	_, err = Evaluate(context.Background(), nil, one, nil)
	assert.Error(t, err)
	_, err = Evaluate(context.Background(), newMeanRefitter(), nil, nil)
	assert.Error(t, err)
}

func TestPartialResults(t *testing.T) {
	y := []float64{0.1, 0.4, 0.35, 0.8, 0.05, 0.6}
	ds := idData(t, y)

	t.Run("fatal by default", func(t *testing.T) {
		r := newMeanRefitter()
		r.failOn[2] = true
		_, err := LeaveOneOut(context.Background(), r, ds, nil)
		var refitErr *errors.RefitError
		require.True(t, errors.As(err, &refitErr))
		assert.Equal(t, 2, refitErr.Index)
		assert.Equal(t, int32(3), r.calls.Load())
	})

	t.Run("partial mode records the failure", func(t *testing.T) {
		r := newMeanRefitter()
		r.failOn[2] = true
		logger, _ := log.NewTestLogger(log.LevelDebug)

		res, err := LeaveOneOut(context.Background(), r, ds, nil,
			WithPartialResults(true), WithWorkers(2), WithLogger(logger))
		require.NoError(t, err)
		assert.Equal(t, int32(len(y)), r.calls.Load())
		assert.Equal(t, []int{2}, res.Failed)
		assert.False(t, res.Complete())
		assert.True(t, math.IsNaN(res.Errors[2]))
		assert.Len(t, res.Valid(), len(y)-1)

		var sum float64
		for i, e := range res.Errors {
			if i != 2 {
				sum += e
			}
		}
		assert.InDelta(t, sum/float64(len(y)-1), res.Mean(), 1e-15)

		var refitErr *errors.RefitError
		require.True(t, errors.As(res.Failures[2], &refitErr))
		assert.Equal(t, []int{2}, refitErr.Indices)

		assert.True(t, logger.ContainsMessage("Fold failed, continuing"))
		assert.True(t, logger.ContainsField(log.FoldKey, 2.0))
		assert.Len(t, logger.EntriesWithMessage("Fold done"), len(y)-1)
		assert.True(t, logger.ContainsMessage("Evaluation finished"))
	})
}

func TestKFoldEvaluation(t *testing.T) {
	y := []float64{0.1, 0.4, 0.35, 0.8, 0.05, 0.6, 0.2, 0.9, 0.3, 0.7}
	ds := idData(t, y)
	r := newMeanRefitter()

	res, err := Evaluate(context.Background(), r, ds, SquaredError, WithFolds(3))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Folds)
	assert.Equal(t, 3, res.Refits)
	assert.Equal(t, []int{6, 7, 7}, res.TrainSizes)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 2, 2, 2}, res.Fold)

	// rows 0..3 are predicted by the mean of rows 4..9
	for i := 0; i < 4; i++ {
		assert.NotContains(t, r.trainIDs[i], 0)
		assert.NotContains(t, r.trainIDs[i], 3)
		assert.Len(t, r.trainIDs[i], 6)
	}
	assert.True(t, res.Complete())

	// K equal to N is leave-one-out
	loo, err := Evaluate(context.Background(), newMeanRefitter(), ds, SquaredError, WithFolds(len(y)))
	require.NoError(t, err)
	assert.Equal(t, len(y), loo.Folds)

	_, err = Evaluate(context.Background(), newMeanRefitter(), ds, nil, WithFolds(1))
	assert.Error(t, err)
	_, err = Evaluate(context.Background(), newMeanRefitter(), ds, nil, WithFolds(11))
	assert.Error(t, err)
}

func TestEvaluateTimeout(t *testing.T) {
	ds := idData(t, []float64{0.1, 0.2, 0.3, 0.4})
	slow := model.RefitterFunc{
		Field: "y",
		Fn: func(ctx context.Context, _ *dataset.Dataset) (model.Predictor, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	for _, partial := range []bool{false, true} {
		start := time.Now()
		res, err := LeaveOneOut(context.Background(), slow, ds, nil,
			WithTimeout(20*time.Millisecond), WithPartialResults(partial))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, res)
		assert.Less(t, time.Since(start), 5*time.Second)
	}
}

func TestEvaluateTimeoutWithRefitterIgnoringContext(t *testing.T) {
	ds := idData(t, []float64{0.1, 0.2, 0.3, 0.4})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	stuck := model.RefitterFunc{
		Field: "y",
		Fn: func(_ context.Context, _ *dataset.Dataset) (model.Predictor, error) {
			<-release
			return nil, errors.New("released")
		},
	}

	for _, partial := range []bool{false, true} {
		start := time.Now()
		res, err := LeaveOneOut(context.Background(), stuck, ds, nil,
			WithTimeout(20*time.Millisecond), WithWorkers(2), WithPartialResults(partial))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Nil(t, res)
		assert.Less(t, time.Since(start), 5*time.Second)
	}
}
