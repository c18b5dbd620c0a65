package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		yPred   []float64
		weights []float64
		mse     float64
		mae     float64
		r2      float64
	}{
		{
			name:  "perfect prediction",
			yTrue: []float64{1, 2, 3, 4, 5},
			yPred: []float64{1, 2, 3, 4, 5},
			mse:   0, mae: 0, r2: 1,
		},
		{
			name:  "simple case",
			yTrue: []float64{1, 2, 3, 4},
			yPred: []float64{1.5, 2.5, 2.5, 3.5},
			mse:   0.25, mae: 0.5, r2: 0.8,
		},
		{
			name:    "weighted",
			yTrue:   []float64{0, 1},
			yPred:   []float64{0.5, 0.5},
			weights: []float64{3, 1},
			mse:     0.25, mae: 0.5, r2: 1 - 1.0/0.75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mse, err := MSE(tt.yTrue, tt.yPred, tt.weights)
			require.NoError(t, err)
			assert.InDelta(t, tt.mse, mse, 1e-12)

			rmse, err := RMSE(tt.yTrue, tt.yPred, tt.weights)
			require.NoError(t, err)
			assert.InDelta(t, math.Sqrt(tt.mse), rmse, 1e-12)

			mae, err := MAE(tt.yTrue, tt.yPred, tt.weights)
			require.NoError(t, err)
			assert.InDelta(t, tt.mae, mae, 1e-12)

			r2, err := R2Score(tt.yTrue, tt.yPred, tt.weights)
			require.NoError(t, err)
			assert.InDelta(t, tt.r2, r2, 1e-12)
		})
	}
}

func TestMetricsErrors(t *testing.T) {
	_, err := MSE(nil, nil, nil)
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	_, err = MAE([]float64{1, 2}, []float64{1}, nil)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = RMSE([]float64{1, 2}, []float64{1, 2}, []float64{1})
	assert.True(t, errors.As(err, &dimErr))

	_, err = R2Score([]float64{2, 2}, []float64{1, 3}, nil)
	assert.Error(t, err)
}

func TestSummarizeSkipsMissing(t *testing.T) {
	s, err := Summarize(
		[]float64{1, 2, 3, 4},
		[]float64{1.5, math.NaN(), 2.5, 3.5},
		nil,
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, s.MAE, 1e-12)
	assert.InDelta(t, 0.25, s.MSE, 1e-12)
	assert.InDelta(t, 0.5, s.RMSE, 1e-12)

	// constant response: R² undefined but the others are reported
	s, err = Summarize([]float64{2, 2}, []float64{1, 3}, nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.R2))
	assert.InDelta(t, 1.0, s.MAE, 1e-12)

	_, err = Summarize([]float64{math.NaN()}, []float64{1}, nil)
	assert.Error(t, err)
}
