package cv

import (
	"math"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
)

// CostFunc maps an observed response and its held-out prediction to a
// non-negative error. It is called once per held-out row.
type CostFunc func(observed, predicted float64) (float64, error)

func checkFinite(observed, predicted float64) error {
	if math.IsNaN(observed) || math.IsInf(observed, 0) || math.IsNaN(predicted) || math.IsInf(predicted, 0) {
		return errors.ErrNonFinite
	}
	return nil
}

// AbsoluteError is |observed - predicted|. It is the default cost.
func AbsoluteError(observed, predicted float64) (float64, error) {
	if err := checkFinite(observed, predicted); err != nil {
		return 0, err
	}
	return math.Abs(observed - predicted), nil
}

// SquaredError is (observed - predicted)².
func SquaredError(observed, predicted float64) (float64, error) {
	if err := checkFinite(observed, predicted); err != nil {
		return 0, err
	}
	d := observed - predicted
	return d * d, nil
}

// LogLoss is the binomial cross-entropy of a proportion against a predicted
// probability. The prediction must lie strictly inside (0, 1).
func LogLoss(observed, predicted float64) (float64, error) {
	if err := checkFinite(observed, predicted); err != nil {
		return 0, err
	}
	if predicted <= 0 || predicted >= 1 {
		return 0, errors.Newf("predicted probability %g is outside (0, 1)", predicted)
	}
	loss := 0.0
	if observed > 0 {
		loss -= observed * math.Log(predicted)
	}
	if observed < 1 {
		loss -= (1 - observed) * math.Log(1-predicted)
	}
	return loss, nil
}

// CostByName returns one of the built-in cost functions: "absolute",
// "squared" or "logloss".
func CostByName(name string) (CostFunc, error) {
	switch name {
	case "", "absolute", "mae":
		return AbsoluteError, nil
	case "squared", "mse":
		return SquaredError, nil
	case "logloss":
		return LogLoss, nil
	}
	return nil, errors.NewValidationError("cost", "must be one of absolute, squared, logloss", name)
}
