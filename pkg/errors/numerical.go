package errors

import (
	"math"
)

// CheckNumericalStability は係数ベクトルなどにNaNやInfが含まれていれば
// NumericalInstabilityErrorを返します。iteration は検出時のIRLS反復番号です。
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if !isFinite(v) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckScalar は逸脱度のような単一の値を検査します。
func CheckScalar(operation string, value float64, iteration int) error {
	if !isFinite(value) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
