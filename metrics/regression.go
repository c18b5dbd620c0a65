// Package metrics は応答ベクトルと予測ベクトルから回帰指標を計算します。
//
// 交差検証の予測値（Result.Predictions）に適用すれば予測性能、
// 学習データの予測値に適用すれば当てはまりの指標になります。
// ウェイトを指定すると二項モデルの試行回数などで重み付けします（nilは等重み）。
package metrics

import (
	"math"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

func validate(op string, yTrue, yPred, weights []float64) error {
	n := len(yTrue)
	if n == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != n {
		return errors.NewDimensionError(op, n, len(yPred), 0)
	}
	if weights != nil && len(weights) != n {
		return errors.NewDimensionError(op, n, len(weights), 0)
	}
	return nil
}

func weightAt(weights []float64, i int) float64 {
	if weights == nil {
		return 1
	}
	return weights[i]
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred, weights []float64) (float64, error) {
	if err := validate("MSE", yTrue, yPred, weights); err != nil {
		return 0, err
	}
	// MSE = Σw(yTrue - yPred)² / Σw
	var sum, wsum float64
	for i := range yTrue {
		w := weightAt(weights, i)
		diff := yTrue[i] - yPred[i]
		sum += w * diff * diff
		wsum += w
	}
	return sum / wsum, nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred, weights []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred, weights)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred, weights []float64) (float64, error) {
	if err := validate("MAE", yTrue, yPred, weights); err != nil {
		return 0, err
	}
	var sum, wsum float64
	for i := range yTrue {
		w := weightAt(weights, i)
		sum += w * math.Abs(yTrue[i]-yPred[i])
		wsum += w
	}
	return sum / wsum, nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred, weights []float64) (float64, error) {
	if err := validate("R2Score", yTrue, yPred, weights); err != nil {
		return 0, err
	}
	yMean := stat.Mean(yTrue, weights)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range yTrue {
		w := weightAt(weights, i)
		tss += w * (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += w * (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}

// Summary は指標のまとめ
type Summary struct {
	MAE  float64
	MSE  float64
	RMSE float64
	R2   float64
}

// Summarize は全ての指標を計算する。NaNを含む行（失敗したフォールドなど）は除外する。
func Summarize(yTrue, yPred, weights []float64) (Summary, error) {
	if err := validate("Summarize", yTrue, yPred, weights); err != nil {
		return Summary{}, err
	}
	var t, p, w []float64
	for i := range yTrue {
		if math.IsNaN(yTrue[i]) || math.IsNaN(yPred[i]) {
			continue
		}
		t = append(t, yTrue[i])
		p = append(p, yPred[i])
		if weights != nil {
			w = append(w, weights[i])
		}
	}

	var s Summary
	var err error
	if s.MAE, err = MAE(t, p, w); err != nil {
		return Summary{}, err
	}
	if s.MSE, err = MSE(t, p, w); err != nil {
		return Summary{}, err
	}
	s.RMSE = math.Sqrt(s.MSE)
	if s.R2, err = R2Score(t, p, w); err != nil {
		s.R2 = math.NaN()
	}
	return s, nil
}
