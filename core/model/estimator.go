// Package model はモデルフィッティングと評価の間の契約を定義します。
//
// 交差検証はモデルの内部を知らず、ここで定義されたインターフェースだけを通して
// 再学習と予測を行います。
package model

import (
	"context"

	"github.com/YuminosukeSato/glmcv/dataset"
)

// Predictor は学習済みモデルのインターフェース
type Predictor interface {
	// PredictResponse はデータセットの各行について応答スケール（逆リンク適用後）の予測値を返す
	PredictResponse(ds *dataset.Dataset) ([]float64, error)
}

// Refitter は任意の部分集合で新しいモデルを学習できるモデル仕様のインターフェース
//
// Refit は呼び出しごとに独立したPredictorを返し、既存のインスタンスを変更してはならない。
// 複数のgoroutineから同時に呼ばれても安全である必要がある。
//
// Refit はctxのキャンセルを尊重し、ctxが終了したら速やかにctx.Err()を返すこと。
// タイムアウト時の評価は実行中のRefitを待たずに戻るため、キャンセルを無視する
// Refitはバックグラウンドで走り続ける。glm.Specは各IRLS反復でctxを確認する。
type Refitter interface {
	// Response は応答変数のフィールド名を返す
	Response() string
	// Refit は訓練データで新しいモデルを学習する
	Refit(ctx context.Context, train *dataset.Dataset) (Predictor, error)
}

// Diagnostics はフィッティングの状態を公開するモデルのインターフェース
type Diagnostics interface {
	// Converged は反復が収束したかどうかを返す
	Converged() bool
	// Rank はデザイン行列のランクを返す
	Rank() int
}

// RefitterFunc は関数をRefitterとして使うためのアダプタ
type RefitterFunc struct {
	Field string
	Fn    func(ctx context.Context, train *dataset.Dataset) (Predictor, error)
}

// Response は応答変数のフィールド名を返す
func (r RefitterFunc) Response() string { return r.Field }

// Refit はFnを呼び出す
func (r RefitterFunc) Refit(ctx context.Context, train *dataset.Dataset) (Predictor, error) {
	return r.Fn(ctx, train)
}

// PredictorFunc は関数をPredictorとして使うためのアダプタ
type PredictorFunc func(ds *dataset.Dataset) ([]float64, error)

// PredictResponse はf(ds)を返す
func (f PredictorFunc) PredictResponse(ds *dataset.Dataset) ([]float64, error) {
	return f(ds)
}
