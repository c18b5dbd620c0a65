// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 交差検証の各フォールドで発生した失敗を、どの観測値が原因かを保持したまま
// 呼び出し元へ伝えるための構造化エラーを定義します。
package errors

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("glmcv-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning はIRLSが反復上限に達したが結果を返す場合の警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// PartialResultWarning は部分結果モードで一部のフォールドが失敗した場合の警告です。
type PartialResultWarning struct {
	Failed []int
	Total  int
}

func (w *PartialResultWarning) Error() string {
	return fmt.Sprintf("%d of %d observations have no held-out error: indices %v", len(w.Failed), w.Total, w.Failed)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *PartialResultWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Ints("failed", w.Failed).
		Int("total", w.Total).
		Str("type", "PartialResultWarning")
}

// NewPartialResultWarning は新しいPartialResultWarningを作成します。
func NewPartialResultWarning(failed []int, total int) *PartialResultWarning {
	return &PartialResultWarning{Failed: failed, Total: total}
}

// ===========================================================================
//
//	データ・フィッティングのエラー型
//
// ===========================================================================

// DataError はデータセットが評価の前提を満たさない場合のエラーです。
// 観測値が2件未満、必須フィールドの欠落、応答値やウェイトの範囲外などが該当します。
type DataError struct {
	Op     string
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("glmcv: %s: field %q: %s", e.Op, e.Field, e.Reason)
	}
	return fmt.Sprintf("glmcv: %s: %s", e.Op, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("field", e.Field).
		Str("reason", e.Reason).
		Str("type", "DataError")
}

// NewDataError は新しいDataErrorを作成し、スタックトレースを付与します。
func NewDataError(op, field, reason string) error {
	return errors.WithStack(&DataError{Op: op, Field: field, Reason: reason})
}

// RankDeficiencyError は学習データが全てのパラメータを識別できない場合のエラーです。
// 例: カテゴリ変数のある水準が学習サブセットから消えた場合。
type RankDeficiencyError struct {
	Op      string
	Rank    int
	Params  int
	Columns []string // 識別できなかった計画行列の列
}

func (e *RankDeficiencyError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("glmcv: %s: rank-deficient design (rank %d < %d parameters); unidentified columns: %s",
			e.Op, e.Rank, e.Params, strings.Join(e.Columns, ", "))
	}
	return fmt.Sprintf("glmcv: %s: rank-deficient design (rank %d < %d parameters)", e.Op, e.Rank, e.Params)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *RankDeficiencyError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("rank", e.Rank).
		Int("params", e.Params).
		Strs("columns", e.Columns).
		Str("type", "RankDeficiencyError")
}

// NewRankDeficiencyError は新しいRankDeficiencyErrorを作成し、スタックトレースを付与します。
func NewRankDeficiencyError(op string, rank, params int, columns []string) error {
	return errors.WithStack(&RankDeficiencyError{Op: op, Rank: rank, Params: params, Columns: columns})
}

// ConvergenceError は反復法が収束しなかった、または非有限値に発散した場合のエラーです。
type ConvergenceError struct {
	Algorithm  string
	Iterations int
	Deviance   float64
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("glmcv: %s did not converge after %d iterations (deviance %.6g): %s",
		e.Algorithm, e.Iterations, e.Deviance, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConvergenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("algorithm", e.Algorithm).
		Int("iterations", e.Iterations).
		Float64("deviance", e.Deviance).
		Str("reason", e.Reason).
		Str("type", "ConvergenceError")
}

// NewConvergenceError は新しいConvergenceErrorを作成し、スタックトレースを付与します。
func NewConvergenceError(algorithm string, iterations int, deviance float64, reason string) error {
	return errors.WithStack(&ConvergenceError{
		Algorithm:  algorithm,
		Iterations: iterations,
		Deviance:   deviance,
		Reason:     reason,
	})
}

// RefitError は保持観測値を除いたデータでの再学習に失敗した場合のエラーです。
// Index は失敗の原因となった保持観測値（K-foldの場合はブロックの先頭）です。
type RefitError struct {
	Index   int
	Indices []int // フォールドで保持された全観測値
	Fold    int
	Err     error
}

func (e *RefitError) Error() string {
	if len(e.Indices) > 1 {
		return fmt.Sprintf("glmcv: refit failed for fold %d (held-out indices %v): %v", e.Fold, e.Indices, e.Err)
	}
	return fmt.Sprintf("glmcv: refit failed for held-out index %d: %v", e.Index, e.Err)
}

func (e *RefitError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *RefitError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("index", e.Index).
		Ints("indices", e.Indices).
		Int("fold", e.Fold).
		Str("type", "RefitError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewRefitError は新しいRefitErrorを作成し、スタックトレースを付与します。
func NewRefitError(fold int, indices []int, err error) error {
	idx := -1
	if len(indices) > 0 {
		idx = indices[0]
	}
	held := make([]int, len(indices))
	copy(held, indices)
	return errors.WithStack(&RefitError{Index: idx, Indices: held, Fold: fold, Err: err})
}

// CostFunctionError はコスト関数が (観測値, 予測値) の組で失敗した場合のエラーです。
type CostFunctionError struct {
	Index     int
	Observed  float64
	Predicted float64
	Err       error
}

func (e *CostFunctionError) Error() string {
	return fmt.Sprintf("glmcv: cost function failed at index %d (observed=%.6g, predicted=%.6g): %v",
		e.Index, e.Observed, e.Predicted, e.Err)
}

func (e *CostFunctionError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *CostFunctionError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("index", e.Index).
		Float64("observed", e.Observed).
		Float64("predicted", e.Predicted).
		Str("type", "CostFunctionError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewCostFunctionError は新しいCostFunctionErrorを作成し、スタックトレースを付与します。
func NewCostFunctionError(index int, observed, predicted float64, err error) error {
	return errors.WithStack(&CostFunctionError{Index: index, Observed: observed, Predicted: predicted, Err: err})
}

// FoldErrors は部分結果モードで収集された失敗をインデックス順にまとめます。
type FoldErrors map[int]error

// Indices は失敗したインデックスを昇順で返します。
func (f FoldErrors) Indices() []int {
	out := make([]int, 0, len(f))
	for i := range f {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("glmcv: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("glmcv: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("glmcv: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	数値計算のエラー型
//
// ===========================================================================

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "irls_update", "predict"）
	Values    []float64 // 問題のある値
	Iteration int       // 発生したイテレーション番号
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("glmcv: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")

	// ErrNegativeCost はコスト関数が負の値を返した場合のエラーです。
	ErrNegativeCost = New("cost function returned a negative value")

	// ErrNonFinite は非有限値（NaN, Inf）が渡された、または生成された場合のエラーです。
	ErrNonFinite = New("non-finite value")
)
