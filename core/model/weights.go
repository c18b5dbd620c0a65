package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
)

// WeightsVersion はエクスポート形式のバージョン
const WeightsVersion = "1"

// ModelWeights は学習済みGLMの係数を表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（GLM等）
	ModelType string `json:"model_type"`

	// Version はエクスポート形式のバージョン（互換性チェック用）
	Version string `json:"version"`

	// Formula はモデル式
	Formula string `json:"formula"`

	// Family と Link は分布族とリンク関数の名前
	Family string `json:"family"`
	Link   string `json:"link"`

	// Features はデザイン行列の列名（Coefficientsと同じ順序）
	Features []string `json:"features"`

	// Coefficients は係数
	Coefficients []float64 `json:"coefficients"`

	// StdErrors は係数の標準誤差（オプション）
	StdErrors []float64 `json:"std_errors,omitempty"`

	// Metadata は追加のメタデータ（逸脱度、反復回数等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return mw.Validate()
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", len(mw.Coefficients))
	}
	if len(mw.Features) != len(mw.Coefficients) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Coefficients), len(mw.Features), 0)
	}
	if len(mw.StdErrors) != 0 && len(mw.StdErrors) != len(mw.Coefficients) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Coefficients), len(mw.StdErrors), 0)
	}
	return nil
}

// Coefficient は名前で係数を引く
func (mw *ModelWeights) Coefficient(name string) (float64, bool) {
	for i, f := range mw.Features {
		if f == name {
			return mw.Coefficients[i], true
		}
	}
	return 0, false
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:    mw.ModelType,
		Version:      mw.Version,
		Formula:      mw.Formula,
		Family:       mw.Family,
		Link:         mw.Link,
		Coefficients: append([]float64(nil), mw.Coefficients...),
		Features:     append([]string(nil), mw.Features...),
		StdErrors:    append([]float64(nil), mw.StdErrors...),
		Metadata:     make(map[string]interface{}, len(mw.Metadata)),
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
