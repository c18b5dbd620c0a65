package glm

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/glmcv/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
)

// epsilon は確率をclampする際の下限（DBL_EPSILON）
const epsilon = 2.220446049250313e-16

// logitThreshold を超える線形予測子では逆ロジットが飽和する
const logitThreshold = 30.0

// Link はリンク関数 g(μ) = η
type Link interface {
	Name() string
	// Link は μ から η を計算する
	Link(mu float64) float64
	// Inverse は η から μ を計算する（逆リンク）
	Inverse(eta float64) float64
	// DMuDEta は dμ/dη
	DMuDEta(eta float64) float64
}

// Family は指数型分布族
type Family interface {
	Name() string
	Link() Link
	// Variance は分散関数 V(μ)
	Variance(mu float64) float64
	// UnitDeviance は重み付きの1観測分の逸脱度
	UnitDeviance(y, mu, w float64) float64
	// Start はIRLSの初期値 μ₀
	Start(y, w float64) float64
	// LogLikelihood は対数尤度。dispersionを推定する族ではdevianceとnから求める
	LogLikelihood(y, mu, w []float64, deviance float64) float64
	// FixedDispersion は分散パラメータが1に固定される族かどうか
	FixedDispersion() bool
	// Validate は応答値とウェイトが族の定義域にあるかを検証する
	Validate(y, w []float64) error
	// Sample は平均mu、ウェイトwの応答を1つ生成する（応答スケール）
	Sample(mu, w, dispersion float64, src rand.Source) float64
}

// ===========================================================================
// リンク関数
// ===========================================================================

type logitLink struct{}

func (logitLink) Name() string { return "logit" }

func (logitLink) Link(mu float64) float64 { return math.Log(mu / (1 - mu)) }

func (logitLink) Inverse(eta float64) float64 {
	switch {
	case eta < -logitThreshold:
		return epsilon
	case eta > logitThreshold:
		return 1 - epsilon
	}
	return 1 / (1 + math.Exp(-eta))
}

func (logitLink) DMuDEta(eta float64) float64 {
	if math.Abs(eta) > logitThreshold {
		return epsilon
	}
	e := math.Exp(eta)
	return e / ((1 + e) * (1 + e))
}

type logLink struct{}

func (logLink) Name() string { return "log" }

func (logLink) Link(mu float64) float64 { return math.Log(mu) }

func (logLink) Inverse(eta float64) float64 { return math.Max(math.Exp(eta), epsilon) }

func (logLink) DMuDEta(eta float64) float64 { return math.Max(math.Exp(eta), epsilon) }

type identityLink struct{}

func (identityLink) Name() string { return "identity" }

func (identityLink) Link(mu float64) float64 { return mu }

func (identityLink) Inverse(eta float64) float64 { return eta }

func (identityLink) DMuDEta(float64) float64 { return 1 }

// Logit returns the logit link.
func Logit() Link { return logitLink{} }

// Log returns the log link.
func Log() Link { return logLink{} }

// Identity returns the identity link.
func Identity() Link { return identityLink{} }

// ===========================================================================
// 分布族
// ===========================================================================

// ylogy は y*log(y/mu)。y = 0 のとき 0
func ylogy(y, mu float64) float64 {
	if y == 0 {
		return 0
	}
	return y * math.Log(y/mu)
}

type binomial struct{}

// Binomial は二項分布族（ロジットリンク）を返す。
// 応答は成功割合、ウェイトは試行回数。
func Binomial() Family { return binomial{} }

func (binomial) Name() string    { return "binomial" }
func (binomial) Link() Link      { return logitLink{} }
func (binomial) Variance(mu float64) float64 {
	return mu * (1 - mu)
}

func (binomial) UnitDeviance(y, mu, w float64) float64 {
	return 2 * w * (ylogy(y, mu) + ylogy(1-y, 1-mu))
}

func (binomial) Start(y, w float64) float64 { return (w*y + 0.5) / (w + 1) }

func (binomial) LogLikelihood(y, mu, w []float64, _ float64) float64 {
	var ll float64
	for i := range y {
		n := w[i]
		k := math.Round(n * y[i])
		lc, _ := math.Lgamma(n + 1)
		lk, _ := math.Lgamma(k + 1)
		lnk, _ := math.Lgamma(n - k + 1)
		ll += lc - lk - lnk
		if k > 0 {
			ll += k * math.Log(mu[i])
		}
		if n-k > 0 {
			ll += (n - k) * math.Log(1-mu[i])
		}
	}
	return ll
}

func (binomial) FixedDispersion() bool { return true }

func (binomial) Validate(y, w []float64) error {
	for i := range y {
		if y[i] < 0 || y[i] > 1 || math.IsNaN(y[i]) {
			return errors.NewDataError("glm.Binomial", "response",
				fmt.Sprintf("value %g at row %d is outside [0, 1]", y[i], i))
		}
		if w[i] <= 0 || w[i] != math.Trunc(w[i]) {
			return errors.NewDataError("glm.Binomial", "weights",
				fmt.Sprintf("value %g at row %d is not a positive integer", w[i], i))
		}
	}
	return nil
}

func (binomial) Sample(mu, w, _ float64, src rand.Source) float64 {
	k := distuv.Binomial{N: w, P: mu, Src: src}.Rand()
	return k / w
}

type poisson struct{}

// Poisson はポアソン分布族（対数リンク）を返す。
func Poisson() Family { return poisson{} }

func (poisson) Name() string                { return "poisson" }
func (poisson) Link() Link                  { return logLink{} }
func (poisson) Variance(mu float64) float64 { return mu }

func (poisson) UnitDeviance(y, mu, w float64) float64 {
	return 2 * w * (ylogy(y, mu) - (y - mu))
}

func (poisson) Start(y, _ float64) float64 { return y + 0.1 }

func (poisson) LogLikelihood(y, mu, w []float64, _ float64) float64 {
	var ll float64
	for i := range y {
		lg, _ := math.Lgamma(y[i] + 1)
		ll += w[i] * (y[i]*math.Log(mu[i]) - mu[i] - lg)
	}
	return ll
}

func (poisson) FixedDispersion() bool { return true }

func (poisson) Validate(y, w []float64) error {
	for i := range y {
		if y[i] < 0 || math.IsNaN(y[i]) {
			return errors.NewDataError("glm.Poisson", "response",
				fmt.Sprintf("negative count %g at row %d", y[i], i))
		}
		if w[i] <= 0 {
			return errors.NewDataError("glm.Poisson", "weights",
				fmt.Sprintf("non-positive weight %g at row %d", w[i], i))
		}
	}
	return nil
}

func (poisson) Sample(mu, _, _ float64, src rand.Source) float64 {
	return distuv.Poisson{Lambda: mu, Src: src}.Rand()
}

type gaussian struct{}

// Gaussian は正規分布族（恒等リンク）を返す。
func Gaussian() Family { return gaussian{} }

func (gaussian) Name() string             { return "gaussian" }
func (gaussian) Link() Link               { return identityLink{} }
func (gaussian) Variance(float64) float64 { return 1 }

func (gaussian) UnitDeviance(y, mu, w float64) float64 {
	r := y - mu
	return w * r * r
}

func (gaussian) Start(y, _ float64) float64 { return y }

// LogLikelihood は分散をdeviance/nで推定した正規対数尤度（Rのgaussian()$aicと同じ）
func (gaussian) LogLikelihood(y, _, w []float64, deviance float64) float64 {
	n := float64(len(y))
	var sumLogW float64
	for _, wi := range w {
		sumLogW += math.Log(wi)
	}
	return -0.5 * (n*(math.Log(2*math.Pi*deviance/n)+1) - sumLogW)
}

func (gaussian) FixedDispersion() bool { return false }

func (gaussian) Validate(y, w []float64) error {
	for i := range y {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return errors.NewDataError("glm.Gaussian", "response",
				fmt.Sprintf("non-finite value at row %d", i))
		}
		if w[i] <= 0 {
			return errors.NewDataError("glm.Gaussian", "weights",
				fmt.Sprintf("non-positive weight %g at row %d", w[i], i))
		}
	}
	return nil
}

func (gaussian) Sample(mu, w, dispersion float64, src rand.Source) float64 {
	return distuv.Normal{Mu: mu, Sigma: math.Sqrt(dispersion / w), Src: src}.Rand()
}

// FamilyByName は名前から分布族を返す
func FamilyByName(name string) (Family, error) {
	switch name {
	case "binomial":
		return Binomial(), nil
	case "poisson":
		return Poisson(), nil
	case "gaussian":
		return Gaussian(), nil
	}
	return nil, errors.NewValidationError("family", "must be one of binomial, poisson, gaussian", name)
}
