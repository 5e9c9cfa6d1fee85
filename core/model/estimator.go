// Package model defines the capability interfaces shared by every estimator
// and transformer in heartrisk, plus the fitted-state bookkeeping they embed.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer computes a goodness score, mean accuracy for classifiers.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier は分類モデルの基本インターフェース
type Classifier interface {
	Fitter
	Predictor
	Scorer
}

// ProbabilisticClassifier exposes per-class probabilities, one column per
// entry of Classes() in the same order.
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []int
}

// DecisionFunctioner exposes a signed confidence score whose positive side
// corresponds to the second class.
type DecisionFunctioner interface {
	DecisionFunction(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}
