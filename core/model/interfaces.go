// Package model provides the estimator interfaces shared by the preprocessing,
// tree, ensemble and model_selection packages.
package model

import (
	"gonum.org/v1/gonum/mat"
)

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

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters keyed by their
	// scikit-learn names ("n_estimators", "max_depth", ...).
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets the model's hyperparameters. Unknown keys are an error.
	SetParams(params map[string]interface{}) error
}

// Classifier combines the interfaces a grid search needs from a classifier.
type Classifier interface {
	Fitter
	Predictor
	ParameterGetter
	ParameterSetter

	// PredictProba returns probability estimates for each class.
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []float64

	// CloneClassifier returns an unfitted copy with the same hyperparameters.
	CloneClassifier() Classifier
}

// FeatureImportancer is implemented by tree-based models.
type FeatureImportancer interface {
	// FeatureImportances returns one non-negative score per input feature.
	FeatureImportances() ([]float64, error)
}
