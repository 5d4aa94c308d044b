package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/diabetes-risk/core/model"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

// minScale 未満の標準偏差は定数列とみなし、スケール1で割る
const minScale = 1e-8

// StandardScaler standardises each column to zero mean and unit variance
// using the population standard deviation (ddof=0), as scikit-learn does.
//
//	scaler := preprocessing.NewStandardScalerDefault()
//	ageScaled, err := scaler.FitTransform(age)
type StandardScaler struct {
	state *model.StateManager

	Mean  []float64 // 列平均。WithMean=false なら 0
	Scale []float64 // 母標準偏差。WithStd=false か定数列なら 1

	WithMean bool
	WithStd  bool
}

func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{state: model.NewStateManager(), WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault centres and scales.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit computes per-column mean and scale. NaN or Inf input is rejected.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	mean := make([]float64, cols)
	scale := make([]float64, cols)
	for j := range cols {
		col := mat.Col(nil, j, X)
		if err := errors.CheckNumericalStability("StandardScaler.Fit", col); err != nil {
			return err
		}
		m, sd := stat.PopMeanStdDev(col, nil)
		scale[j] = 1
		if s.WithMean {
			mean[j] = m
		}
		if s.WithStd && sd >= minScale {
			scale[j] = sd
		}
	}
	s.Mean, s.Scale = mean, scale

	s.state.SetDimensions(cols, rows)
	s.state.SetFitted()
	return nil
}

// apply maps every cell of X through f(column, value) after the usual
// fitted/shape checks.
func (s *StandardScaler) apply(op string, X mat.Matrix, f func(j int, v float64) float64) (*mat.Dense, error) {
	if err := s.state.RequireFitted("StandardScaler", op); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler."+op, cols); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 { return f(j, v) }, X)
	return &out, nil
}

// Transform returns (X - Mean) / Scale.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	out, err := s.apply("Transform", X, func(j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
	if err != nil {
		return nil, err
	}
	if err := errors.CheckNumericalStability("StandardScaler.Transform", out.RawMatrix().Data); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardised values back to the original units.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	out, err := s.apply("InverseTransform", X, func(j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransformColumn scales one column of a table with a scaler fitted on a
// single feature. values is not modified.
func (s *StandardScaler) TransformColumn(values []float64) ([]float64, error) {
	out, err := s.Transform(mat.NewDense(len(values), 1, append([]float64(nil), values...)))
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, out), nil
}

func (s *StandardScaler) IsFitted() bool { return s.state.IsFitted() }

func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{"with_mean": s.WithMean, "with_std": s.WithStd}
}

func (s *StandardScaler) String() string {
	params := fmt.Sprintf("with_mean=%t, with_std=%t", s.WithMean, s.WithStd)
	if s.state.IsFitted() {
		n, _ := s.state.GetDimensions()
		params += fmt.Sprintf(", n_features=%d", n)
	}
	return "StandardScaler(" + params + ")"
}

var _ model.Transformer = (*StandardScaler)(nil)
