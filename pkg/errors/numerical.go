package errors

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// NumericalInstabilityError: 計算結果に NaN か Inf が出た
// Iteration は最初に問題が出た位置（行番号など）
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	shown := make([]string, 0, 6)
	for i, v := range e.Values {
		if i == 5 {
			shown = append(shown, "...")
			break
		}
		shown = append(shown, fmt.Sprintf("%.6g", v))
	}
	return fmt.Sprintf("drisk: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, strings.Join(shown, ", "))
}

func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

// CheckNumericalStability returns a NumericalInstabilityError at the first
// NaN or Inf in values.
func CheckNumericalStability(operation string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values[i:], i)
		}
	}
	return nil
}

// CheckScalar is CheckNumericalStability for one value.
func CheckScalar(operation string, value float64) error {
	return CheckNumericalStability(operation, []float64{value})
}

// SafeDivide returns 0 for a zero denominator.
func SafeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
