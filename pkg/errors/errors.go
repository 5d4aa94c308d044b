// Package errors は diabetes-risk 全体で使う型付きエラーと警告の仕組み。
// スタックトレースは cockroachdb/errors で付与し、各エラー型は zerolog の
// LogObjectMarshaler を実装して構造化ログにそのまま載る。
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ErrEmptyData is returned for zero-row inputs.
var ErrEmptyData = New("empty data")

// NotFittedError: Predict や Transform を Fit の前に呼んだ
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("drisk: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "NotFittedError").Str("model_name", e.ModelName).Str("method", e.Method)
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch. Axis 0 counts rows, axis 1
// counts features.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("drisk: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "DimensionError").
		Str("operation", e.Op).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Int("expected", e.Expected).
		Int("got", e.Got)
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError はハイパーパラメータや設定値が範囲外
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("drisk: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ValidationError").
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError is an argument that is well-typed but unusable, such as an
// unseen label or a test_size of 1.5.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("drisk: %s: %s", e.Op, e.Message)
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError wraps a failure inside an estimator with the operation and a
// short kind ("empty data", "fit failed", ...).
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("drisk: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("drisk: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ColumnNotFoundError はテーブルに必要な列がない (pandas の KeyError)
type ColumnNotFoundError struct {
	Op     string
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("drisk: %s: column %q not found", e.Op, e.Column)
}

func (e *ColumnNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "ColumnNotFoundError").Str("operation", e.Op).Str("column", e.Column)
}

func NewColumnNotFoundError(op, column string) error {
	return errors.WithStack(&ColumnNotFoundError{Op: op, Column: column})
}

// ParseError is a CSV cell that could not be read. Row is the 1-based data
// row, the header excluded.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("drisk: parse error at row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("drisk: parse error at row %d, column %q (value %q): %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func NewParseError(row int, column, value string, err error) error {
	return errors.WithStack(&ParseError{Row: row, Column: column, Value: value, Err: err})
}
