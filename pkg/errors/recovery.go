package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError is a panic recovered on a worker goroutine. A panicking fit
// fails its grid search with this error instead of crashing the process.
type PanicError struct {
	PanicValue interface{}
	StackTrace string
	Operation  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String は Error() にスタックトレースを付けたもの
func (e *PanicError) String() string {
	return e.Error() + "\nStack trace:\n" + e.StackTrace
}

// Unwrap exposes the panic value when it was an error (e.g. a runtime.Error).
func (e *PanicError) Unwrap() error {
	err, _ := e.PanicValue.(error)
	return err
}

func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Str("panic_value", fmt.Sprint(e.PanicValue)).
		Str("type", "PanicError")
}

// NewPanicError captures the current goroutine's stack.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover turns a panic into *err. Use it deferred:
//
//	func (rf *RandomForestClassifier) fitTree(...) (t *tree.DecisionTreeClassifier, err error) {
//	    defer errors.Recover(&err, "RandomForestClassifier.fitTree")
//	    ...
//	}
//
// An error already stored in *err stays reachable through errors.Is.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	if *err != nil {
		*err = errors.Wrapf(*err, "panic in %s: %v", operation, r)
		return
	}
	*err = NewPanicError(operation, r)
}

// SafeExecute runs fn, converting a panic into a *PanicError.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
