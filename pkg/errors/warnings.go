package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// Warnings are non-fatal conditions reported through a process-wide sink,
// in the manner of Python's warnings module. pkg/log installs a zerolog
// sink; until then warnings go to the standard logger.
var (
	warnMu      sync.Mutex
	warnHandler = func(w error) { log.Printf("drisk-Warning: %v\n", w) }
	warnZerolog func(warning error)
)

// SetWarningHandler replaces the sink. A no-op handler silences warnings.
func SetWarningHandler(handler func(w error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	warnHandler = handler
	warnZerolog = nil
}

// SetZerologWarnFunc installs the structured-logging sink; it takes
// precedence over the plain handler. pkg/log calls it to avoid an import
// cycle.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warnMu.Lock()
	defer warnMu.Unlock()
	warnZerolog = warnFunc
}

// Warn reports w. Safe for concurrent use from fit workers.
func Warn(w error) {
	warnMu.Lock()
	defer warnMu.Unlock()
	switch {
	case warnZerolog != nil:
		warnZerolog(w)
	case warnHandler != nil:
		warnHandler(w)
	}
}

// UndefinedMetricWarning: precision などが 0 除算になり Result で置き換えた
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "UndefinedMetricWarning").
		Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result)
}

func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// DeprecationWarning is an accepted but outdated parameter value, such as
// max_features="auto" on a forest classifier.
type DeprecationWarning struct {
	Param       string
	Value       interface{}
	Replacement string
}

func (w *DeprecationWarning) Error() string {
	return fmt.Sprintf("%s=%v is deprecated; it is treated as %s=%s.", w.Param, w.Value, w.Param, w.Replacement)
}

func (w *DeprecationWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "DeprecationWarning").
		Str("param", w.Param).
		Interface("value", w.Value).
		Str("replacement", w.Replacement)
}

func NewDeprecationWarning(param string, value interface{}, replacement string) *DeprecationWarning {
	return &DeprecationWarning{Param: param, Value: value, Replacement: replacement}
}
