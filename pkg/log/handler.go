package log

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// appendError writes err to the event under key, followed by the stack
// trace recorded by cockroachdb/errors when one is available.
// Errors that know how to marshal themselves are embedded as objects.
func appendError(e *zerolog.Event, key string, err error) *zerolog.Event {
	e = e.AnErr(key, err)
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		e = e.Object(key+"_detail", m)
	}
	if stacktrace := extractStacktrace(err); stacktrace != "" {
		e = e.Str(StacktraceAttrKey, stacktrace)
	}
	return e
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
