package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewZerologLogger(os.Stderr, LevelInfo, "console")
)

// GetLogger returns the process-wide logger. Commands configure it once with
// SetupLogger; library code receives loggers explicitly and only falls back
// to this one when none was supplied.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// SetupLogger function setup logger.
// format is "console" (human readable) or "json".
func SetupLogger(w io.Writer, loglevel, format string) (Logger, error) {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return nil, err
	}
	if format != "console" && format != "json" {
		return nil, errors.NewValidationError("log.format", "must be console or json", format)
	}
	l := NewZerologLogger(w, level, format)
	SetLogger(l)
	return l, nil
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch level {
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

// RouteWarnings connects the warning system in pkg/errors to l.
// When suppress is set warnings are dropped, like warnings.filterwarnings("ignore").
// Otherwise each distinct warning text is logged once; a grid search raises
// the same warning from every fit.
func RouteWarnings(l Logger, suppress bool) {
	if suppress {
		errors.SetWarningHandler(func(error) {})
		return
	}
	var seen sync.Map
	errors.SetZerologWarnFunc(func(w error) {
		if _, dup := seen.LoadOrStore(w.Error(), struct{}{}); dup {
			return
		}
		l.Warn(w.Error(), WarningKey, w)
	})
}

// zerologLogger implements Logger on top of zerolog.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a Logger writing to w.
func NewZerologLogger(w io.Writer, level Level, format string) Logger {
	out := w
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	zl := zerolog.New(out).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *zerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { emit(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { emit(l.zl.Warn(), msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(fields[i]), fields[i+1])
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// emit attaches key/value pairs to e and sends it. A leading error value
// (logger.Error("msg", err, ...)) is stored under ErrAttrKey.
func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			e = appendError(e, ErrAttrKey, err)
			fields = fields[1:]
		}
	}
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if i+1 == len(fields) {
			e = e.Interface("!BADKEY", fields[i])
			break
		}
		switch v := fields[i+1].(type) {
		case error:
			if m, ok := v.(zerolog.LogObjectMarshaler); ok {
				e = e.Object(key, m)
			} else {
				e = appendError(e, key, v)
			}
		case zerolog.LogObjectMarshaler:
			e = e.Object(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
