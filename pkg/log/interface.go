// Package log provides the structured logging interface used by every stage of
// the diabetes-risk pipeline.
//
// The Logger interface is slog-compatible; the default implementation is backed
// by zerolog (see logger.go). Pipeline stages never reach for a global logger
// implicitly: they receive a Logger and enrich it with With.
//
//	logger := log.GetLogger().With(
//	    log.RunIDKey, runID,
//	    log.ComponentKey, "tuner",
//	)
//	logger.Info("grid search started",
//	    log.SamplesKey, 364,
//	    log.FeaturesKey, 16,
//	)

package log

import (
	"context"
)

// Logger is a structured logger with slog-style key/value fields.
//
// Fields alternate key and value. When the first field of a call is an
// error it is recorded under ErrAttrKey together with its stack trace:
//
//	logger.Error("tune stage failed", err, log.CandidatesKey, 216)
type Logger interface {
	// Debug は1 fit ごとの進捗など、既定では出さない詳細
	Debug(msg string, fields ...any)
	// Info はステージの開始・終了
	Info(msg string, fields ...any)
	// Warn は続行可能な問題（設定された列がない、ビューアがない等）
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a logger that adds fields to every entry.
	With(fields ...any) Logger

	// Enabled reports whether an entry at level would be written.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level; the values match slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
