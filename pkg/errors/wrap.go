package errors

import (
	"github.com/cockroachdb/errors"
)

// 呼び出し側が cockroachdb/errors を直接 import しなくて済むように再公開する

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// Wrap adds context and a stack trace to err.
func Wrap(err error, message string) error { return errors.Wrap(err, message) }

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func New(message string) error { return errors.New(message) }

func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

func WithStack(err error) error { return errors.WithStack(err) }
