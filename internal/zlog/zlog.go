// Package zlog is the structured-logging entry point used across
// zfec-fs, mirroring the Debugf/Errorf call shape used throughout the
// backing store layer this project's FUSE binding is styled after, but
// without a per-remote receiver argument since this repo has no
// multi-remote abstraction to name in every call.
package zlog

import "github.com/sirupsen/logrus"

// Logger is the package-wide logrus instance. Tests may swap its output
// or level; production code should not need to touch it directly.
var Logger = logrus.StandardLogger()

// Debugf logs at debug level. Used for routine open/release/read-path
// tracing that is silent by default.
func Debugf(format string, args ...any) {
	Logger.Debugf(format, args...)
}

// Infof logs at info level. Used for mount/unmount lifecycle events.
func Infof(format string, args ...any) {
	Logger.Infof(format, args...)
}

// Errorf logs at error level. Used for backing I/O failures and
// constructor-time validation failures.
func Errorf(format string, args ...any) {
	Logger.Errorf(format, args...)
}
