// SPDX-License-Identifier: MIT
package log

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// logrusLevel maps a LogLevel onto the backend's level scale.
func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	case LevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// --- Global Logger State ---

// currentLevel mirrors the backend level so hot paths can check it without
// touching the logrus mutex.
var currentLevel atomic.Uint32

// logger is the shared backend. Timestamps carry microseconds, matching the
// format the engine has always written to stderr.
var logger = &logrus.Logger{
	Out: os.Stderr,
	Formatter: &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05.000000",
	},
	Hooks: make(logrus.LevelHooks),
	Level: logrus.InfoLevel,
}

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
	logger.SetLevel(level.logrusLevel())
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output. Tests use it to silence or capture logs.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// shouldLog checks if a message at the given level should be logged based on the current global level.
func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// DebugEnabled reports whether debug output is currently emitted. Callers use
// it to skip building expensive log arguments.
func DebugEnabled() bool {
	return shouldLog(LevelDebug)
}

// WithComponent returns an entry tagged with the component name. Long-lived
// components keep one of these instead of calling the package functions.
func WithComponent(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...interface{}) {
	if shouldLog(LevelDebug) {
		logger.Debugf(format, v...)
	}
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...interface{}) {
	if shouldLog(LevelInfo) {
		logger.Infof(format, v...)
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...interface{}) {
	if shouldLog(LevelWarn) {
		logger.Warnf(format, v...)
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...interface{}) {
	if shouldLog(LevelError) {
		logger.Errorf(format, v...)
	}
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...interface{}) {
	logger.Fatalf(format, v...)
}
