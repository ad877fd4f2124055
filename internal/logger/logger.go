package logger

import (
	"strings"
	"sync"
)

// Log levels accepted by --debug and daemon.log_level.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The first call fixes the level;
// later calls return the same instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(strings.ToLower(strings.TrimSpace(level)))
	})
	return globalLogger
}

// Level picks the effective level from the CLI flag and the configured value.
func Level(debug bool, configured string) string {
	if debug {
		return DebugLevel
	}
	switch l := strings.ToLower(strings.TrimSpace(configured)); l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return l
	default:
		return InfoLevel
	}
}
