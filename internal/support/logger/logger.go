// Package logger is the pipeline's leveled logging facade over the standard
// log package. A single global level filters output; per-day batch work has no
// per-request context to thread a logger through, so package-level functions
// keep call sites short.
package logger

import (
	"fmt"
	"log"
	"strings"
)

// LogLevel orders log severities; smaller values are more verbose.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// logLevel is the global threshold. Messages below it are dropped.
var logLevel = LevelInfo

// SetLogLevel sets the global log level from its configuration string
// (DEBUG, INFO, WARN, ERROR, FATAL; case-insensitive). An unknown value
// falls back to INFO.
func SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "INFO":
		logLevel = LevelInfo
	case "WARN":
		logLevel = LevelWarn
	case "ERROR":
		logLevel = LevelError
	case "FATAL":
		logLevel = LevelFatal
	case "DEBUG":
		logLevel = LevelDebug
	default:
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
		logLevel = LevelInfo
	}
}

// Debugf logs a printf-style message at DEBUG level.
func Debugf(format string, v ...interface{}) {
	if logLevel <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof logs a printf-style message at INFO level.
func Infof(format string, v ...interface{}) {
	if logLevel <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf logs a printf-style message at WARN level.
func Warnf(format string, v ...interface{}) {
	if logLevel <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf logs a printf-style message at ERROR level.
func Errorf(format string, v ...interface{}) {
	if logLevel <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs at FATAL level and terminates the program.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
