package logger

import (
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel constants
const (
	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelTrace = "trace"
)

var levels = []string{LogLevelError, LogLevelWarn, LogLevelInfo, LogLevelDebug, LogLevelTrace}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// GlobalLogging is the configuration consulted by the package-level helpers.
// It stays nil until Setup is called, which silences everything but LogStartup.
var GlobalLogging *LoggingConfig

// Setup installs config as the active logging configuration and redirects the
// standard logger to config.File when one is set. The returned closer releases
// the log file and is safe to call when no file was opened.
func Setup(config *LoggingConfig) io.Closer {
	if config.Level == "" {
		config.Level = LogLevelInfo
	}
	config.Level = strings.ToLower(config.Level)

	log.SetFlags(log.LstdFlags)
	GlobalLogging = config

	if config.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}

	// 0600: the log may carry collector addresses and device serials
	output, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.SetOutput(os.Stdout)
		log.Printf("⚠️ Failed to open log file %s, logging to stdout: %v", config.File, err)
		return nopCloser{}
	}
	log.SetOutput(output)
	return output
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ValidLevel reports whether level names a known verbosity level
func ValidLevel(level string) bool {
	return levelIndex(strings.ToLower(level)) >= 0
}

func levelIndex(level string) int {
	for i, l := range levels {
		if l == level {
			return i
		}
	}
	return -1
}

// shouldLog checks if a message should be logged based on current level
func shouldLog(currentLevel, messageLevel string) bool {
	currentIndex := levelIndex(currentLevel)
	messageIndex := levelIndex(messageLevel)

	// If either level is not found, default to allowing the message
	if currentIndex == -1 || messageIndex == -1 {
		return true
	}

	return messageIndex <= currentIndex
}

func enabled(messageLevel string) bool {
	return GlobalLogging != nil && shouldLog(GlobalLogging.Level, messageLevel)
}

// LogStartup logs startup messages that should always be visible regardless of log level
func LogStartup(format string, args ...interface{}) {
	log.Printf("🚀 "+format, args...)
}

// Helper functions for global logging
func LogError(format string, args ...interface{}) {
	if enabled(LogLevelError) {
		log.Printf("❌ "+format, args...)
	}
}

func LogWarn(format string, args ...interface{}) {
	if enabled(LogLevelWarn) {
		log.Printf("⚠️ "+format, args...)
	}
}

func LogInfo(format string, args ...interface{}) {
	if enabled(LogLevelInfo) {
		log.Printf("ℹ️ "+format, args...)
	}
}

func LogDebug(format string, args ...interface{}) {
	if enabled(LogLevelDebug) {
		log.Printf("🔧 "+format, args...)
	}
}

func LogTrace(format string, args ...interface{}) {
	if enabled(LogLevelTrace) {
		log.Printf("🔍 "+format, args...)
	}
}

// IsDebugEnabled checks if debug logging is enabled
func IsDebugEnabled() bool {
	return enabled(LogLevelDebug)
}

// IsTraceEnabled checks if trace logging is enabled
func IsTraceEnabled() bool {
	return enabled(LogLevelTrace)
}
