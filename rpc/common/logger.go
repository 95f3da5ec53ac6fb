package common

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	loggerMu   sync.Mutex
	rootLogger *zap.Logger
	logLevel   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// GetLogger returns a named sugared logger for a subsystem, e.g.
// GetLogger("transport") or GetLogger("dispatch"). All loggers share one
// root logger and one atomic level.
func GetLogger(name string) *zap.SugaredLogger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if rootLogger == nil {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = logLevel
		logger, err := cfg.Build()
		if err != nil {
			// The development config cannot fail to build with a valid
			// level; fall back to a no-op logger to keep callers alive.
			logger = zap.NewNop()
		}
		rootLogger = logger
	}
	return rootLogger.Named(name).Sugar()
}

// SetLogLevel changes the level of all loggers created by GetLogger.
// Accepted values: debug, info, warn/warning, error.
func SetLogLevel(level string) error {
	parsed, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	logLevel.SetLevel(parsed)
	return nil
}

// parseLogLevel converts a string level to a zapcore.Level
func parseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warning", "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}
