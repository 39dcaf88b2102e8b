package utils

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	baseLogger  = zap.NewNop()
	sugarLogger = baseLogger.Sugar()
)

// InitLogger replaces the package logger. Call once at startup.
func InitLogger(level string, development bool) error {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("error building logger: %w", err)
	}

	SetLogger(logger)
	return nil
}

func SetLogger(logger *zap.Logger) {
	baseLogger = logger
	sugarLogger = logger.Sugar()
}

// Logger exposes the structured logger for call sites that log fields.
func Logger() *zap.Logger {
	return baseLogger
}

func SyncLogger() {
	_ = baseLogger.Sync()
}

func LogDebug(format string, v ...interface{}) {
	sugarLogger.Debugf(format, v...)
}

func LogInfo(format string, v ...interface{}) {
	sugarLogger.Infof(format, v...)
}

func LogError(format string, v ...interface{}) {
	sugarLogger.Errorf(format, v...)
}

func LogWarning(format string, v ...interface{}) {
	sugarLogger.Warnf(format, v...)
}

func TimeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	LogDebug("%s took %s", name, elapsed)
}
