// Package observability provides the process-wide structured logger.
//
// CLI commands and the serve surface log through CLILogger; library
// packages under pkg/ stay logger-free and return errors instead.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the shared logger for command and server code.
//
// It defaults to a no-op logger so library consumers and tests that never
// call InitCLILogger stay silent.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for console output at the given level.
//
// Levels: debug, info, warn, error. Unknown values fall back to info.
// Output goes to stderr so JSONL results on stdout stay machine-readable.
func InitCLILogger(level string) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		parseLevel(level),
	)
	CLILogger = zap.New(core)
}

// Sync flushes buffered log entries. Safe to call on the no-op logger.
func Sync() {
	_ = CLILogger.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
