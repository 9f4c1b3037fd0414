// Package logging builds the application's zap logger.
package logging

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file name under the logs directory for a run started at t.
func FileName(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("fixdesk-%s.log", t.Format("20060102-150405")))
}

// New returns a logger writing console-encoded entries to buf. extra cores,
// e.g. stderr for CLI commands, receive the same entries.
func New(level string, buf *Buffer, extra ...zapcore.Core) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := make([]zapcore.Core, 0, len(extra)+1)
	if buf != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(buf), lvl))
	}
	cores = append(cores, extra...)

	return zap.New(zapcore.NewTee(cores...)), nil
}

// Console is a core for stderr-style output at level.
func Console(w zapcore.WriteSyncer, level zapcore.Level) zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), w, level)
}
