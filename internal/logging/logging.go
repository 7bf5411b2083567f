// Package logging builds the structured zap logger shared across every
// pipeline stage, with correlation fields for ledgerIndex, txHash, nftId
// and notificationId attached at each call site rather than interpolated
// into the message.
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls where and how logs are written.
type Config struct {
	Level      string // debug, info, warn, error
	FilePath   string // empty writes to stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	JSON       bool
}

// New builds a *zap.SugaredLogger from Config. Callers attach correlation
// fields with .With("ledgerIndex", n, "txHash", h, ...) at the point they
// become known, not by formatting them into the message string.
func New(cfg Config) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	// Colorized levels only make sense on an interactive terminal; a file
	// sink or a piped stderr (container logs) gets plain text.
	if !cfg.JSON && cfg.FilePath == "" && isatty.IsTerminal(os.Stderr.Fd()) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var sink zapcore.WriteSyncer
	if cfg.FilePath == "" {
		sink = zapcore.Lock(zapcore.AddSync(os.Stderr))
	} else {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    valueOr(cfg.MaxSizeMB, 100),
			MaxBackups: valueOr(cfg.MaxBackups, 5),
			MaxAge:     valueOr(cfg.MaxAgeDays, 28),
			Compress:   true,
		})
	}

	core := zapcore.NewCore(encoder, sink, level)
	logger := zap.New(core, zap.AddCaller())
	return logger.Sugar(), nil
}

func valueOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
