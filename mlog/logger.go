package mlog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	// Level, See also zapcore.ParseLevel.
	Level string `yaml:"level"`

	// File that logger will be writen into.
	// Default is stderr.
	File string `yaml:"file"`

	// Production enables json output.
	Production bool `yaml:"production"`
}

var (
	stderr = zapcore.Lock(os.Stderr)

	lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	l   = zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), stderr, lvl))

	nop = zap.NewNop()
)

// NewLogger builds a logger from lc. Its level follows SetLevel.
func NewLogger(lc *LogConfig) (*zap.Logger, error) {
	if err := SetLevel(lc.Level); err != nil {
		return nil, err
	}

	var out zapcore.WriteSyncer
	if lf := lc.File; len(lf) > 0 {
		f, _, err := zap.Open(lf)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = zapcore.Lock(f)
	} else {
		out = stderr
	}

	if lc.Production {
		return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), out, lvl)), nil
	}
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), out, lvl)), nil
}

// SetLevel changes the level of every logger built by this package.
// An empty level is info.
func SetLevel(level string) error {
	if len(level) == 0 {
		level = "info"
	}
	zl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	lvl.SetLevel(zl)
	return nil
}

func Level() zapcore.Level {
	return lvl.Level()
}

// L is a global logger.
func L() *zap.Logger {
	return l
}

// Nop is a logger that never writes out logs.
func Nop() *zap.Logger {
	return nop
}
