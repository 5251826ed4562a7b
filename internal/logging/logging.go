// Package logging constructs the process-wide zap logger. Construction
// is explicit and happens once in main; no package-level init() logger
// (spec.md §9 replaces process-wide singletons with explicit
// construction and dependency injection).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Development selects the colored console encoder used locally;
	// false selects JSON output suitable for log aggregation.
	Development bool
	Level       zapcore.Level
}

func New(opts Options) *zap.Logger {
	if opts.Level == 0 {
		opts.Level = zapcore.InfoLevel
	}
	if opts.Development {
		return zap.New(newConsoleCore(opts.Level), zap.AddCaller())
	}
	return zap.New(newJSONCore(opts.Level), zap.AddCaller())
}

func newConsoleCore(level zapcore.Level) zapcore.Core {
	enc := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.CapitalColorLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(os.Stdout), level)
}

func newJSONCore(level zapcore.Level) zapcore.Core {
	enc := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		CallerKey:    "caller",
		MessageKey:   "msg",
		LineEnding:   zapcore.DefaultLineEnding,
		EncodeTime:   zapcore.EpochMillisTimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(os.Stdout), level)
}
