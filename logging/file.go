package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely a logger built by NewFromOptions writes.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string `json:"level,omitempty"`
	// File, when set, receives JSON encoded logs in addition to stdout. The file is rotated.
	File string `json:"file,omitempty"`
	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `json:"max_size_mb,omitempty"`
	// MaxBackups is the number of rotated files kept.
	MaxBackups int `json:"max_backups,omitempty"`
}

// ParseLevel converts a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.Errorf("unknown log level %q", level)
	}
}

// NewFromOptions builds a named logger writing to stdout and, optionally, a rotating file.
func NewFromOptions(name string, opts Options) (Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	atomic := zap.NewAtomicLevelAt(level)

	consoleCfg := NewLoggerConfig().EncoderConfig
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), atomic),
	}
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
		}
		fileCfg := NewLoggerConfig().EncoderConfig
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), atomic))
	}
	return &impl{zap.New(zapcore.NewTee(cores...)).Sugar().Named(name)}, nil
}
